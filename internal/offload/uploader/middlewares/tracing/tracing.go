package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/offload/uploader"
)

type tracingUploaderMiddleware struct {
	regionName    string
	innerUploader uploader.Uploader
	tracer        trace.Tracer
}

// Compile-time check to ensure tracingUploaderMiddleware implements uploader.Uploader
var _ uploader.Uploader = (*tracingUploaderMiddleware)(nil)

func New(regionName string, innerUploader uploader.Uploader) (uploader.Uploader, error) {
	return &tracingUploaderMiddleware{
		regionName:    regionName,
		innerUploader: innerUploader,
		tracer:        otel.Tracer("internal/offload/uploader/middlewares/tracing"),
	}, nil
}

func (tum *tracingUploaderMiddleware) Start(ctx context.Context) error {
	ctx, span := tum.tracer.Start(ctx, tum.regionName+".Start()")
	defer span.End()

	return tum.innerUploader.Start(ctx)
}

func (tum *tracingUploaderMiddleware) Stop(ctx context.Context) error {
	ctx, span := tum.tracer.Start(ctx, tum.regionName+".Stop()")
	defer span.End()

	return tum.innerUploader.Stop(ctx)
}

func (tum *tracingUploaderMiddleware) Upload(ctx context.Context, b *blob.Blob) (string, error) {
	ctx, span := tum.tracer.Start(ctx, tum.regionName+".Upload()", trace.WithAttributes(
		attribute.String("blob.id", b.Id.String()),
		attribute.Int("blob.size", len(b.Content)),
	))
	defer span.End()

	key, err := tum.innerUploader.Upload(ctx, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.String("blob.storage_key", key))
	return key, nil
}
