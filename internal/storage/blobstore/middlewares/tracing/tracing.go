package tracing

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/storage/blobstore"
)

type tracingBlobStoreMiddleware struct {
	regionName     string
	innerBlobStore blobstore.BlobStore
	tracer         trace.Tracer
}

// Compile-time check to ensure tracingBlobStoreMiddleware implements blobstore.BlobStore
var _ blobstore.BlobStore = (*tracingBlobStoreMiddleware)(nil)

func New(regionName string, innerBlobStore blobstore.BlobStore) (blobstore.BlobStore, error) {
	return &tracingBlobStoreMiddleware{
		regionName:     regionName,
		innerBlobStore: innerBlobStore,
		tracer:         otel.Tracer("internal/storage/blobstore/middlewares/tracing"),
	}, nil
}

func (tbsm *tracingBlobStoreMiddleware) startSpan(ctx context.Context, method string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return tbsm.tracer.Start(ctx, tbsm.regionName+"."+method+"()", trace.WithAttributes(attributes...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (tbsm *tracingBlobStoreMiddleware) Start(ctx context.Context) error {
	ctx, span := tbsm.startSpan(ctx, "Start")
	err := tbsm.innerBlobStore.Start(ctx)
	endSpan(span, err)
	return err
}

func (tbsm *tracingBlobStoreMiddleware) Stop(ctx context.Context) error {
	ctx, span := tbsm.startSpan(ctx, "Stop")
	err := tbsm.innerBlobStore.Stop(ctx)
	endSpan(span, err)
	return err
}

func (tbsm *tracingBlobStoreMiddleware) PutBlob(ctx context.Context, tx *sql.Tx, content []byte, contentType *string) (*blob.Blob, error) {
	ctx, span := tbsm.startSpan(ctx, "PutBlob", attribute.Int("blob.size", len(content)))
	b, err := tbsm.innerBlobStore.PutBlob(ctx, tx, content, contentType)
	if b != nil {
		span.SetAttributes(attribute.String("blob.id", b.Id.String()))
	}
	endSpan(span, err)
	return b, err
}

func (tbsm *tracingBlobStoreMiddleware) GetBlob(ctx context.Context, tx *sql.Tx, blobId blob.BlobId) (*blob.Blob, error) {
	ctx, span := tbsm.startSpan(ctx, "GetBlob", attribute.String("blob.id", blobId.String()))
	b, err := tbsm.innerBlobStore.GetBlob(ctx, tx, blobId)
	endSpan(span, err)
	return b, err
}

func (tbsm *tracingBlobStoreMiddleware) CountBlobsByStatus(ctx context.Context, tx *sql.Tx, status blob.Status) (int64, error) {
	ctx, span := tbsm.startSpan(ctx, "CountBlobsByStatus", attribute.String("blob.status", status.String()))
	count, err := tbsm.innerBlobStore.CountBlobsByStatus(ctx, tx, status)
	endSpan(span, err)
	return count, err
}

func (tbsm *tracingBlobStoreMiddleware) FindBlobIdsByStatus(ctx context.Context, tx *sql.Tx, status blob.Status, limit *int) ([]blob.BlobId, error) {
	ctx, span := tbsm.startSpan(ctx, "FindBlobIdsByStatus", attribute.String("blob.status", status.String()))
	blobIds, err := tbsm.innerBlobStore.FindBlobIdsByStatus(ctx, tx, status, limit)
	span.SetAttributes(attribute.Int("blob.count", len(blobIds)))
	endSpan(span, err)
	return blobIds, err
}

func (tbsm *tracingBlobStoreMiddleware) CompareAndSetStatus(ctx context.Context, tx *sql.Tx, blobId blob.BlobId, from blob.Status, to blob.Status) (bool, error) {
	ctx, span := tbsm.startSpan(ctx, "CompareAndSetStatus",
		attribute.String("blob.id", blobId.String()),
		attribute.String("blob.status.from", from.String()),
		attribute.String("blob.status.to", to.String()))
	changed, err := tbsm.innerBlobStore.CompareAndSetStatus(ctx, tx, blobId, from, to)
	span.SetAttributes(attribute.Bool("blob.status.changed", changed))
	endSpan(span, err)
	return changed, err
}

func (tbsm *tracingBlobStoreMiddleware) CompleteUpload(ctx context.Context, tx *sql.Tx, blobId blob.BlobId, storageKey string, purgeContent bool) (bool, error) {
	ctx, span := tbsm.startSpan(ctx, "CompleteUpload",
		attribute.String("blob.id", blobId.String()),
		attribute.String("blob.storage_key", storageKey),
		attribute.Bool("blob.purge_content", purgeContent))
	changed, err := tbsm.innerBlobStore.CompleteUpload(ctx, tx, blobId, storageKey, purgeContent)
	span.SetAttributes(attribute.Bool("blob.status.changed", changed))
	endSpan(span, err)
	return changed, err
}

func (tbsm *tracingBlobStoreMiddleware) UpdateStatuses(ctx context.Context, tx *sql.Tx, from blob.Status, to blob.Status) (int64, error) {
	ctx, span := tbsm.startSpan(ctx, "UpdateStatuses",
		attribute.String("blob.status.from", from.String()),
		attribute.String("blob.status.to", to.String()))
	moved, err := tbsm.innerBlobStore.UpdateStatuses(ctx, tx, from, to)
	span.SetAttributes(attribute.Int64("blob.count", moved))
	endSpan(span, err)
	return moved, err
}
