package prometheus

import (
	"context"
	"time"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/offload/uploader"
	"github.com/prometheus/client_golang/prometheus"
)

type prometheusUploaderMiddleware struct {
	registerer               prometheus.Registerer
	attemptedUploadsCounter  prometheus.Counter
	successfulUploadsCounter prometheus.Counter
	failedUploadsCounter     prometheus.Counter
	uploadedBytesCounter     prometheus.Counter
	uploadDurationHistogram  prometheus.Histogram
	innerUploader            uploader.Uploader
}

// Compile-time check to ensure prometheusUploaderMiddleware implements uploader.Uploader
var _ uploader.Uploader = (*prometheusUploaderMiddleware)(nil)

func NewUploaderMiddleware(innerUploader uploader.Uploader, registerer prometheus.Registerer) (uploader.Uploader, error) {
	attemptedUploadsCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blobshift",
			Subsystem: "uploader",
			Name:      "attempted_uploads_total",
			Help:      "No of blob uploads attempted",
		},
	)

	successfulUploadsCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blobshift",
			Subsystem: "uploader",
			Name:      "successful_uploads_total",
			Help:      "No of blob uploads that reached the object store",
		},
	)

	failedUploadsCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blobshift",
			Subsystem: "uploader",
			Name:      "failed_uploads_total",
			Help:      "No of failed blob uploads",
		},
	)

	uploadedBytesCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "blobshift",
			Subsystem: "uploader",
			Name:      "uploaded_bytes_total",
			Help:      "Total bytes uploaded to the object store",
		},
	)

	uploadDurationHistogram := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "blobshift",
			Subsystem: "uploader",
			Name:      "upload_duration_seconds",
			Help:      "Duration of a single blob upload",
			Buckets:   prometheus.DefBuckets,
		},
	)

	return &prometheusUploaderMiddleware{
		registerer:               registerer,
		attemptedUploadsCounter:  attemptedUploadsCounter,
		successfulUploadsCounter: successfulUploadsCounter,
		failedUploadsCounter:     failedUploadsCounter,
		uploadedBytesCounter:     uploadedBytesCounter,
		uploadDurationHistogram:  uploadDurationHistogram,
		innerUploader:            innerUploader,
	}, nil
}

func (pum *prometheusUploaderMiddleware) Start(ctx context.Context) error {
	pum.registerer.MustRegister(pum.attemptedUploadsCounter)
	pum.registerer.MustRegister(pum.successfulUploadsCounter)
	pum.registerer.MustRegister(pum.failedUploadsCounter)
	pum.registerer.MustRegister(pum.uploadedBytesCounter)
	pum.registerer.MustRegister(pum.uploadDurationHistogram)

	return pum.innerUploader.Start(ctx)
}

func (pum *prometheusUploaderMiddleware) Stop(ctx context.Context) error {
	pum.registerer.Unregister(pum.uploadDurationHistogram)
	pum.registerer.Unregister(pum.uploadedBytesCounter)
	pum.registerer.Unregister(pum.failedUploadsCounter)
	pum.registerer.Unregister(pum.successfulUploadsCounter)
	pum.registerer.Unregister(pum.attemptedUploadsCounter)

	return pum.innerUploader.Stop(ctx)
}

func (pum *prometheusUploaderMiddleware) Upload(ctx context.Context, b *blob.Blob) (string, error) {
	pum.attemptedUploadsCounter.Inc()
	start := time.Now()
	key, err := pum.innerUploader.Upload(ctx, b)
	pum.uploadDurationHistogram.Observe(time.Since(start).Seconds())
	if err != nil {
		pum.failedUploadsCounter.Inc()
		return "", err
	}

	pum.successfulUploadsCounter.Inc()
	pum.uploadedBytesCounter.Add(float64(len(b.Content)))

	return key, nil
}
