package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/checksumutils"
	"github.com/jdillenkofer/blobshift/internal/lifecycle"
	"github.com/jdillenkofer/blobshift/internal/offload/uploader"
)

var ErrContentMissing = errors.New("blob content is not resident")

type s3Uploader struct {
	*lifecycle.ValidatedLifecycle
	uploader    *manager.Uploader
	bucket      string
	keyStrategy uploader.KeyStrategy
}

// Compile-time check to ensure s3Uploader implements uploader.Uploader
var _ uploader.Uploader = (*s3Uploader)(nil)

func New(s3Client *s3.Client, bucket string, keyStrategy uploader.KeyStrategy) (uploader.Uploader, error) {
	validatedLifecycle, err := lifecycle.NewValidatedLifecycle("S3Uploader")
	if err != nil {
		return nil, err
	}
	return &s3Uploader{
		ValidatedLifecycle: validatedLifecycle,
		uploader:           manager.NewUploader(s3Client),
		bucket:             bucket,
		keyStrategy:        keyStrategy,
	}, nil
}

func (su *s3Uploader) Upload(ctx context.Context, b *blob.Blob) (string, error) {
	if err := su.EnsureRunning(); err != nil {
		return "", &blob.UploadError{BlobId: b.Id, Cause: err}
	}
	if !b.HasContent() {
		return "", &blob.UploadError{BlobId: b.Id, Cause: ErrContentMissing}
	}
	contentMd5, err := checksumutils.Md5HexToBase64(b.Md5)
	if err != nil {
		return "", &blob.UploadError{BlobId: b.Id, Cause: err}
	}

	key := su.keyStrategy(b)
	_, err = su.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(su.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(b.Content),
		ContentLength: aws.Int64(int64(len(b.Content))),
		ContentType:   b.ContentType,
		ContentMD5:    contentMd5,
	}, singlePartFor(len(b.Content)))
	var ae smithy.APIError
	if err != nil && errors.As(err, &ae) {
		return "", &blob.UploadError{BlobId: b.Id, Cause: fmt.Errorf("put object %s (%s): %w", key, ae.ErrorCode(), err)}
	}
	if err != nil {
		return "", &blob.UploadError{BlobId: b.Id, Cause: fmt.Errorf("put object %s: %w", key, err)}
	}
	slog.Debug("Uploaded blob", "blobId", b.Id.String(), "bucket", su.bucket, "key", key)
	return key, nil
}

// singlePartFor raises the part size to the content length. The manager
// ignores ContentMD5 on multipart uploads, so every blob goes out as one PutObject.
func singlePartFor(contentLength int) func(*manager.Uploader) {
	return func(u *manager.Uploader) {
		u.PartSize = max(int64(contentLength), manager.MinUploadPartSize)
	}
}
