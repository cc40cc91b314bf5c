package blob

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStatus   = errors.New("invalid blob status")
	ErrFeatureDisabled = errors.New("S3 blob support is not enabled.")
)

type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid input value for enum s3_upload_status: %q", e.Value)
}

func (e *InvalidStatusError) Is(target error) bool {
	return target == ErrInvalidStatus
}

// UploadError is the failure of a single blob transfer. The orchestrator
// records it and moves on to the next blob.
type UploadError struct {
	BlobId BlobId
	Cause  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of blob %s failed: %s", e.BlobId.String(), e.Cause)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// BatchUploadError is returned after a batch finished with at least one failed blob.
// First is the first failure in claim order.
type BatchUploadError struct {
	Failed    int
	Succeeded int
	First     error
}

func (e *BatchUploadError) Error() string {
	return fmt.Sprintf("%d of %d blobs failed to upload: %s", e.Failed, e.Failed+e.Succeeded, e.First)
}

func (e *BatchUploadError) Unwrap() error {
	return e.First
}
