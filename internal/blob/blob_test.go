package blob

import (
	"errors"
	"testing"

	testutils "github.com/jdillenkofer/blobshift/internal/testing"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

func TestParseStatusAcceptsAllKnownStatuses(t *testing.T) {
	testutils.SkipIfIntegration(t)
	for _, status := range Statuses {
		parsed, err := ParseStatus(string(status))
		assert.Nil(t, err)
		assert.Equal(t, status, parsed)
	}
}

func TestParseStatusRejectsUnknownStatus(t *testing.T) {
	testutils.SkipIfIntegration(t)
	_, err := ParseStatus("nonsense")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, `invalid input value for enum s3_upload_status: "nonsense"`, err.Error())

	var invalidStatusError *InvalidStatusError
	assert.True(t, errors.As(err, &invalidStatusError))
	assert.Equal(t, "nonsense", invalidStatusError.Value)
}

func TestParseStatusIsCaseSensitive(t *testing.T) {
	testutils.SkipIfIntegration(t)
	_, err := ParseStatus("PENDING")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestBatchUploadErrorUnwrapsToFirstFailure(t *testing.T) {
	testutils.SkipIfIntegration(t)
	cause := errors.New("Mock error when trying to upload #3")
	uploadErr := &UploadError{BlobId: ulid.Make(), Cause: cause}
	batchErr := &BatchUploadError{Failed: 1, Succeeded: 2, First: uploadErr}

	assert.ErrorIs(t, batchErr, cause)
	var unwrapped *UploadError
	assert.True(t, errors.As(batchErr, &unwrapped))
	assert.Equal(t, uploadErr.BlobId, unwrapped.BlobId)
	assert.Contains(t, batchErr.Error(), "1 of 3 blobs failed to upload")
}
