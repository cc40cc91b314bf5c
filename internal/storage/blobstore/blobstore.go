package blobstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jdillenkofer/blobshift/internal/blob"
)

var ErrBlobNotFound error = errors.New("blob not found")

// BlobStore persists blob rows and their status. Callers own the
// transaction; every mutating method issues exactly one statement.
type BlobStore interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// PutBlob stores content as a pending blob. Content that is already
	// known by its digests returns the existing blob unchanged.
	PutBlob(ctx context.Context, tx *sql.Tx, content []byte, contentType *string) (*blob.Blob, error)
	// GetBlob returns ErrBlobNotFound if there is no blob with the given id.
	GetBlob(ctx context.Context, tx *sql.Tx, blobId blob.BlobId) (*blob.Blob, error)
	CountBlobsByStatus(ctx context.Context, tx *sql.Tx, status blob.Status) (int64, error)
	FindBlobIdsByStatus(ctx context.Context, tx *sql.Tx, status blob.Status, limit *int) ([]blob.BlobId, error)
	CompareAndSetStatus(ctx context.Context, tx *sql.Tx, blobId blob.BlobId, from blob.Status, to blob.Status) (bool, error)
	CompleteUpload(ctx context.Context, tx *sql.Tx, blobId blob.BlobId, storageKey string, purgeContent bool) (bool, error)
	UpdateStatuses(ctx context.Context, tx *sql.Tx, from blob.Status, to blob.Status) (int64, error)
}
