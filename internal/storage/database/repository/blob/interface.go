package blob

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusUploaded   = "uploaded"
	StatusFailed     = "failed"
)

type Repository interface {
	FindBlobById(ctx context.Context, tx *sql.Tx, id ulid.ULID) (*Entity, error)
	FindBlobByDigests(ctx context.Context, tx *sql.Tx, sha string, md5 string) (*Entity, error)
	// FindBlobIdsByStatus returns ids in ascending order. A nil limit returns all ids.
	FindBlobIdsByStatus(ctx context.Context, tx *sql.Tx, status string, limit *int) ([]ulid.ULID, error)
	CountBlobsByStatus(ctx context.Context, tx *sql.Tx, status string) (int64, error)
	SaveBlob(ctx context.Context, tx *sql.Tx, blob *Entity) error
	// CompareAndSetStatus reports whether the row was in status from and was moved to status to.
	CompareAndSetStatus(ctx context.Context, tx *sql.Tx, id ulid.ULID, from string, to string) (bool, error)
	// CompleteUpload moves an in_progress row to uploaded and records the storage key.
	CompleteUpload(ctx context.Context, tx *sql.Tx, id ulid.ULID, storageKey string, purgeContent bool) (bool, error)
	UpdateStatuses(ctx context.Context, tx *sql.Tx, from string, to string) (int64, error)
}

type Entity struct {
	Id          *ulid.ULID
	Sha         string
	Md5         string
	Content     []byte
	ContentType *string
	Status      string
	StorageKey  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
