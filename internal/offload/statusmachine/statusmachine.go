package statusmachine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/storage/blobstore"
	"github.com/jdillenkofer/blobshift/internal/storage/database"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// ClaimError reports the blob whose claim failed. The blob keeps its
// pending status and every blob claimed before it stays claimed.
type ClaimError struct {
	BlobId blob.BlobId
	Cause  error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim blob %s: %s", e.BlobId.String(), e.Cause)
}

func (e *ClaimError) Unwrap() error {
	return e.Cause
}

// StatusMachine owns every write to the s3_status column.
// Each transition is one statement in its own write transaction, so
// a crash between two transitions leaves the row in a well defined state.
type StatusMachine struct {
	db        database.Database
	blobStore blobstore.BlobStore
}

func New(db database.Database, blobStore blobstore.BlobStore) (*StatusMachine, error) {
	return &StatusMachine{
		db:        db,
		blobStore: blobStore,
	}, nil
}

func (sm *StatusMachine) inTx(ctx context.Context, readOnly bool, fn func(tx *sql.Tx) error) error {
	tx, err := sm.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return err
	}
	err = fn(tx)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Count validates the status before the database is queried.
func (sm *StatusMachine) Count(ctx context.Context, status string) (int64, error) {
	parsedStatus, err := blob.ParseStatus(status)
	if err != nil {
		return 0, err
	}
	var count int64
	err = sm.inTx(ctx, true, func(tx *sql.Tx) error {
		count, err = sm.blobStore.CountBlobsByStatus(ctx, tx, parsedStatus)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("count blobs with status %s: %w", parsedStatus, err)
	}
	return count, nil
}

// ClaimPending snapshots up to limit pending ids and moves each one to
// in_progress. Ids claimed by a concurrent caller in the meantime are skipped,
// so the returned ids belong to this caller alone. If a claim fails, the ids
// claimed so far are returned together with a *ClaimError.
func (sm *StatusMachine) ClaimPending(ctx context.Context, limit *int) ([]blob.BlobId, error) {
	var pendingBlobIds []blob.BlobId
	err := sm.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		pendingBlobIds, err = sm.blobStore.FindBlobIdsByStatus(ctx, tx, blob.StatusPending, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find pending blobs: %w", err)
	}

	claimedBlobIds := []blob.BlobId{}
	for _, blobId := range pendingBlobIds {
		var claimed bool
		err = sm.inTx(ctx, false, func(tx *sql.Tx) error {
			var err error
			claimed, err = sm.blobStore.CompareAndSetStatus(ctx, tx, blobId, blob.StatusPending, blob.StatusInProgress)
			return err
		})
		if err != nil {
			return claimedBlobIds, &ClaimError{BlobId: blobId, Cause: err}
		}
		if !claimed {
			slog.Debug("Blob was claimed by another run", "blobId", blobId.String())
			continue
		}
		claimedBlobIds = append(claimedBlobIds, blobId)
	}
	return claimedBlobIds, nil
}

func (sm *StatusMachine) Load(ctx context.Context, blobId blob.BlobId) (*blob.Blob, error) {
	var b *blob.Blob
	err := sm.inTx(ctx, true, func(tx *sql.Tx) error {
		var err error
		b, err = sm.blobStore.GetBlob(ctx, tx, blobId)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", blobId.String(), err)
	}
	return b, nil
}

func (sm *StatusMachine) CommitSuccess(ctx context.Context, blobId blob.BlobId, storageKey string, purgeContent bool) error {
	var completed bool
	err := sm.inTx(ctx, false, func(tx *sql.Tx) error {
		var err error
		completed, err = sm.blobStore.CompleteUpload(ctx, tx, blobId, storageKey, purgeContent)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark blob %s as uploaded: %w", blobId.String(), err)
	}
	if !completed {
		return fmt.Errorf("mark blob %s as uploaded: %w", blobId.String(), ErrInvalidTransition)
	}
	return nil
}

func (sm *StatusMachine) CommitFailure(ctx context.Context, blobId blob.BlobId) error {
	var changed bool
	err := sm.inTx(ctx, false, func(tx *sql.Tx) error {
		var err error
		changed, err = sm.blobStore.CompareAndSetStatus(ctx, tx, blobId, blob.StatusInProgress, blob.StatusFailed)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark blob %s as failed: %w", blobId.String(), err)
	}
	if !changed {
		return fmt.Errorf("mark blob %s as failed: %w", blobId.String(), ErrInvalidTransition)
	}
	return nil
}

func (sm *StatusMachine) ResetFailedToPending(ctx context.Context) (int64, error) {
	return sm.updateStatuses(ctx, blob.StatusFailed, blob.StatusPending)
}

// ResetInProgressToPending releases claims left behind by a crashed run.
// Only call it when no run is active, otherwise a blob may be uploaded twice.
func (sm *StatusMachine) ResetInProgressToPending(ctx context.Context) (int64, error) {
	return sm.updateStatuses(ctx, blob.StatusInProgress, blob.StatusPending)
}

func (sm *StatusMachine) updateStatuses(ctx context.Context, from blob.Status, to blob.Status) (int64, error) {
	var moved int64
	err := sm.inTx(ctx, false, func(tx *sql.Tx) error {
		var err error
		moved, err = sm.blobStore.UpdateStatuses(ctx, tx, from, to)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("move blobs from %s to %s: %w", from, to, err)
	}
	return moved, nil
}
