package blob

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jdillenkofer/blobshift/internal/storage/database"
)

func inWriteTx(ctx context.Context, db database.Database, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: false})
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

// Tester runs the same scenario against any dialect implementation of Repository.
// It expects an empty blobs table.
func Tester(repository Repository, db database.Database) error {
	ctx := context.Background()

	statuses := []string{StatusPending, StatusUploaded, StatusUploaded, StatusFailed, StatusFailed, StatusFailed}
	entities := []*Entity{}
	for i, status := range statuses {
		entity := &Entity{
			Sha:     fmt.Sprintf("sha-%d", i),
			Md5:     fmt.Sprintf("md5-%d", i),
			Content: []byte(fmt.Sprintf("content-%d", i)),
			Status:  status,
		}
		err := inWriteTx(ctx, db, func(tx *sql.Tx) error {
			return repository.SaveBlob(ctx, tx, entity)
		})
		if err != nil {
			return err
		}
		if entity.Id == nil {
			return errors.New("SaveBlob did not assign an id")
		}
		entities = append(entities, entity)
	}

	expectedCounts := map[string]int64{StatusPending: 1, StatusInProgress: 0, StatusUploaded: 2, StatusFailed: 3}
	for status, expectedCount := range expectedCounts {
		var count int64
		err := inWriteTx(ctx, db, func(tx *sql.Tx) error {
			var err error
			count, err = repository.CountBlobsByStatus(ctx, tx, status)
			return err
		})
		if err != nil {
			return err
		}
		if count != expectedCount {
			return fmt.Errorf("expected %d blobs with status %s, got %d", expectedCount, status, count)
		}
	}

	contentType := "image/png"
	typed := &Entity{Sha: "sha-typed", Md5: "md5-typed", Content: []byte("typed"), ContentType: &contentType}
	err := inWriteTx(ctx, db, func(tx *sql.Tx) error {
		return repository.SaveBlob(ctx, tx, typed)
	})
	if err != nil {
		return err
	}

	var found *Entity
	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		found, err = repository.FindBlobByDigests(ctx, tx, "sha-typed", "md5-typed")
		return err
	})
	if err != nil {
		return err
	}
	if found == nil || *found.Id != *typed.Id || found.ContentType == nil || *found.ContentType != contentType || found.Status != StatusPending {
		return errors.New("FindBlobByDigests returned an unexpected blob")
	}

	var failedIds []Entity
	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		ids, err := repository.FindBlobIdsByStatus(ctx, tx, StatusFailed, nil)
		if err != nil {
			return err
		}
		for _, id := range ids {
			failedIds = append(failedIds, Entity{Id: &id})
		}
		limit := 2
		limitedIds, err := repository.FindBlobIdsByStatus(ctx, tx, StatusFailed, &limit)
		if err != nil {
			return err
		}
		if len(limitedIds) != 2 || limitedIds[0] != ids[0] || limitedIds[1] != ids[1] {
			return errors.New("FindBlobIdsByStatus ignored the limit or the id order")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(failedIds) != 3 || *failedIds[0].Id != *entities[3].Id {
		return errors.New("FindBlobIdsByStatus returned unexpected ids")
	}

	pending := entities[0]
	var changed bool
	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		changed, err = repository.CompareAndSetStatus(ctx, tx, *pending.Id, StatusPending, StatusInProgress)
		return err
	})
	if err != nil {
		return err
	}
	if !changed {
		return errors.New("CompareAndSetStatus did not claim a pending blob")
	}
	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		changed, err = repository.CompareAndSetStatus(ctx, tx, *pending.Id, StatusPending, StatusInProgress)
		return err
	})
	if err != nil {
		return err
	}
	if changed {
		return errors.New("CompareAndSetStatus claimed the same blob twice")
	}

	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		changed, err = repository.CompleteUpload(ctx, tx, *entities[1].Id, "not-in-progress", true)
		return err
	})
	if err != nil {
		return err
	}
	if changed {
		return errors.New("CompleteUpload changed a blob that was not in progress")
	}

	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		changed, err = repository.CompleteUpload(ctx, tx, *pending.Id, "blob-key", true)
		return err
	})
	if err != nil {
		return err
	}
	if !changed {
		return errors.New("CompleteUpload did not complete an in progress blob")
	}
	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		found, err = repository.FindBlobById(ctx, tx, *pending.Id)
		return err
	})
	if err != nil {
		return err
	}
	if found == nil || found.Status != StatusUploaded || found.StorageKey == nil || *found.StorageKey != "blob-key" || found.Content != nil {
		return errors.New("CompleteUpload did not persist the uploaded state")
	}

	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		found, err = repository.FindBlobById(ctx, tx, *entities[3].Id)
		return err
	})
	if err != nil {
		return err
	}
	if found == nil || !bytes.Equal(found.Content, entities[3].Content) || found.StorageKey != nil {
		return errors.New("FindBlobById returned an unexpected blob")
	}

	var moved int64
	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		moved, err = repository.UpdateStatuses(ctx, tx, StatusFailed, StatusPending)
		return err
	})
	if err != nil {
		return err
	}
	if moved != 3 {
		return fmt.Errorf("expected UpdateStatuses to move 3 blobs, moved %d", moved)
	}

	var missing *Entity
	err = inWriteTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		missing, err = repository.FindBlobByDigests(ctx, tx, "unknown", "unknown")
		return err
	})
	if err != nil {
		return err
	}
	if missing != nil {
		return errors.New("FindBlobByDigests found a blob that does not exist")
	}
	return nil
}
