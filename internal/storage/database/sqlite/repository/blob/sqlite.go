package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jdillenkofer/blobshift/internal/storage/database/repository/blob"
	"github.com/oklog/ulid/v2"
)

type sqliteRepository struct {
}

// Compile-time check to ensure sqliteRepository implements blob.Repository
var _ blob.Repository = (*sqliteRepository)(nil)

const (
	findBlobByIdStmt                  = "SELECT id, sha, md5, content, content_type, s3_status, s3_storage_key, created_at, updated_at FROM blobs WHERE id = $1"
	findBlobByDigestsStmt             = "SELECT id, sha, md5, content, content_type, s3_status, s3_storage_key, created_at, updated_at FROM blobs WHERE sha = $1 AND md5 = $2"
	findBlobIdsByStatusStmt           = "SELECT id FROM blobs WHERE s3_status = $1 ORDER BY id ASC"
	findBlobIdsByStatusWithLimitStmt  = "SELECT id FROM blobs WHERE s3_status = $1 ORDER BY id ASC LIMIT $2"
	countBlobsByStatusStmt            = "SELECT COUNT(*) FROM blobs WHERE s3_status = $1"
	insertBlobStmt                    = "INSERT INTO blobs (id, sha, md5, content, content_type, s3_status, s3_storage_key, created_at, updated_at) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)"
	compareAndSetStatusStmt           = "UPDATE blobs SET s3_status = $1, updated_at = $2 WHERE id = $3 AND s3_status = $4"
	completeUploadStmt                = "UPDATE blobs SET s3_status = 'uploaded', s3_storage_key = $1, updated_at = $2 WHERE id = $3 AND s3_status = 'in_progress'"
	completeUploadAndPurgeContentStmt = "UPDATE blobs SET s3_status = 'uploaded', s3_storage_key = $1, content = NULL, updated_at = $2 WHERE id = $3 AND s3_status = 'in_progress'"
	updateStatusesStmt                = "UPDATE blobs SET s3_status = $1, updated_at = $2 WHERE s3_status = $3"
)

func NewRepository() (blob.Repository, error) {
	return &sqliteRepository{}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func convertRowToBlobEntity(blobRow rowScanner) (*blob.Entity, error) {
	var id string
	var sha string
	var md5 string
	var content []byte
	var contentType sql.NullString
	var status string
	var storageKey sql.NullString
	var createdAt time.Time
	var updatedAt time.Time
	err := blobRow.Scan(&id, &sha, &md5, &content, &contentType, &status, &storageKey, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	ulidId, err := ulid.Parse(id)
	if err != nil {
		return nil, err
	}
	entity := blob.Entity{
		Id:        &ulidId,
		Sha:       sha,
		Md5:       md5,
		Content:   content,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if contentType.Valid {
		entity.ContentType = &contentType.String
	}
	if storageKey.Valid {
		entity.StorageKey = &storageKey.String
	}
	return &entity, nil
}

func (br *sqliteRepository) FindBlobById(ctx context.Context, tx *sql.Tx, id ulid.ULID) (*blob.Entity, error) {
	row := tx.QueryRowContext(ctx, findBlobByIdStmt, id.String())
	return convertRowToBlobEntity(row)
}

func (br *sqliteRepository) FindBlobByDigests(ctx context.Context, tx *sql.Tx, sha string, md5 string) (*blob.Entity, error) {
	row := tx.QueryRowContext(ctx, findBlobByDigestsStmt, sha, md5)
	return convertRowToBlobEntity(row)
}

func (br *sqliteRepository) FindBlobIdsByStatus(ctx context.Context, tx *sql.Tx, status string, limit *int) ([]ulid.ULID, error) {
	var blobIdRows *sql.Rows
	var err error
	if limit != nil {
		blobIdRows, err = tx.QueryContext(ctx, findBlobIdsByStatusWithLimitStmt, status, *limit)
	} else {
		blobIdRows, err = tx.QueryContext(ctx, findBlobIdsByStatusStmt, status)
	}
	if err != nil {
		return nil, err
	}
	defer blobIdRows.Close()
	blobIds := []ulid.ULID{}
	for blobIdRows.Next() {
		var blobIdStr string
		err := blobIdRows.Scan(&blobIdStr)
		if err != nil {
			return nil, err
		}
		blobId, err := ulid.Parse(blobIdStr)
		if err != nil {
			return nil, err
		}
		blobIds = append(blobIds, blobId)
	}
	if err := blobIdRows.Err(); err != nil {
		return nil, err
	}
	return blobIds, nil
}

func (br *sqliteRepository) CountBlobsByStatus(ctx context.Context, tx *sql.Tx, status string) (int64, error) {
	var count int64
	err := tx.QueryRowContext(ctx, countBlobsByStatusStmt, status).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (br *sqliteRepository) SaveBlob(ctx context.Context, tx *sql.Tx, blobEntity *blob.Entity) error {
	if blobEntity.Id == nil {
		id := ulid.Make()
		blobEntity.Id = &id
	}
	if blobEntity.Status == "" {
		blobEntity.Status = blob.StatusPending
	}
	blobEntity.CreatedAt = time.Now()
	blobEntity.UpdatedAt = blobEntity.CreatedAt
	_, err := tx.ExecContext(ctx, insertBlobStmt, blobEntity.Id.String(), blobEntity.Sha, blobEntity.Md5, blobEntity.Content, blobEntity.ContentType, blobEntity.Status, blobEntity.StorageKey, blobEntity.CreatedAt, blobEntity.UpdatedAt)
	return err
}

func (br *sqliteRepository) CompareAndSetStatus(ctx context.Context, tx *sql.Tx, id ulid.ULID, from string, to string) (bool, error) {
	result, err := tx.ExecContext(ctx, compareAndSetStatusStmt, to, time.Now(), id.String(), from)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

func (br *sqliteRepository) CompleteUpload(ctx context.Context, tx *sql.Tx, id ulid.ULID, storageKey string, purgeContent bool) (bool, error) {
	stmt := completeUploadStmt
	if purgeContent {
		stmt = completeUploadAndPurgeContentStmt
	}
	result, err := tx.ExecContext(ctx, stmt, storageKey, time.Now(), id.String())
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

func (br *sqliteRepository) UpdateStatuses(ctx context.Context, tx *sql.Tx, from string, to string) (int64, error) {
	result, err := tx.ExecContext(ctx, updateStatusesStmt, to, time.Now(), from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
