package sql

import (
	"bytes"
	"context"
	"database/sql"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/checksumutils"
	"github.com/jdillenkofer/blobshift/internal/lifecycle"
	"github.com/jdillenkofer/blobshift/internal/storage/blobstore"
	blobRepository "github.com/jdillenkofer/blobshift/internal/storage/database/repository/blob"
)

type sqlBlobStore struct {
	*lifecycle.ValidatedLifecycle
	blobRepository blobRepository.Repository
}

// Compile-time check to ensure sqlBlobStore implements blobstore.BlobStore
var _ blobstore.BlobStore = (*sqlBlobStore)(nil)

func New(blobRepository blobRepository.Repository) (blobstore.BlobStore, error) {
	validatedLifecycle, err := lifecycle.NewValidatedLifecycle("sqlBlobStore")
	if err != nil {
		return nil, err
	}
	return &sqlBlobStore{
		ValidatedLifecycle: validatedLifecycle,
		blobRepository:     blobRepository,
	}, nil
}

func convertBlobEntityToBlob(blobEntity *blobRepository.Entity) *blob.Blob {
	return &blob.Blob{
		Id:          *blobEntity.Id,
		Sha:         blobEntity.Sha,
		Md5:         blobEntity.Md5,
		Content:     blobEntity.Content,
		ContentType: blobEntity.ContentType,
		Status:      blob.Status(blobEntity.Status),
		StorageKey:  blobEntity.StorageKey,
		CreatedAt:   blobEntity.CreatedAt,
		UpdatedAt:   blobEntity.UpdatedAt,
	}
}

func validateStatuses(statuses ...blob.Status) error {
	for _, status := range statuses {
		if !status.IsValid() {
			return &blob.InvalidStatusError{Value: string(status)}
		}
	}
	return nil
}

func (bs *sqlBlobStore) PutBlob(ctx context.Context, tx *sql.Tx, content []byte, contentType *string) (*blob.Blob, error) {
	if content == nil {
		content = []byte{}
	}
	_, digests, err := checksumutils.CalculateContentDigests(ctx, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	existingBlobEntity, err := bs.blobRepository.FindBlobByDigests(ctx, tx, digests.Sha1, digests.Md5)
	if err != nil {
		return nil, err
	}
	if existingBlobEntity != nil {
		return convertBlobEntityToBlob(existingBlobEntity), nil
	}

	blobEntity := blobRepository.Entity{
		Sha:         digests.Sha1,
		Md5:         digests.Md5,
		Content:     content,
		ContentType: contentType,
		Status:      string(blob.StatusPending),
	}
	err = bs.blobRepository.SaveBlob(ctx, tx, &blobEntity)
	if err != nil {
		return nil, err
	}
	return convertBlobEntityToBlob(&blobEntity), nil
}

func (bs *sqlBlobStore) GetBlob(ctx context.Context, tx *sql.Tx, blobId blob.BlobId) (*blob.Blob, error) {
	blobEntity, err := bs.blobRepository.FindBlobById(ctx, tx, blobId)
	if err != nil {
		return nil, err
	}
	if blobEntity == nil {
		return nil, blobstore.ErrBlobNotFound
	}
	return convertBlobEntityToBlob(blobEntity), nil
}

func (bs *sqlBlobStore) CountBlobsByStatus(ctx context.Context, tx *sql.Tx, status blob.Status) (int64, error) {
	if err := validateStatuses(status); err != nil {
		return 0, err
	}
	return bs.blobRepository.CountBlobsByStatus(ctx, tx, string(status))
}

func (bs *sqlBlobStore) FindBlobIdsByStatus(ctx context.Context, tx *sql.Tx, status blob.Status, limit *int) ([]blob.BlobId, error) {
	if err := validateStatuses(status); err != nil {
		return nil, err
	}
	return bs.blobRepository.FindBlobIdsByStatus(ctx, tx, string(status), limit)
}

func (bs *sqlBlobStore) CompareAndSetStatus(ctx context.Context, tx *sql.Tx, blobId blob.BlobId, from blob.Status, to blob.Status) (bool, error) {
	if err := validateStatuses(from, to); err != nil {
		return false, err
	}
	return bs.blobRepository.CompareAndSetStatus(ctx, tx, blobId, string(from), string(to))
}

func (bs *sqlBlobStore) CompleteUpload(ctx context.Context, tx *sql.Tx, blobId blob.BlobId, storageKey string, purgeContent bool) (bool, error) {
	return bs.blobRepository.CompleteUpload(ctx, tx, blobId, storageKey, purgeContent)
}

func (bs *sqlBlobStore) UpdateStatuses(ctx context.Context, tx *sql.Tx, from blob.Status, to blob.Status) (int64, error) {
	if err := validateStatuses(from, to); err != nil {
		return 0, err
	}
	return bs.blobRepository.UpdateStatuses(ctx, tx, string(from), string(to))
}
