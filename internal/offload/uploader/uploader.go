package uploader

import (
	"context"
	"errors"

	"github.com/jdillenkofer/blobshift/internal/blob"
)

const (
	KEY_STRATEGY_DIGEST  = "digest"
	KEY_STRATEGY_SHARDED = "sharded"
)

var ErrUnknownKeyStrategy = errors.New("unknown key strategy")

// Uploader transfers the content of a single blob to the object store and
// returns the key it was stored under. It never changes the blob status.
// Failures are returned as *blob.UploadError.
type Uploader interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Upload(ctx context.Context, b *blob.Blob) (string, error)
}

// KeyStrategy derives the object key from the blob identity.
// It must be deterministic so a repeated upload overwrites the same object.
type KeyStrategy func(b *blob.Blob) string

func DigestKeyStrategy(prefix string) KeyStrategy {
	return func(b *blob.Blob) string {
		return prefix + "blob_md5_" + b.Md5 + "_sha_" + b.Sha
	}
}

func ShardedKeyStrategy(prefix string) KeyStrategy {
	return func(b *blob.Blob) string {
		shard := b.Sha
		if len(shard) > 2 {
			shard = shard[:2]
		}
		return prefix + "sha1/" + shard + "/" + b.Sha
	}
}

func NewKeyStrategy(name string, prefix string) (KeyStrategy, error) {
	switch name {
	case "", KEY_STRATEGY_DIGEST:
		return DigestKeyStrategy(prefix), nil
	case KEY_STRATEGY_SHARDED:
		return ShardedKeyStrategy(prefix), nil
	}
	return nil, ErrUnknownKeyStrategy
}
