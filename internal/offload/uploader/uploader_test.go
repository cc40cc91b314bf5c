package uploader

import (
	"testing"

	"github.com/jdillenkofer/blobshift/internal/blob"
	testutils "github.com/jdillenkofer/blobshift/internal/testing"
	"github.com/stretchr/testify/assert"
)

var testBlob = &blob.Blob{
	Sha: "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d",
	Md5: "5d41402abc4b2a76b9719d911017c592",
}

func TestDigestKeyStrategy(t *testing.T) {
	testutils.SkipIfIntegration(t)
	keyStrategy := DigestKeyStrategy("attachments/")
	assert.Equal(t, "attachments/blob_md5_5d41402abc4b2a76b9719d911017c592_sha_aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", keyStrategy(testBlob))
	assert.Equal(t, keyStrategy(testBlob), keyStrategy(testBlob))
}

func TestShardedKeyStrategy(t *testing.T) {
	testutils.SkipIfIntegration(t)
	keyStrategy := ShardedKeyStrategy("")
	assert.Equal(t, "sha1/aa/aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", keyStrategy(testBlob))
}

func TestNewKeyStrategy(t *testing.T) {
	testutils.SkipIfIntegration(t)
	keyStrategy, err := NewKeyStrategy("", "p/")
	assert.Nil(t, err)
	assert.Equal(t, DigestKeyStrategy("p/")(testBlob), keyStrategy(testBlob))

	keyStrategy, err = NewKeyStrategy(KEY_STRATEGY_SHARDED, "p/")
	assert.Nil(t, err)
	assert.Equal(t, "p/sha1/aa/"+testBlob.Sha, keyStrategy(testBlob))

	_, err = NewKeyStrategy("random", "")
	assert.ErrorIs(t, err, ErrUnknownKeyStrategy)
}
