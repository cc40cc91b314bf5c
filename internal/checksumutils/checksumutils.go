package checksumutils

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
)

var ErrInvalidDigest = errors.New("invalid digest")

// ContentDigests is the identity of a blob: two independent digests
// over the same bytes, both hex encoded.
type ContentDigests struct {
	Sha1 string
	Md5  string
}

// CalculateContentDigests reads the reader to the end once and feeds
// both hashes from the same pass.
func CalculateContentDigests(ctx context.Context, reader io.Reader) (*int64, *ContentDigests, error) {
	tracer := otel.Tracer("internal/checksumutils")
	_, span := tracer.Start(ctx, "CalculateContentDigests")
	defer span.End()

	sha1Hash := sha1.New()
	md5Hash := md5.New()
	size, err := io.Copy(io.MultiWriter(sha1Hash, md5Hash), reader)
	if err != nil {
		return nil, nil, err
	}
	return &size, &ContentDigests{
		Sha1: hex.EncodeToString(sha1Hash.Sum([]byte{})),
		Md5:  hex.EncodeToString(md5Hash.Sum([]byte{})),
	}, nil
}

// Md5HexToBase64 converts a hex md5 digest into the base64 form
// expected by the Content-MD5 header.
func Md5HexToBase64(md5Hex string) (*string, error) {
	sum, err := hex.DecodeString(md5Hex)
	if err != nil {
		return nil, err
	}
	if len(sum) != md5.Size {
		return nil, ErrInvalidDigest
	}
	base64Sum := base64.StdEncoding.EncodeToString(sum)
	return &base64Sum, nil
}
