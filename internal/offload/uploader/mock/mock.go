package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/offload/uploader"
)

var ErrMockUploadFailed = errors.New("mock upload failed")

// MockUploader records every attempt in memory. FailWhen decides per blob
// whether the attempt fails; Block, if set, is received from before each upload returns.
type MockUploader struct {
	mu          sync.Mutex
	keyStrategy uploader.KeyStrategy
	attempted   []blob.BlobId
	successful  []blob.BlobId
	FailWhen    func(b *blob.Blob) bool
	Started     chan blob.BlobId
	Block       chan struct{}
}

// Compile-time check to ensure MockUploader implements uploader.Uploader
var _ uploader.Uploader = (*MockUploader)(nil)

func NewMockUploader() (*MockUploader, error) {
	return &MockUploader{
		keyStrategy: uploader.DigestKeyStrategy(""),
	}, nil
}

func (*MockUploader) Start(ctx context.Context) error {
	return nil
}

func (*MockUploader) Stop(ctx context.Context) error {
	return nil
}

func (mu *MockUploader) Upload(ctx context.Context, b *blob.Blob) (string, error) {
	mu.mu.Lock()
	mu.attempted = append(mu.attempted, b.Id)
	mu.mu.Unlock()

	if mu.Started != nil {
		mu.Started <- b.Id
	}
	if mu.Block != nil {
		<-mu.Block
	}
	if mu.FailWhen != nil && mu.FailWhen(b) {
		return "", &blob.UploadError{BlobId: b.Id, Cause: ErrMockUploadFailed}
	}

	mu.mu.Lock()
	defer mu.mu.Unlock()
	mu.successful = append(mu.successful, b.Id)
	return mu.keyStrategy(b), nil
}

func (mu *MockUploader) Attempted() []blob.BlobId {
	mu.mu.Lock()
	defer mu.mu.Unlock()
	return append([]blob.BlobId{}, mu.attempted...)
}

func (mu *MockUploader) Successful() []blob.BlobId {
	mu.mu.Lock()
	defer mu.mu.Unlock()
	return append([]blob.BlobId{}, mu.successful...)
}
