package blob

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type BlobId = ulid.ULID

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusUploaded   Status = "uploaded"
	StatusFailed     Status = "failed"
)

// Statuses lists every status the s3_status column can hold.
var Statuses = []Status{StatusPending, StatusInProgress, StatusUploaded, StatusFailed}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// ParseStatus validates a status received from the outside
// (command line, configuration) before it reaches the database.
func ParseStatus(value string) (Status, error) {
	status := Status(value)
	if !status.IsValid() {
		return "", &InvalidStatusError{Value: value}
	}
	return status, nil
}

// Blob is a single attachment payload identified by its content digests.
// Content is nil once the blob was offloaded and the local copy purged.
type Blob struct {
	Id          BlobId
	Sha         string
	Md5         string
	Content     []byte
	ContentType *string
	Status      Status
	StorageKey  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (b *Blob) HasContent() bool {
	return b.Content != nil
}
