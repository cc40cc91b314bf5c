package offload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/offload/statusmachine"
	"github.com/jdillenkofer/blobshift/internal/offload/uploader/mock"
	"github.com/jdillenkofer/blobshift/internal/ptrutils"
	"github.com/jdillenkofer/blobshift/internal/storage/blobstore"
	sqlBlobStore "github.com/jdillenkofer/blobshift/internal/storage/blobstore/sql"
	"github.com/jdillenkofer/blobshift/internal/storage/database"
	"github.com/jdillenkofer/blobshift/internal/storage/database/repository"
	sqliteDatabase "github.com/jdillenkofer/blobshift/internal/storage/database/sqlite"
	testutils "github.com/jdillenkofer/blobshift/internal/testing"
	"github.com/stretchr/testify/assert"
)

type fixture struct {
	db            database.Database
	blobStore     blobstore.BlobStore
	statusMachine *statusmachine.StatusMachine
}

func setupFixture(t *testing.T) *fixture {
	db, err := sqliteDatabase.OpenDatabase(filepath.Join(t.TempDir(), "blobshift.db"))
	assert.Nil(t, err)
	t.Cleanup(func() { db.Close() })
	blobRepository, err := repository.NewBlobRepository(db)
	assert.Nil(t, err)
	bs, err := sqlBlobStore.New(blobRepository)
	assert.Nil(t, err)
	sm, err := statusmachine.New(db, bs)
	assert.Nil(t, err)
	return &fixture{db: db, blobStore: bs, statusMachine: sm}
}

func (f *fixture) newEngine(t *testing.T, enabled bool, mockUploader *mock.MockUploader) *Engine {
	engine, err := New(enabled, f.statusMachine, mockUploader, Options{PurgeUploadedContent: true})
	assert.Nil(t, err)
	return engine
}

func (f *fixture) putPendingBlobs(t *testing.T, n int) []blob.BlobId {
	ctx := context.Background()
	blobIds := []blob.BlobId{}
	for i := range n {
		tx, err := f.db.BeginTx(ctx, &sql.TxOptions{})
		assert.Nil(t, err)
		b, err := f.blobStore.PutBlob(ctx, tx, []byte(fmt.Sprintf("attachment %d", i)), ptrutils.ToPtr("application/octet-stream"))
		assert.Nil(t, err)
		assert.Nil(t, tx.Commit())
		blobIds = append(blobIds, b.Id)
	}
	return blobIds
}

func (f *fixture) load(t *testing.T, blobId blob.BlobId) *blob.Blob {
	b, err := f.statusMachine.Load(context.Background(), blobId)
	assert.Nil(t, err)
	return b
}

func (f *fixture) count(t *testing.T, status blob.Status) int64 {
	count, err := f.statusMachine.Count(context.Background(), status.String())
	assert.Nil(t, err)
	return count
}

func TestRunWithoutPendingBlobs(t *testing.T) {
	testutils.SkipIfIntegration(t)
	f := setupFixture(t)
	mockUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	engine := f.newEngine(t, true, mockUploader)

	result, err := engine.Run(context.Background(), RunOptions{})
	assert.Nil(t, err)
	assert.Equal(t, &RunResult{}, result)
	assert.Empty(t, mockUploader.Attempted())
}

func TestRunUploadsAllPendingBlobs(t *testing.T) {
	testutils.SkipIfIntegration(t)
	f := setupFixture(t)
	blobIds := f.putPendingBlobs(t, 5)
	mockUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	engine := f.newEngine(t, true, mockUploader)

	result, err := engine.Run(context.Background(), RunOptions{})
	assert.Nil(t, err)
	assert.Equal(t, &RunResult{Pending: 5, Claimed: 5, Succeeded: 5}, result)
	assert.Equal(t, blobIds, mockUploader.Attempted())
	for _, blobId := range blobIds {
		b := f.load(t, blobId)
		assert.Equal(t, blob.StatusUploaded, b.Status)
		assert.NotNil(t, b.StorageKey)
		assert.False(t, b.HasContent())
	}
	assert.Equal(t, int64(0), f.count(t, blob.StatusPending))
}

func TestRunKeepsContentWithoutPurge(t *testing.T) {
	testutils.SkipIfIntegration(t)
	f := setupFixture(t)
	blobIds := f.putPendingBlobs(t, 1)
	mockUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	engine, err := New(true, f.statusMachine, mockUploader, Options{PurgeUploadedContent: false})
	assert.Nil(t, err)

	_, err = engine.Run(context.Background(), RunOptions{})
	assert.Nil(t, err)
	b := f.load(t, blobIds[0])
	assert.Equal(t, blob.StatusUploaded, b.Status)
	assert.True(t, b.HasContent())
}

func TestRunIsolatesFailingBlob(t *testing.T) {
	testutils.SkipIfIntegration(t)
	ctx := context.Background()
	f := setupFixture(t)
	blobIds := f.putPendingBlobs(t, 4)
	failingBlobId := blobIds[1]
	mockUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	mockUploader.FailWhen = func(b *blob.Blob) bool {
		return b.Id == failingBlobId
	}
	engine := f.newEngine(t, true, mockUploader)

	result, err := engine.Run(ctx, RunOptions{})
	assert.Equal(t, &RunResult{Pending: 4, Claimed: 4, Succeeded: 3, Failed: 1}, result)
	var batchUploadError *blob.BatchUploadError
	assert.ErrorAs(t, err, &batchUploadError)
	assert.Equal(t, 1, batchUploadError.Failed)
	assert.Equal(t, 3, batchUploadError.Succeeded)
	var uploadError *blob.UploadError
	assert.ErrorAs(t, err, &uploadError)
	assert.Equal(t, failingBlobId, uploadError.BlobId)
	assert.ErrorIs(t, err, mock.ErrMockUploadFailed)

	assert.Len(t, mockUploader.Attempted(), 4)
	assert.Equal(t, blob.StatusFailed, f.load(t, failingBlobId).Status)
	assert.True(t, f.load(t, failingBlobId).HasContent())
	assert.Equal(t, int64(3), f.count(t, blob.StatusUploaded))

	mockUploader.FailWhen = nil
	moved, err := engine.ResetFailedToPending(ctx)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), moved)

	result, err = engine.Run(ctx, RunOptions{})
	assert.Nil(t, err)
	assert.Equal(t, &RunResult{Pending: 1, Claimed: 1, Succeeded: 1}, result)
	assert.Equal(t, int64(4), f.count(t, blob.StatusUploaded))
	assert.Len(t, mockUploader.Attempted(), 5)
}

var errDatabaseLocked = errors.New("database is locked")

// claimFailingBlobStore fails the n-th pending -> in_progress compare-and-set.
type claimFailingBlobStore struct {
	blobstore.BlobStore
	mu     sync.Mutex
	claims int
	failAt int
}

func (bs *claimFailingBlobStore) CompareAndSetStatus(ctx context.Context, tx *sql.Tx, blobId blob.BlobId, from blob.Status, to blob.Status) (bool, error) {
	if from == blob.StatusPending && to == blob.StatusInProgress {
		bs.mu.Lock()
		bs.claims += 1
		claims := bs.claims
		bs.mu.Unlock()
		if claims == bs.failAt {
			return false, errDatabaseLocked
		}
	}
	return bs.BlobStore.CompareAndSetStatus(ctx, tx, blobId, from, to)
}

func TestRunUploadsBlobsClaimedBeforeClaimFailure(t *testing.T) {
	testutils.SkipIfIntegration(t)
	ctx := context.Background()
	f := setupFixture(t)
	blobIds := f.putPendingBlobs(t, 4)
	failingStatusMachine, err := statusmachine.New(f.db, &claimFailingBlobStore{BlobStore: f.blobStore, failAt: 3})
	assert.Nil(t, err)
	mockUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	engine, err := New(true, failingStatusMachine, mockUploader, Options{PurgeUploadedContent: true})
	assert.Nil(t, err)

	result, err := engine.Run(ctx, RunOptions{})
	assert.Equal(t, &RunResult{Pending: 4, Claimed: 2, Succeeded: 2, Failed: 1}, result)
	var batchUploadError *blob.BatchUploadError
	assert.ErrorAs(t, err, &batchUploadError)
	assert.ErrorIs(t, err, errDatabaseLocked)
	var uploadError *blob.UploadError
	assert.ErrorAs(t, err, &uploadError)
	assert.Equal(t, blobIds[2], uploadError.BlobId)
	assert.Equal(t, blobIds[:2], mockUploader.Attempted())
	assert.Equal(t, blob.StatusUploaded, f.load(t, blobIds[0]).Status)
	assert.Equal(t, blob.StatusUploaded, f.load(t, blobIds[1]).Status)
	assert.Equal(t, int64(0), f.count(t, blob.StatusInProgress))
	assert.Equal(t, int64(2), f.count(t, blob.StatusPending))

	engine = f.newEngine(t, true, mockUploader)
	result, err = engine.Run(ctx, RunOptions{})
	assert.Nil(t, err)
	assert.Equal(t, &RunResult{Pending: 2, Claimed: 2, Succeeded: 2}, result)
	assert.Equal(t, int64(4), f.count(t, blob.StatusUploaded))
}

func TestRunHonorsLimit(t *testing.T) {
	testutils.SkipIfIntegration(t)
	f := setupFixture(t)
	blobIds := f.putPendingBlobs(t, 3)
	mockUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	engine := f.newEngine(t, true, mockUploader)

	result, err := engine.Run(context.Background(), RunOptions{Limit: ptrutils.ToPtr(2)})
	assert.Nil(t, err)
	assert.Equal(t, &RunResult{Pending: 3, Claimed: 2, Succeeded: 2}, result)
	assert.Equal(t, blobIds[:2], mockUploader.Attempted())
	assert.Equal(t, int64(1), f.count(t, blob.StatusPending))
}

func TestOverlappingRunsDoNotShareBlobs(t *testing.T) {
	testutils.SkipIfIntegration(t)
	ctx := context.Background()
	f := setupFixture(t)
	blobIds := f.putPendingBlobs(t, 3)

	blockedUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	blockedUploader.Started = make(chan blob.BlobId, len(blobIds))
	blockedUploader.Block = make(chan struct{})
	firstEngine := f.newEngine(t, true, blockedUploader)

	secondUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	secondEngine := f.newEngine(t, true, secondUploader)

	var firstResult *RunResult
	var firstErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstResult, firstErr = firstEngine.Run(ctx, RunOptions{})
	}()
	// the first run holds every claim while its first upload is blocked
	<-blockedUploader.Started

	secondResult, err := secondEngine.Run(ctx, RunOptions{})
	assert.Nil(t, err)
	assert.Equal(t, 0, secondResult.Claimed)
	assert.Empty(t, secondUploader.Attempted())

	close(blockedUploader.Block)
	wg.Wait()
	assert.Nil(t, firstErr)
	assert.Equal(t, 3, firstResult.Succeeded)
	assert.Equal(t, blobIds, blockedUploader.Attempted())
	assert.Equal(t, int64(3), f.count(t, blob.StatusUploaded))
}

func TestConcurrentRunsUploadEveryBlobOnce(t *testing.T) {
	testutils.SkipIfIntegration(t)
	ctx := context.Background()
	f := setupFixture(t)
	blobIds := f.putPendingBlobs(t, 20)

	uploaders := []*mock.MockUploader{}
	var wg sync.WaitGroup
	for range 4 {
		mockUploader, err := mock.NewMockUploader()
		assert.Nil(t, err)
		uploaders = append(uploaders, mockUploader)
		engine := f.newEngine(t, true, mockUploader)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Run(ctx, RunOptions{})
			assert.Nil(t, err)
		}()
	}
	wg.Wait()

	attempts := map[blob.BlobId]int{}
	for _, mockUploader := range uploaders {
		for _, blobId := range mockUploader.Attempted() {
			attempts[blobId] += 1
		}
	}
	assert.Len(t, attempts, len(blobIds))
	for _, blobId := range blobIds {
		assert.Equal(t, 1, attempts[blobId])
	}
	assert.Equal(t, int64(20), f.count(t, blob.StatusUploaded))
}

func TestDisabledEngineTouchesNothing(t *testing.T) {
	testutils.SkipIfIntegration(t)
	ctx := context.Background()
	f := setupFixture(t)
	f.putPendingBlobs(t, 2)
	mockUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	engine := f.newEngine(t, false, mockUploader)

	_, err = engine.CountBlobs(ctx, "pending")
	assert.ErrorIs(t, err, blob.ErrFeatureDisabled)
	_, err = engine.CountBlobs(ctx, "unknown")
	assert.ErrorIs(t, err, blob.ErrFeatureDisabled)
	_, err = engine.PendingCount(ctx)
	assert.ErrorIs(t, err, blob.ErrFeatureDisabled)
	_, err = engine.ResetFailedToPending(ctx)
	assert.ErrorIs(t, err, blob.ErrFeatureDisabled)
	_, err = engine.ResetInProgressToPending(ctx)
	assert.ErrorIs(t, err, blob.ErrFeatureDisabled)
	result, err := engine.Run(ctx, RunOptions{})
	assert.ErrorIs(t, err, blob.ErrFeatureDisabled)
	assert.Nil(t, result)

	assert.Empty(t, mockUploader.Attempted())
	assert.Equal(t, int64(2), f.count(t, blob.StatusPending))
}

func TestCountBlobsRejectsUnknownStatus(t *testing.T) {
	testutils.SkipIfIntegration(t)
	f := setupFixture(t)
	mockUploader, err := mock.NewMockUploader()
	assert.Nil(t, err)
	engine := f.newEngine(t, true, mockUploader)

	_, err = engine.CountBlobs(context.Background(), "unknown")
	assert.True(t, errors.Is(err, blob.ErrInvalidStatus))
}
