package offload

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/offload/statusmachine"
	"github.com/jdillenkofer/blobshift/internal/offload/uploader"
)

type Options struct {
	PurgeUploadedContent bool
}

type RunOptions struct {
	// Limit bounds the number of blobs claimed by one run. Nil claims all pending blobs.
	Limit *int
}

type RunResult struct {
	Pending   int64
	Claimed   int
	Succeeded int
	Failed    int
}

// Engine is the entry point of the offload feature. Every operation
// fails with blob.ErrFeatureDisabled without touching the store when the
// feature flag is off.
type Engine struct {
	enabled       bool
	statusMachine *statusmachine.StatusMachine
	uploader      uploader.Uploader
	options       Options
}

func New(enabled bool, statusMachine *statusmachine.StatusMachine, uploader uploader.Uploader, options Options) (*Engine, error) {
	return &Engine{
		enabled:       enabled,
		statusMachine: statusMachine,
		uploader:      uploader,
		options:       options,
	}, nil
}

// EnsureEnabled returns blob.ErrFeatureDisabled when the feature flag is off.
func (e *Engine) EnsureEnabled() error {
	if !e.enabled {
		return blob.ErrFeatureDisabled
	}
	return nil
}

func (e *Engine) CountBlobs(ctx context.Context, status string) (int64, error) {
	if err := e.EnsureEnabled(); err != nil {
		return 0, err
	}
	return e.statusMachine.Count(ctx, status)
}

func (e *Engine) PendingCount(ctx context.Context) (int64, error) {
	return e.CountBlobs(ctx, blob.StatusPending.String())
}

func (e *Engine) ResetFailedToPending(ctx context.Context) (int64, error) {
	if err := e.EnsureEnabled(); err != nil {
		return 0, err
	}
	return e.statusMachine.ResetFailedToPending(ctx)
}

// ResetInProgressToPending must only be used while no run is active.
func (e *Engine) ResetInProgressToPending(ctx context.Context) (int64, error) {
	if err := e.EnsureEnabled(); err != nil {
		return 0, err
	}
	return e.statusMachine.ResetInProgressToPending(ctx)
}

// Run claims pending blobs and uploads them one after another.
// A failing blob is marked failed and the run continues with the next one.
// A failed claim ends claiming; blobs claimed before it are still uploaded
// and the failed claim is counted as a failure.
// If any blob failed, the returned error is a *blob.BatchUploadError and
// the result still describes the whole run.
func (e *Engine) Run(ctx context.Context, runOptions RunOptions) (*RunResult, error) {
	if err := e.EnsureEnabled(); err != nil {
		return nil, err
	}
	pending, err := e.statusMachine.Count(ctx, blob.StatusPending.String())
	if err != nil {
		return nil, err
	}
	result := &RunResult{Pending: pending}
	slog.Info("Found pending blobs", "count", pending)

	claimedBlobIds, err := e.statusMachine.ClaimPending(ctx, runOptions.Limit)
	result.Claimed = len(claimedBlobIds)
	var claimError *statusmachine.ClaimError
	if err != nil && !errors.As(err, &claimError) {
		return result, err
	}
	if claimError != nil {
		slog.Warn("Claiming pending blobs stopped early", "blobId", claimError.BlobId.String(), "claimed", result.Claimed, "error", claimError.Cause)
	}

	var firstErr error
	for _, blobId := range claimedBlobIds {
		err := e.offloadBlob(ctx, blobId)
		if err != nil {
			slog.Warn("Blob upload failed", "blobId", blobId.String(), "error", err)
			result.Failed += 1
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.Succeeded += 1
	}
	if claimError != nil {
		result.Failed += 1
		if firstErr == nil {
			firstErr = &blob.UploadError{BlobId: claimError.BlobId, Cause: claimError}
		}
	}

	slog.Info("Offload run finished", "claimed", result.Claimed, "succeeded", result.Succeeded, "failed", result.Failed)
	if firstErr != nil {
		return result, &blob.BatchUploadError{Failed: result.Failed, Succeeded: result.Succeeded, First: firstErr}
	}
	return result, nil
}

func (e *Engine) offloadBlob(ctx context.Context, blobId blob.BlobId) error {
	b, err := e.statusMachine.Load(ctx, blobId)
	if err != nil {
		return e.recordFailure(ctx, blobId, err)
	}
	storageKey, err := e.uploader.Upload(ctx, b)
	if err != nil {
		return e.recordFailure(ctx, blobId, err)
	}
	err = e.statusMachine.CommitSuccess(ctx, blobId, storageKey, e.options.PurgeUploadedContent)
	if err != nil {
		return e.recordFailure(ctx, blobId, err)
	}
	slog.Debug("Blob uploaded", "blobId", blobId.String(), "storageKey", storageKey)
	return nil
}

func (e *Engine) recordFailure(ctx context.Context, blobId blob.BlobId, cause error) error {
	err := e.statusMachine.CommitFailure(ctx, blobId)
	if err != nil {
		slog.Error("Could not mark blob as failed", "blobId", blobId.String(), "error", err)
	}
	if _, ok := cause.(*blob.UploadError); ok {
		return cause
	}
	return &blob.UploadError{BlobId: blobId, Cause: cause}
}
