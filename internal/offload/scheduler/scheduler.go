package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jdillenkofer/blobshift/internal/blob"
	"github.com/jdillenkofer/blobshift/internal/lifecycle"
	"github.com/jdillenkofer/blobshift/internal/offload"
	"github.com/jdillenkofer/blobshift/internal/task"
)

var ErrRunStillActive = errors.New("offload run still active")

// Runner is the part of offload.Engine the scheduler drives.
type Runner interface {
	Run(ctx context.Context, runOptions offload.RunOptions) (*offload.RunResult, error)
}

// Scheduler runs the offload engine on a fixed interval on a single
// background task, so at most one run per process is active at a time.
type Scheduler struct {
	*lifecycle.ValidatedLifecycle
	runner              Runner
	interval            time.Duration
	runOptions          offload.RunOptions
	triggerChannel      chan struct{}
	closeTrigger        sync.Once
	schedulerTaskHandle *task.TaskHandle
	stopTimeout         time.Duration
}

func New(runner Runner, interval time.Duration, runOptions offload.RunOptions) (*Scheduler, error) {
	validatedLifecycle, err := lifecycle.NewValidatedLifecycle("Scheduler")
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		ValidatedLifecycle: validatedLifecycle,
		runner:             runner,
		interval:           interval,
		runOptions:         runOptions,
		triggerChannel:     make(chan struct{}, 1),
		stopTimeout:        30 * time.Second,
	}, nil
}

// Trigger requests a run as soon as the current one, if any, is finished.
func (s *Scheduler) Trigger() {
	// Put struct{} in the channel unless it is full
	select {
	case s.triggerChannel <- struct{}{}:
	default:
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	// A started run is never cancelled, only awaited by Stop.
	result, err := s.runner.Run(context.WithoutCancel(ctx), s.runOptions)
	if errors.Is(err, blob.ErrFeatureDisabled) {
		slog.Warn("Scheduled offload skipped", "error", err)
		return
	}
	if err != nil {
		slog.Error("Scheduled offload failed", "error", err)
		return
	}
	if result.Claimed > 0 {
		slog.Info("Scheduled offload finished", "succeeded", result.Succeeded, "failed", result.Failed)
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case _, ok := <-s.triggerChannel:
			if !ok {
				slog.Debug("Stopping scheduler")
				return
			}
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		s.runOnce(ctx)
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.ValidatedLifecycle.Start(ctx); err != nil {
		return err
	}
	s.schedulerTaskHandle = task.Start(ctx, s.loop)
	s.Trigger()
	return nil
}

// Stop lets a run in flight finish; uploads are not interrupted.
// If the run outlives ctx or the stop timeout, Stop returns ErrRunStillActive
// and the components the run uses must stay open.
func (s *Scheduler) Stop(ctx context.Context) error {
	if err := s.ValidatedLifecycle.Stop(ctx); err != nil {
		return err
	}
	s.closeTrigger.Do(func() {
		close(s.triggerChannel)
	})
	if s.schedulerTaskHandle == nil {
		return nil
	}
	s.schedulerTaskHandle.Cancel()
	joinCtx, cancel := context.WithTimeout(ctx, s.stopTimeout)
	defer cancel()
	err := s.schedulerTaskHandle.JoinContext(joinCtx)
	if err != nil {
		slog.Warn("Scheduler.schedulerTaskHandle did not finish", "timeout", s.stopTimeout, "error", err)
		return errors.Join(ErrRunStillActive, err)
	}
	slog.Debug("Scheduler.schedulerTaskHandle joined")
	return nil
}
