package task

import (
	"context"
	"sync"
)

type TaskFunc = func(ctx context.Context)

// TaskHandle owns a single background goroutine. Cancel only signals
// the task through its context; JoinContext waits for it to return.
type TaskHandle struct {
	cancel       context.CancelFunc
	taskFinished sync.WaitGroup
}

func Start(ctx context.Context, taskFunc TaskFunc) *TaskHandle {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	taskHandle := &TaskHandle{
		cancel: cancel,
	}
	taskHandle.taskFinished.Add(1)
	go func() {
		defer taskHandle.taskFinished.Done()
		taskFunc(taskCtx)
	}()
	return taskHandle
}

func (th *TaskHandle) Cancel() {
	th.cancel()
}

// JoinContext waits for the task to return. It returns ctx.Err() if ctx
// ends first; the task keeps running in that case.
func (th *TaskHandle) JoinContext(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		th.taskFinished.Wait()
	}()
	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
