package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrNotRunning = errors.New("component is not running")

// Manager defines the lifecycle management interface
type Manager interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ValidatedLifecycle guards Start/Stop ordering for stores and uploaders
// that have no lifecycle work of their own.
type ValidatedLifecycle struct {
	validator *StateValidator
}

func NewValidatedLifecycle(name string) (*ValidatedLifecycle, error) {
	validator, err := New(name)
	if err != nil {
		return nil, err
	}
	return &ValidatedLifecycle{
		validator: validator,
	}, nil
}

func (vl *ValidatedLifecycle) Start(ctx context.Context) error {
	return vl.validator.Start()
}

func (vl *ValidatedLifecycle) Stop(ctx context.Context) error {
	return vl.validator.Stop()
}

// EnsureRunning returns ErrNotRunning unless Start was called and Stop was not.
func (vl *ValidatedLifecycle) EnsureRunning() error {
	if !vl.validator.IsRunning() {
		return errors.Join(ErrNotRunning, errors.New(vl.validator.name+" is not running"))
	}
	return nil
}

type StateValidator struct {
	isStarted atomic.Bool
	isStopped atomic.Bool
	name      string
}

func New(name string) (*StateValidator, error) {
	return &StateValidator{
		isStarted: atomic.Bool{},
		isStopped: atomic.Bool{},
		name:      name,
	}, nil
}

func (validator *StateValidator) Start() error {
	if !validator.isStarted.CompareAndSwap(false, true) {
		return errors.New(validator.name + " already started")
	}
	return nil
}

func (validator *StateValidator) Stop() error {
	if !validator.isStarted.Load() {
		return errors.New(validator.name + " not started")
	}
	if !validator.isStopped.CompareAndSwap(false, true) {
		return errors.New(validator.name + " already stopped")
	}
	return nil
}

func (validator *StateValidator) IsRunning() bool {
	return validator.isStarted.Load() && !validator.isStopped.Load()
}
