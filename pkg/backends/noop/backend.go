package noop

import (
	"sync"

	"github.com/irvinlim/apple-health-dashboard/pkg/backends"
	apierrors "github.com/irvinlim/apple-health-dashboard/pkg/errors"
	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
)

// Backend records every report it is asked to write. It can be told to fail
// or panic, and is meant for tests.
type Backend struct {
	ShouldError bool
	ShouldPanic bool

	writes []*pipeline.Report
	mtx    sync.RWMutex
}

var _ backends.Backend = &Backend{}

func NewBackend() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string {
	return "Noop"
}

func (b *Backend) Write(report *pipeline.Report, _ string) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.ShouldPanic {
		panic("backend panic during write")
	}
	if b.ShouldError {
		return apierrors.NewRetryableWriteError()
	}
	b.writes = append(b.writes, report)
	return nil
}

// SetShouldError toggles ShouldError while writes may be in flight.
func (b *Backend) SetShouldError(shouldError bool) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.ShouldError = shouldError
}

// Writes returns the reports written so far.
func (b *Backend) Writes() []*pipeline.Report {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	return append([]*pipeline.Report(nil), b.writes...)
}
