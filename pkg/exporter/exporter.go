package exporter

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/irvinlim/apple-health-dashboard/pkg/backends"
	apierrors "github.com/irvinlim/apple-health-dashboard/pkg/errors"
	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
)

// Exporter writes reports to named backends in the background.
type Exporter struct {
	backends    map[string]*backends.BackendQueue
	started     bool
	backendsMtx sync.RWMutex
	quit        *sync.WaitGroup
}

func NewExporter() *Exporter {
	return &Exporter{
		backends: make(map[string]*backends.BackendQueue),
		quit:     &sync.WaitGroup{},
	}
}

func (e *Exporter) AddBackend(backend backends.Backend) error {
	e.backendsMtx.Lock()
	defer e.backendsMtx.Unlock()
	if e.started {
		return errors.New("cannot add backend when already started")
	}
	e.backends[backend.Name()] = backends.NewBackendWithQueue(backend)
	e.quit.Add(1)
	return nil
}

func (e *Exporter) ListBackends() []backends.Backend {
	e.backendsMtx.RLock()
	defer e.backendsMtx.RUnlock()
	bs := make([]backends.Backend, 0, len(e.backends))
	for _, backend := range e.backends {
		bs = append(bs, backend.Backend)
	}
	return bs
}

// Start the exporter to perform background work asynchronously.
func (e *Exporter) Start() {
	e.backendsMtx.Lock()
	defer e.backendsMtx.Unlock()
	for _, backend := range e.backends {
		go e.processQueue(backend)
	}
	e.started = true
}

// Shutdown begins graceful quit of the exporter, and blocks until all
// queued reports have been written.
func (e *Exporter) Shutdown() {
	e.backendsMtx.Lock()
	defer e.backendsMtx.Unlock()

	// Shutdown all queues.
	var drained sync.WaitGroup
	drained.Add(len(e.backends))
	for _, backend := range e.backends {
		go func(backend *backends.BackendQueue) {
			defer drained.Done()
			backend.Queue.ShutDownWithDrain()
		}(backend)
	}

	// Wait for all queues to be drained and finish processing.
	drained.Wait()

	// Block until all queues have terminated.
	e.quit.Wait()
}

// Export queues the report for writing into the named backend.
// All processing is done asynchronously.
func (e *Exporter) Export(report *pipeline.Report, name string, target string) error {
	e.backendsMtx.RLock()
	defer e.backendsMtx.RUnlock()

	if !e.started {
		return errors.New("exporter is not yet started")
	}

	backend, ok := e.backends[name]
	if !ok {
		return fmt.Errorf("invalid backend %v", name)
	}
	if report == nil {
		return errors.New("cannot export empty report")
	}

	backend.Queue.Add(&ReportWithTarget{
		Report:     report,
		TargetName: target,
	})
	return nil
}

// processQueue will process items from the workqueue, writing into the backend
// one at a time. If a retryable write error is encountered, the write will be
// retried indefinitely with a backoff. Items are also not guaranteed to be
// processed in order due to the above behaviour.
func (e *Exporter) processQueue(backend *backends.BackendQueue) {
	defer e.quit.Done()

	for {
		item, shutdown := backend.Queue.Get()
		if shutdown {
			return
		}

		logger := log.WithField("backend", backend.Name())
		startTime := time.Now()
		err := e.processWriteItem(item, backend)
		logger = logger.WithField("elapsed", time.Since(startTime))

		if err != nil {
			if apierrors.IsRetryableWrite(err) {
				backend.Queue.AddRateLimited(item)
				logger = logger.WithField("retries", backend.Queue.NumRequeues(item))
			} else {
				backend.Queue.Forget(item)
			}

			logger.WithError(err).Error("export report error")
		} else {
			backend.Queue.Forget(item)
			logger.Info("export report success")
		}

		backend.Queue.Done(item)
	}
}

func (e *Exporter) processWriteItem(item interface{}, backend backends.Backend) (err error) {
	report, ok := item.(*ReportWithTarget)
	if !ok {
		return fmt.Errorf("cannot convert to *ReportWithTarget")
	}

	// Handle panics in backend implementations.
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"backend": backend.Name(),
				"target":  report.TargetName,
				"days":    len(report.Daily),
			}).Error("recovered from panic in backend:\n" + string(debug.Stack()))
			err = errors.New("recovered from panic")
		}
	}()

	if err := backend.Write(report.Report, report.TargetName); err != nil {
		return errors.Wrapf(err, "cannot write report to backend")
	}

	return nil
}
