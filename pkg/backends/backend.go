package backends

import (
	"strings"
	"time"

	"k8s.io/client-go/util/workqueue"

	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
)

const (
	// Failed writes are retried with exponential backoff between these delays.
	retryBaseDelay = 5 * time.Millisecond
	retryMaxDelay  = 5 * time.Minute
)

// Backend is implemented by downstream report export backend implementations.
type Backend interface {
	Name() string
	Write(report *pipeline.Report, targetName string) error
}

// BackendQueue is a type that composes a Backend and a workqueue.
type BackendQueue struct {
	Backend
	Queue workqueue.RateLimitingInterface
}

// NewBackendWithQueue returns backend with its own export queue. Each backend
// tracks retries separately, so a failing backend does not slow down the others.
func NewBackendWithQueue(backend Backend) *BackendQueue {
	limiter := workqueue.NewItemExponentialFailureRateLimiter(retryBaseDelay, retryMaxDelay)
	return &BackendQueue{
		Backend: backend,
		Queue:   workqueue.NewNamedRateLimitingQueue(limiter, "export_"+strings.ToLower(backend.Name())),
	}
}
