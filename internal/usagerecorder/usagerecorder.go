// Package usagerecorder records a usage increment per proxied request
// without delaying the response or holding request-scoped resources.
package usagerecorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/northwind/apigateway/internal/counterstore"
)

type job struct {
	tenantID int64
	apiID    int64
	minute   int64
}

// Recorder schedules background counter increments off a bounded worker
// pool so a burst of requests cannot spawn unbounded goroutines. Failures
// are logged and swallowed — the recorder must never surface an error to
// the request path that scheduled it.
type Recorder struct {
	store  counterstore.Store
	logger *slog.Logger
	jobs   chan job
	wg     sync.WaitGroup
}

// NewRecorder creates a Recorder with the given worker count and queue
// depth, and starts its workers.
func NewRecorder(store counterstore.Store, logger *slog.Logger, workers, queueSize int) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger,
		jobs:   make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Record schedules, but does not await, a usage increment for the given
// tenant and api at the current minute. It never blocks: if the queue is
// full the job is dropped and a warning is logged.
func (r *Recorder) Record(tenantID, apiID int64) {
	j := job{tenantID: tenantID, apiID: apiID, minute: time.Now().UTC().Unix() / 60}
	select {
	case r.jobs <- j:
	default:
		r.logger.Warn("usage recorder queue full, dropping increment",
			"tenant_id", tenantID, "api_id", apiID)
	}
}

// Close stops accepting new jobs and waits for queued jobs to drain.
func (r *Recorder) Close() {
	close(r.jobs)
	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for j := range r.jobs {
		r.record(j)
	}
}

func (r *Recorder) record(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("usage:%d:%d:%d", j.tenantID, j.apiID, j.minute)
	if _, err := r.store.Incr(ctx, key); err != nil {
		r.logger.Warn("recording usage increment failed", "key", key, "error", err)
	}
}
