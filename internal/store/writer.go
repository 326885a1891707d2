package store

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// StatsWriter is a fire-and-forget sink in front of a Store. Submit never
// blocks; failed writes are logged and counted but never retried.
type StatsWriter struct {
	store   Store
	jobs    chan statsJob
	workers int
	timeout time.Duration
	wg      sync.WaitGroup
	running atomic.Bool
	stopped atomic.Bool

	// OnResult, if set, is called after every write attempt ("ok", "error", "dropped").
	OnResult func(result string)

	// Metrics
	submitted atomic.Uint64
	written   atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

type statsJob struct {
	userID string
	delta  Delta
}

// WriterConfig holds configuration for the stats writer
type WriterConfig struct {
	BufferSize int           // Pending submissions (default: 128)
	Workers    int           // Worker goroutines (default: 2)
	Timeout    time.Duration // Per-write deadline (default: 5s)
}

// NewStatsWriter creates a writer. Workers start on Start.
func NewStatsWriter(s Store, cfg WriterConfig) *StatsWriter {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 128
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &StatsWriter{
		store:   s,
		jobs:    make(chan statsJob, cfg.BufferSize),
		workers: cfg.Workers,
		timeout: cfg.Timeout,
	}
}

// Start launches the worker pool
func (w *StatsWriter) Start() {
	if w.running.Swap(true) {
		return
	}
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}
}

// Stop drains queued submissions and waits for the workers.
func (w *StatsWriter) Stop() {
	if w.stopped.Swap(true) {
		return
	}
	close(w.jobs)
	if w.running.Load() {
		w.wg.Wait()
	}

	log.Printf("📊 StatsWriter stopped - submitted: %d, written: %d, failed: %d, dropped: %d",
		w.submitted.Load(), w.written.Load(), w.failed.Load(), w.dropped.Load())
}

// Submit queues an increment. It returns false when the queue is full or the
// writer is stopped; the increment is then lost.
func (w *StatsWriter) Submit(userID string, d Delta) (ok bool) {
	if w.stopped.Load() {
		w.drop(userID)
		return false
	}
	// Stop may close the channel between the check and the send.
	defer func() {
		if recover() != nil {
			w.drop(userID)
			ok = false
		}
	}()

	select {
	case w.jobs <- statsJob{userID: userID, delta: d}:
		w.submitted.Add(1)
		return true
	default:
		w.drop(userID)
		return false
	}
}

func (w *StatsWriter) drop(userID string) {
	w.dropped.Add(1)
	w.report("dropped")
	log.Printf("⚠️ Stats queue unavailable, dropped increment for %s", userID)
}

func (w *StatsWriter) worker() {
	defer w.wg.Done()

	for job := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.store.IncrementStats(ctx, job.userID, job.delta)
		cancel()

		if err != nil {
			w.failed.Add(1)
			w.report("error")
			log.Printf("⚠️ Failed to persist stats for %s: %v", job.userID, err)
			continue
		}
		w.written.Add(1)
		w.report("ok")
	}
}

func (w *StatsWriter) report(result string) {
	if w.OnResult != nil {
		w.OnResult(result)
	}
}

// Stats returns current writer statistics
func (w *StatsWriter) Stats() WriterStats {
	return WriterStats{
		Submitted: w.submitted.Load(),
		Written:   w.written.Load(),
		Failed:    w.failed.Load(),
		Dropped:   w.dropped.Load(),
		Pending:   uint64(len(w.jobs)),
	}
}

// WriterStats holds writer metrics
type WriterStats struct {
	Submitted uint64 `json:"submitted"`
	Written   uint64 `json:"written"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Pending   uint64 `json:"pending"`
}
