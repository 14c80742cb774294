// Package services – Worker
//
// Worker runs conversation jobs off the webhook request path: a fixed
// number of goroutines, each draining its own bounded queue. Jobs are
// routed to a queue by thread id, so one thread's messages are handled by
// one goroutine in the order they were enqueued while different threads
// run in parallel.
//
// A panicking job is recovered and its thread handed to a human; a job that
// does not fit in its queue is dropped the same way. In both cases the
// Processor, when it implements Abandoner, gets to tell the customer. The
// worker never spawns goroutines beyond its pool.
package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/repo"
)

// Job is one stored inbound message waiting for a reply.
type Job struct {
	TenantID   string
	ThreadID   string
	CustomerID string
	Channel    string
	// From is the address replies go to (phone number or page-scoped id).
	From       string
	MessageID  string
	Text       string
	ReceivedAt time.Time
}

// Processor handles one job.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }

// Abandoner is implemented by processors that can still answer the customer
// when their job will never run (reason "queue full", "worker stopped") or
// did not finish ("panic").
type Abandoner interface {
	Abandon(ctx context.Context, job Job, reason string)
}

// Worker is a supervised, bounded job pool.
type Worker struct {
	DB         *gorm.DB
	Processor  Processor
	Count      int
	JobTimeout time.Duration

	// queues[i] is drained by goroutine i only.
	queues  []chan Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewWorker builds a pool of count goroutines. queueSize is the total
// capacity, split evenly across the per-goroutine queues (at least one slot
// each).
func NewWorker(db *gorm.DB, p Processor, count, queueSize int) *Worker {
	if count < 1 {
		count = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	per := (queueSize + count - 1) / count
	queues := make([]chan Job, count)
	for i := range queues {
		queues[i] = make(chan Job, per)
	}
	return &Worker{
		DB:         db,
		Processor:  p,
		Count:      count,
		JobTimeout: 30 * time.Second,
		queues:     queues,
	}
}

// shard picks the queue for a thread. Jobs without a thread spread by
// message id.
func (w *Worker) shard(job Job) int {
	key := job.ThreadID
	if key == "" {
		key = job.MessageID
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(w.queues)))
}

// Start launches the pool. Jobs keep running to completion after ctx is
// cancelled; use Stop to drain.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	base := context.WithoutCancel(ctx)
	for i, q := range w.queues {
		w.wg.Add(1)
		go w.loop(base, i, q)
	}
	log.Info().Int("workers", len(w.queues)).Int("queue_per_worker", cap(w.queues[0])).Msg("conversation worker started")
}

// Enqueue offers job to its thread's queue without blocking. It returns
// false when that queue is full or the worker is stopped; the thread is
// then flagged for a human.
func (w *Worker) Enqueue(job Job) bool {
	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		w.drop(job, "worker stopped")
		return false
	}
	select {
	case w.queues[w.shard(job)] <- job:
		w.mu.RUnlock()
		queueDepth.Set(float64(w.Pending()))
		return true
	default:
		w.mu.RUnlock()
		w.drop(job, "queue full")
		return false
	}
}

// Stop closes the queues and waits for queued jobs to finish or ctx to end.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		for _, q := range w.queues {
			close(q)
		}
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("conversation worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker stop: %w", ctx.Err())
	}
}

// Pending returns the number of queued jobs across all queues.
func (w *Worker) Pending() int {
	n := 0
	for _, q := range w.queues {
		n += len(q)
	}
	return n
}

func (w *Worker) loop(ctx context.Context, id int, q <-chan Job) {
	defer w.wg.Done()
	for job := range q {
		queueDepth.Set(float64(w.Pending()))
		w.run(ctx, id, job)
	}
}

func (w *Worker) run(ctx context.Context, id int, job Job) {
	ctx, cancel := context.WithTimeout(ctx, w.JobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("thread_id", job.ThreadID).
				Int("worker", id).
				Interface("panic", r).
				Msg("conversation job panicked")
			w.flag(job.ThreadID)
			w.abandon(job, "panic")
		}
	}()
	if err := w.Processor.Process(ctx, job); err != nil {
		log.Error().Err(err).Str("thread_id", job.ThreadID).Int("worker", id).Msg("conversation job failed")
	}
}

func (w *Worker) drop(job Job, reason string) {
	log.Warn().
		Str("thread_id", job.ThreadID).
		Str("message_id", job.MessageID).
		Str("reason", reason).
		Msg("conversation job dropped")
	w.flag(job.ThreadID)
	w.abandon(job, reason)
}

// abandon lets the processor answer the customer for a job that will not
// complete. It runs on its own short deadline and never panics the caller.
func (w *Worker) abandon(job Job, reason string) {
	a, ok := w.Processor.(Abandoner)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("thread_id", job.ThreadID).Interface("panic", r).Msg("abandon job")
		}
	}()
	a.Abandon(ctx, job, reason)
}

// flag hands the thread to a human with zero confidence.
func (w *Worker) flag(threadID string) {
	if w.DB == nil || threadID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.FlagAttention(ctx, w.DB, threadID, 0); err != nil {
		log.Error().Err(err).Str("thread_id", threadID).Msg("flag thread for attention")
	}
}
