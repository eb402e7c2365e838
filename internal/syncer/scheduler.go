package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/indexer"
	"github.com/IndigoNakamoto/Litecoin-Knowledge-Hub-sub008/internal/middleware"
)

type Processor interface {
	Process(ctx context.Context, task *Task) error
}

// DeadLetterSink receives tasks that exhausted their retries.
type DeadLetterSink interface {
	Save(ctx context.Context, documentID, operation, errMsg string, attempts int) error
}

// Scheduler runs sync tasks on a bounded worker pool with two guarantees:
// tasks for different documents run concurrently, and tasks for the same
// document never do. While a document's task is running, newer notifications
// for it coalesce into a single pending task, latest one wins.
//
// Workers never touch the pool: a coalesced follow-up is drained by the same
// worker that owns the document's slot. Only Submit hands work to the pool,
// outside the mutex, so a saturated pool blocks the submitting caller and
// nothing else.
type Scheduler struct {
	pipeline    Processor
	pool        *ants.Pool
	deadLetters DeadLetterSink
	maxRetries  int
	backoffBase time.Duration

	mu      sync.Mutex
	pending map[string]*Task
	running map[string]bool
	wg      sync.WaitGroup
}

func NewScheduler(p Processor, dl DeadLetterSink, concurrency, maxRetries int, backoffBase time.Duration) (*Scheduler, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		pipeline:    p,
		pool:        pool,
		deadLetters: dl,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		pending:     make(map[string]*Task),
		running:     make(map[string]bool),
	}, nil
}

// Submit enqueues a task. If the same document already has a task running,
// the new one replaces whatever was pending for it. Blocks while the pool is
// saturated; the document's worker drains its own pending slot, so held-up
// submitters never stall running workers.
func (s *Scheduler) Submit(task *Task) {
	task.State = StatePending
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}

	s.mu.Lock()
	if s.running[task.DocumentID] {
		if prev, ok := s.pending[task.DocumentID]; ok {
			slog.Info("coalescing sync task", "document_id", task.DocumentID, "superseded_op", prev.Operation, "op", task.Operation)
		} else {
			s.wg.Add(1)
		}
		s.pending[task.DocumentID] = task
		s.mu.Unlock()
		return
	}
	s.running[task.DocumentID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.pool.Submit(func() { s.run(task) }); err != nil {
		slog.Error("failed to submit sync task", "error", err, "document_id", task.DocumentID)
		// The pool is released. Surface the task (and any follow-up that
		// parked meanwhile) instead of dropping it.
		for t := task; t != nil; t = s.next(t.DocumentID) {
			ctx := middleware.WithCorrelationID(context.Background(), t.CorrelationID)
			s.deadLetter(ctx, t, err)
			s.wg.Done()
		}
	}
}

// run processes a task and then drains whatever coalesced behind it for the
// same document, all in this worker's slot.
func (s *Scheduler) run(task *Task) {
	for task != nil {
		s.process(task)
		s.wg.Done()
		task = s.next(task.DocumentID)
	}
}

func (s *Scheduler) process(task *Task) {
	ctx := middleware.WithCorrelationID(context.Background(), task.CorrelationID)

	operation := func() error {
		task.Attempts++
		err := s.pipeline.Process(ctx, task)
		if err == nil {
			return nil
		}
		if errors.Is(err, indexer.ErrConsistency) {
			// Retrying a non-deterministic chunker changes nothing.
			return backoff.Permanent(err)
		}
		task.State = StateFailed
		slog.WarnContext(ctx, "sync task attempt failed", "document_id", task.DocumentID, "attempt", task.Attempts, "error", err)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.backoffBase

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.maxRetries)), ctx))
	if err != nil {
		s.deadLetter(ctx, task, err)
	} else {
		task.State = StateDone
		slog.InfoContext(ctx, "sync task completed", "document_id", task.DocumentID, "op", task.Operation, "attempts", task.Attempts)
	}
}

// next pops the coalesced follow-up for a document, or releases the
// document's slot when nothing is pending.
func (s *Scheduler) next(documentID string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.pending[documentID]
	if !ok {
		delete(s.running, documentID)
		return nil
	}
	delete(s.pending, documentID)
	return task
}

func (s *Scheduler) deadLetter(ctx context.Context, task *Task, err error) {
	task.State = StateDeadLettered
	slog.ErrorContext(ctx, "sync task dead-lettered", "document_id", task.DocumentID, "attempts", task.Attempts, "error", err)
	if s.deadLetters == nil {
		return
	}
	if saveErr := s.deadLetters.Save(ctx, task.DocumentID, string(task.Operation), err.Error(), task.Attempts); saveErr != nil {
		slog.ErrorContext(ctx, "failed to persist dead letter", "error", saveErr, "document_id", task.DocumentID)
	}
}

// Wait blocks until all submitted and coalesced tasks have finished. Test
// and shutdown helper.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) Close() {
	s.wg.Wait()
	s.pool.Release()
}
