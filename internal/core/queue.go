package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// QueueConfig bounds the retry behaviour of the job queue.
type QueueConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 60 * time.Second
	}
	return c
}

// Queue is the durable collection of print jobs. Enqueueing is open to the
// coordinator and explicit print requests; state transitions belong to the
// dispatcher, except manual retry of a failed job.
type Queue struct {
	jobs     JobStore
	printers PrinterStore
	orders   OrderStore
	clock    Clock
	cfg      QueueConfig

	// onEnqueue wakes the dispatch worker of the target printer.
	onEnqueue func(printerID string)
}

func NewQueue(jobs JobStore, printers PrinterStore, orders OrderStore, clock Clock, cfg QueueConfig) *Queue {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Queue{
		jobs:     jobs,
		printers: printers,
		orders:   orders,
		clock:    clock,
		cfg:      cfg.withDefaults(),
	}
}

func (q *Queue) OnEnqueue(fn func(printerID string)) {
	q.onEnqueue = fn
}

func (q *Queue) Enqueue(ctx context.Context, orderID, printerID string, printType PrintType) (*PrintJob, error) {
	if !printType.Valid() {
		return nil, &ValidationError{Violations: []string{fmt.Sprintf("invalid print type %q", printType)}}
	}

	order, err := q.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}

	printer, err := q.printers.GetPrinter(ctx, printerID)
	if err != nil {
		return nil, err
	}
	if printer == nil {
		return nil, ErrNotFound
	}
	if !printer.Enabled {
		return nil, fmt.Errorf("%w: printer %s is disabled", ErrConflict, printerID)
	}
	if order.RestaurantID != printer.RestaurantID {
		return nil, ErrNotFound
	}

	job := &PrintJob{
		ID:           uuid.NewString(),
		OrderID:      orderID,
		PrinterID:    printerID,
		RestaurantID: printer.RestaurantID,
		PrintType:    printType,
		Status:       JobQueued,
		MaxAttempts:  q.cfg.MaxAttempts,
		CreatedAt:    q.clock.Now(),
	}

	if err := q.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	if q.onEnqueue != nil {
		q.onEnqueue(printerID)
	}

	return job, nil
}

// DequeueNext returns the oldest eligible queued job for the printer
// without mutating it; claiming is a separate, observable step. A job whose
// backoff has not elapsed is skipped in favor of the next one (FIFO with
// skip).
func (q *Queue) DequeueNext(ctx context.Context, printerID string) (*PrintJob, error) {
	return q.jobs.NextQueuedJob(ctx, printerID, q.clock.Now())
}

func (q *Queue) MarkPrinting(ctx context.Context, jobID string) error {
	ok, err := q.jobs.SetJobPrinting(ctx, jobID, q.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job %s is not queued", ErrInvalidState, jobID)
	}
	return nil
}

func (q *Queue) MarkCompleted(ctx context.Context, jobID string) error {
	ok, err := q.jobs.SetJobCompleted(ctx, jobID, q.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job %s is not printing", ErrInvalidState, jobID)
	}
	return nil
}

// MarkFailed records a delivery failure. While attempts remain the job goes
// back to queued with an exponential backoff window; only when attempts are
// exhausted does it settle into failed.
func (q *Queue) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	job, err := q.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}

	attempts := job.Attempts + 1
	now := q.clock.Now()

	if attempts < job.MaxAttempts {
		notBefore := now.Add(q.backoff(job.Attempts))
		ok, err := q.jobs.SetJobRequeued(ctx, jobID, attempts, notBefore)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: job %s is not printing", ErrInvalidState, jobID)
		}
		return nil
	}

	ok, err := q.jobs.SetJobFailed(ctx, jobID, attempts, errMsg, now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job %s is not printing", ErrInvalidState, jobID)
	}
	return nil
}

func (q *Queue) backoff(priorAttempts int) time.Duration {
	d := q.cfg.BackoffBase << uint(priorAttempts)
	if d > q.cfg.BackoffCap || d <= 0 {
		d = q.cfg.BackoffCap
	}
	return d
}

// Retry manually re-queues a failed job. Attempts are preserved so the
// job's delivery history stays visible. The printer must still be enabled,
// the same guard Enqueue applies.
func (q *Queue) Retry(ctx context.Context, restaurantID, jobID string) (*PrintJob, error) {
	job, err := q.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.RestaurantID != restaurantID {
		return nil, ErrNotFound
	}

	printer, err := q.printers.GetPrinter(ctx, job.PrinterID)
	if err != nil {
		return nil, err
	}
	if printer == nil {
		return nil, ErrNotFound
	}
	if !printer.Enabled {
		return nil, fmt.Errorf("%w: printer %s is disabled", ErrConflict, job.PrinterID)
	}

	ok, err := q.jobs.SetJobRetried(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: only failed jobs can be retried", ErrInvalidState)
	}

	job.Status = JobQueued
	job.ErrorMessage = ""
	job.NotBefore = nil
	job.FailedAt = nil

	if q.onEnqueue != nil {
		q.onEnqueue(job.PrinterID)
	}

	return job, nil
}

// Cancel drops a job that has not been claimed yet. A printing job cannot
// be preempted; the in-flight attempt resolves on its own.
func (q *Queue) Cancel(ctx context.Context, restaurantID, jobID string) error {
	job, err := q.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil || job.RestaurantID != restaurantID {
		return ErrNotFound
	}

	ok, err := q.jobs.SetJobCancelled(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: only queued jobs can be cancelled", ErrInvalidState)
	}
	return nil
}

func (q *Queue) GetJob(ctx context.Context, jobID string) (*PrintJob, error) {
	return q.jobs.GetJob(ctx, jobID)
}

// ListQueue returns every job across the restaurant's printers, most recent
// first. Failed-and-exhausted jobs stay visible for manual retry and audit.
func (q *Queue) ListQueue(ctx context.Context, restaurantID string) ([]*PrintJob, error) {
	return q.jobs.ListJobsByRestaurant(ctx, restaurantID)
}

// RecoverStale reclaims jobs stuck in printing longer than the threshold,
// typically after a dispatcher crash mid-attempt. Jobs with attempts left
// go back to queued; exhausted ones fail.
func (q *Queue) RecoverStale(ctx context.Context, threshold time.Duration) error {
	now := q.clock.Now()
	stale, err := q.jobs.StalePrintingJobs(ctx, now.Add(-threshold))
	if err != nil {
		return fmt.Errorf("failed to list stale jobs: %w", err)
	}

	for _, job := range stale {
		attempts := job.Attempts + 1
		if attempts < job.MaxAttempts {
			if _, err := q.jobs.SetJobRequeued(ctx, job.ID, attempts, now); err != nil {
				log.Printf("queue: failed to reclaim job %s: %v", job.ID, err)
			}
			continue
		}
		if _, err := q.jobs.SetJobFailed(ctx, job.ID, attempts, "reclaimed after stall", now); err != nil {
			log.Printf("queue: failed to fail stalled job %s: %v", job.ID, err)
		}
	}

	return nil
}
