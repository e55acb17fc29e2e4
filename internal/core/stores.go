package core

import (
	"context"
	"time"
)

// StatusUpdate carries the optional fields persisted alongside a transition.
type StatusUpdate struct {
	EstimatedReadyTime *time.Time
	CancellationReason string
	UpdatedAt          time.Time
}

// OrderStore is the persistence surface the status machine needs. The
// compare-and-set semantics of UpdateOrderStatus are what give per-order
// atomicity: the update applies only while the stored status still equals
// from, and returns false when another writer got there first.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrdersByRestaurant(ctx context.Context, restaurantID string) ([]*Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to Status, upd StatusUpdate) (bool, error)
}

type PrinterStore interface {
	CreatePrinter(ctx context.Context, p *Printer) error
	GetPrinter(ctx context.Context, id string) (*Printer, error)
	ListPrinters(ctx context.Context, restaurantID string, enabledOnly bool) ([]*Printer, error)
	// ListEnabledPrinters spans all restaurants; the dispatcher uses it to
	// spin up workers at startup.
	ListEnabledPrinters(ctx context.Context) ([]*Printer, error)
	UpdatePrinter(ctx context.Context, p *Printer) error
	UpdatePrinterStatus(ctx context.Context, id string, state PrinterState, seenAt time.Time) error
	DeletePrinter(ctx context.Context, id string) error
}

// JobStore mutations are all conditional on the job's current status; the
// boolean result reports whether the row was in the expected state. This is
// the serialization point that keeps a cancelled job from being claimed and
// a claimed job from being cancelled.
type JobStore interface {
	CreateJob(ctx context.Context, j *PrintJob) error
	GetJob(ctx context.Context, id string) (*PrintJob, error)
	// NextQueuedJob returns the oldest queued job for the printer whose
	// not_before has passed, or nil when none is eligible.
	NextQueuedJob(ctx context.Context, printerID string, now time.Time) (*PrintJob, error)
	ListJobsByRestaurant(ctx context.Context, restaurantID string) ([]*PrintJob, error)
	StalePrintingJobs(ctx context.Context, before time.Time) ([]*PrintJob, error)

	SetJobPrinting(ctx context.Context, id string, at time.Time) (bool, error)
	// SetJobCompleted records terminal success; completed_at is set here and
	// nowhere else.
	SetJobCompleted(ctx context.Context, id string, at time.Time) (bool, error)
	// SetJobRequeued moves a printing job back to queued with the given
	// attempt count and earliest next dispatch time. The error message of
	// the failed attempt is cleared: a queued job carries no error.
	SetJobRequeued(ctx context.Context, id string, attempts int, notBefore time.Time) (bool, error)
	SetJobFailed(ctx context.Context, id string, attempts int, errMsg string, at time.Time) (bool, error)
	SetJobRetried(ctx context.Context, id string) (bool, error)
	SetJobCancelled(ctx context.Context, id string) (bool, error)
	FailQueuedJobsForPrinter(ctx context.Context, printerID, errMsg string, at time.Time) (int, error)
}
