package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

type DispatcherConfig struct {
	SendTimeout     time.Duration
	PollInterval    time.Duration
	StaleClaimAfter time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 1 * time.Second
	}
	if c.StaleClaimAfter <= 0 {
		c.StaleClaimAfter = 2 * time.Minute
	}
	return c
}

// Dispatcher runs one worker goroutine per enabled printer. A worker owns
// its printer's queue end to end, which is what guarantees at most one job
// in flight per printer; workers for different printers run in parallel.
type Dispatcher struct {
	queue      *Queue
	printers   PrinterStore
	orders     OrderStore
	transports Transports
	renderer   Renderer
	clock      Clock
	cfg        DispatcherConfig

	mu      sync.Mutex
	workers map[string]*printerWorker
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type printerWorker struct {
	printerID string
	wake      chan struct{}
	stop      chan struct{}
}

func NewDispatcher(queue *Queue, printers PrinterStore, orders OrderStore, transports Transports, renderer Renderer, clock Clock, cfg DispatcherConfig) *Dispatcher {
	if clock == nil {
		clock = SystemClock{}
	}
	d := &Dispatcher{
		queue:      queue,
		printers:   printers,
		orders:     orders,
		transports: transports,
		renderer:   renderer,
		clock:      clock,
		cfg:        cfg.withDefaults(),
		workers:    make(map[string]*printerWorker),
		stopCh:     make(chan struct{}),
	}
	queue.OnEnqueue(d.Wake)
	return d
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.mu.Unlock()

	// Reclaim jobs a previous process left mid-attempt before any worker
	// can claim new work.
	if err := d.queue.RecoverStale(ctx, d.cfg.StaleClaimAfter); err != nil {
		return fmt.Errorf("failed to recover stale jobs: %w", err)
	}

	printers, err := d.printers.ListEnabledPrinters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list printers: %w", err)
	}
	for _, p := range printers {
		d.EnsureWorker(p.ID)
	}

	d.wg.Add(1)
	go d.recoveryLoop()

	return nil
}

func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	workers := make([]*printerWorker, 0, len(d.workers))
	for _, w := range d.workers {
		workers = append(workers, w)
	}
	d.workers = make(map[string]*printerWorker)
	d.mu.Unlock()

	close(d.stopCh)
	for _, w := range workers {
		close(w.stop)
	}
	d.wg.Wait()
}

// EnsureWorker starts the worker for a printer if it is not running yet.
func (d *Dispatcher) EnsureWorker(printerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	if _, exists := d.workers[printerID]; exists {
		return
	}

	w := &printerWorker{
		printerID: printerID,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
	d.workers[printerID] = w

	d.wg.Add(1)
	go d.runWorker(w)
}

// StopWorker tears down the worker of a disabled or deleted printer. An
// in-flight attempt resolves naturally before the goroutine exits.
func (d *Dispatcher) StopWorker(printerID string) {
	d.mu.Lock()
	w, exists := d.workers[printerID]
	if exists {
		delete(d.workers, printerID)
	}
	d.mu.Unlock()

	if exists {
		close(w.stop)
	}
}

// Wake nudges a printer's worker after an enqueue. Unknown printers get a
// worker on demand so printers created after Start are dispatched too.
func (d *Dispatcher) Wake(printerID string) {
	d.mu.Lock()
	w, exists := d.workers[printerID]
	d.mu.Unlock()

	if !exists {
		d.EnsureWorker(printerID)
		return
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) runWorker(w *printerWorker) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.drain(w)

	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
			d.drain(w)
		case <-ticker.C:
			d.drain(w)
		}
	}
}

// drain processes the printer's queue until no job is eligible. Jobs under
// backoff stay behind their not-before timestamp and are picked up by a
// later tick.
func (d *Dispatcher) drain(w *printerWorker) {
	ctx := context.Background()

	for {
		select {
		case <-w.stop:
			return
		default:
		}

		job, err := d.queue.DequeueNext(ctx, w.printerID)
		if err != nil {
			log.Printf("dispatcher: failed to dequeue for printer %s: %v", w.printerID, err)
			return
		}
		if job == nil {
			return
		}

		if !d.process(ctx, job) {
			return
		}
	}
}

// process attempts one delivery. It returns false when the job was left
// queued without being claimed, which ends the current drain: the same job
// would come straight back from the queue.
func (d *Dispatcher) process(ctx context.Context, job *PrintJob) bool {
	printer, err := d.printers.GetPrinter(ctx, job.PrinterID)
	if err != nil {
		log.Printf("dispatcher: failed to load printer %s: %v", job.PrinterID, err)
		return false
	}
	// The printer can be disabled between enqueue and claim. The job stays
	// queued; it becomes eligible again when the printer is re-enabled.
	if printer == nil || !printer.Enabled {
		return false
	}

	// Claiming can lose to a concurrent cancel; that is not an error.
	if err := d.queue.MarkPrinting(ctx, job.ID); err != nil {
		return true
	}

	order, err := d.orders.GetOrder(ctx, job.OrderID)
	if err != nil || order == nil {
		d.fail(ctx, job, printer, "order unavailable")
		return true
	}

	payload, err := d.renderer.Render(order, job.PrintType)
	if err != nil {
		d.fail(ctx, job, printer, fmt.Sprintf("render failed: %v", err))
		return true
	}

	transport, err := d.transports.For(printer.ConnectionType)
	if err != nil {
		d.fail(ctx, job, printer, err.Error())
		return true
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err = transport.Send(sendCtx, printer, payload)
	cancel()

	if err != nil {
		d.fail(ctx, job, printer, err.Error())
		return true
	}

	if err := d.queue.MarkCompleted(ctx, job.ID); err != nil {
		log.Printf("dispatcher: failed to complete job %s: %v", job.ID, err)
	}
	if err := d.printers.UpdatePrinterStatus(ctx, printer.ID, PrinterOnline, d.clock.Now()); err != nil {
		log.Printf("dispatcher: failed to update printer %s status: %v", printer.ID, err)
	}
	return true
}

func (d *Dispatcher) fail(ctx context.Context, job *PrintJob, printer *Printer, msg string) {
	if err := d.queue.MarkFailed(ctx, job.ID, msg); err != nil {
		log.Printf("dispatcher: failed to record failure for job %s: %v", job.ID, err)
	}
	if printer != nil {
		if err := d.printers.UpdatePrinterStatus(ctx, printer.ID, PrinterError, d.clock.Now()); err != nil {
			log.Printf("dispatcher: failed to update printer %s status: %v", printer.ID, err)
		}
	}
}

func (d *Dispatcher) recoveryLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.StaleClaimAfter)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			if err := d.queue.RecoverStale(context.Background(), d.cfg.StaleClaimAfter); err != nil {
				log.Printf("dispatcher: stale job recovery failed: %v", err)
			}
		}
	}
}
