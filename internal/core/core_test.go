package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// fakeClock lets tests control time explicitly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memOrderStore struct {
	mu     sync.Mutex
	orders map[string]*Order
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]*Order)}
}

func (s *memOrderStore) CreateOrder(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *memOrderStore) GetOrder(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *memOrderStore) ListOrdersByRestaurant(_ context.Context, restaurantID string) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.orders {
		if o.RestaurantID == restaurantID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memOrderStore) UpdateOrderStatus(_ context.Context, id string, from, to Status, upd StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = upd.UpdatedAt
	if upd.EstimatedReadyTime != nil {
		o.EstimatedReadyTime = upd.EstimatedReadyTime
	}
	if to == StatusCancelled {
		o.CancellationReason = upd.CancellationReason
	}
	return true, nil
}

type memPrinterStore struct {
	mu       sync.Mutex
	printers []*Printer
}

func newMemPrinterStore() *memPrinterStore {
	return &memPrinterStore{}
}

func (s *memPrinterStore) CreatePrinter(_ context.Context, p *Printer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.printers = append(s.printers, &cp)
	return nil
}

func (s *memPrinterStore) GetPrinter(_ context.Context, id string) (*Printer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.printers {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memPrinterStore) ListPrinters(_ context.Context, restaurantID string, enabledOnly bool) ([]*Printer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Printer
	for _, p := range s.printers {
		if p.RestaurantID != restaurantID {
			continue
		}
		if enabledOnly && !p.Enabled {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memPrinterStore) ListEnabledPrinters(_ context.Context) ([]*Printer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Printer
	for _, p := range s.printers {
		if p.Enabled {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memPrinterStore) UpdatePrinter(_ context.Context, p *Printer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.printers {
		if existing.ID == p.ID {
			cp := *p
			s.printers[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (s *memPrinterStore) UpdatePrinterStatus(_ context.Context, id string, state PrinterState, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.printers {
		if p.ID == id {
			p.Status = state
			at := seenAt
			p.LastSeenAt = &at
			return nil
		}
	}
	return ErrNotFound
}

func (s *memPrinterStore) DeletePrinter(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.printers {
		if p.ID == id {
			s.printers = append(s.printers[:i], s.printers[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type memJobStore struct {
	mu   sync.Mutex
	jobs []*PrintJob
}

func newMemJobStore() *memJobStore {
	return &memJobStore{}
}

func (s *memJobStore) CreateJob(_ context.Context, j *PrintJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.jobs = append(s.jobs, &cp)
	return nil
}

func (s *memJobStore) GetJob(_ context.Context, id string) (*PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j := s.find(id); j != nil {
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (s *memJobStore) find(id string) *PrintJob {
	for _, j := range s.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (s *memJobStore) NextQueuedJob(_ context.Context, printerID string, now time.Time) (*PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Insertion order is creation order; the first eligible job wins.
	for _, j := range s.jobs {
		if j.PrinterID != printerID || j.Status != JobQueued {
			continue
		}
		if j.NotBefore != nil && j.NotBefore.After(now) {
			continue
		}
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (s *memJobStore) ListJobsByRestaurant(_ context.Context, restaurantID string) ([]*PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PrintJob
	for _, j := range s.jobs {
		if j.RestaurantID == restaurantID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memJobStore) StalePrintingJobs(_ context.Context, before time.Time) ([]*PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PrintJob
	for _, j := range s.jobs {
		if j.Status == JobPrinting && j.StartedAt != nil && j.StartedAt.Before(before) {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memJobStore) SetJobPrinting(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.find(id)
	if j == nil || j.Status != JobQueued {
		return false, nil
	}
	j.Status = JobPrinting
	started := at
	j.StartedAt = &started
	return true, nil
}

func (s *memJobStore) SetJobCompleted(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.find(id)
	if j == nil || j.Status != JobPrinting {
		return false, nil
	}
	j.Status = JobCompleted
	done := at
	j.CompletedAt = &done
	return true, nil
}

func (s *memJobStore) SetJobRequeued(_ context.Context, id string, attempts int, notBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.find(id)
	if j == nil || j.Status != JobPrinting {
		return false, nil
	}
	j.Status = JobQueued
	j.Attempts = attempts
	j.ErrorMessage = ""
	nb := notBefore
	j.NotBefore = &nb
	j.StartedAt = nil
	return true, nil
}

func (s *memJobStore) SetJobFailed(_ context.Context, id string, attempts int, errMsg string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.find(id)
	if j == nil || j.Status != JobPrinting {
		return false, nil
	}
	j.Status = JobFailed
	j.Attempts = attempts
	j.ErrorMessage = errMsg
	failed := at
	j.FailedAt = &failed
	return true, nil
}

func (s *memJobStore) SetJobRetried(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.find(id)
	if j == nil || j.Status != JobFailed {
		return false, nil
	}
	j.Status = JobQueued
	j.ErrorMessage = ""
	j.NotBefore = nil
	j.FailedAt = nil
	return true, nil
}

func (s *memJobStore) SetJobCancelled(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.find(id)
	if j == nil || j.Status != JobQueued {
		return false, nil
	}
	j.Status = JobCancelled
	return true, nil
}

func (s *memJobStore) FailQueuedJobsForPrinter(_ context.Context, printerID, errMsg string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.PrinterID == printerID && j.Status == JobQueued {
			j.Status = JobFailed
			j.ErrorMessage = errMsg
			failed := at
			j.FailedAt = &failed
			n++
		}
	}
	return n, nil
}

// fakeTransport records deliveries and can be scripted to fail. It also
// tracks the peak number of concurrent sends per printer.
type fakeTransport struct {
	mu        sync.Mutex
	sends     [][]byte
	sendErr   error
	probeErr  error
	sendDelay time.Duration

	inFlight      map[string]int
	maxInFlight   map[string]int
	sendsByTarget map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inFlight:      make(map[string]int),
		maxInFlight:   make(map[string]int),
		sendsByTarget: make(map[string]int),
	}
}

func (t *fakeTransport) Probe(_ context.Context, _ *Printer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probeErr
}

func (t *fakeTransport) Send(_ context.Context, p *Printer, payload []byte) error {
	t.mu.Lock()
	t.inFlight[p.ID]++
	if t.inFlight[p.ID] > t.maxInFlight[p.ID] {
		t.maxInFlight[p.ID] = t.inFlight[p.ID]
	}
	delay := t.sendDelay
	err := t.sendErr
	t.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	t.mu.Lock()
	t.inFlight[p.ID]--
	if err == nil {
		t.sends = append(t.sends, payload)
		t.sendsByTarget[p.ID]++
	}
	t.mu.Unlock()
	return err
}

func (t *fakeTransport) setSendErr(err error) {
	t.mu.Lock()
	t.sendErr = err
	t.mu.Unlock()
}

func (t *fakeTransport) sendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

func (t *fakeTransport) maxConcurrent(printerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxInFlight[printerID]
}

func (t *fakeTransport) countFor(printerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sendsByTarget[printerID]
}
