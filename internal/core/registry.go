package core

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns printer configuration per restaurant and performs
// connectivity tests. Dispatch workers read printers through it.
type Registry struct {
	printers   PrinterStore
	jobs       JobStore
	transports Transports
	clock      Clock
	timeout    time.Duration

	// onDelete and onEnable let the dispatcher tear down or spin up the
	// worker of a printer without a package cycle.
	onDelete func(printerID string)
	onEnable func(printerID string)

	stopHealth chan struct{}
	healthWG   sync.WaitGroup
}

func NewRegistry(printers PrinterStore, jobs JobStore, transports Transports, clock Clock, timeout time.Duration) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Registry{
		printers:   printers,
		jobs:       jobs,
		transports: transports,
		clock:      clock,
		timeout:    timeout,
	}
}

func (r *Registry) OnDelete(fn func(printerID string)) {
	r.onDelete = fn
}

func (r *Registry) OnEnable(fn func(printerID string)) {
	r.onEnable = fn
}

type PrinterInput struct {
	Name            string         `json:"name"`
	Type            PrinterType    `json:"type"`
	ConnectionType  ConnectionType `json:"connection_type"`
	IPAddress       string         `json:"ip_address"`
	Port            int            `json:"port"`
	USBDevice       string         `json:"usb_device"`
	AutoPrintOrders *bool          `json:"auto_print_orders"`
	Enabled         *bool          `json:"enabled"`
}

// validate collects every violation in one pass so the caller can surface
// the complete list at once.
func validatePrinter(p *Printer) error {
	verr := &ValidationError{}

	if p.Name == "" {
		verr.Add("printer name is required")
	}
	if p.Type == "" {
		verr.Add("printer type is required")
	} else if !p.Type.Valid() {
		verr.Add(fmt.Sprintf("invalid printer type %q", p.Type))
	}

	switch {
	case p.ConnectionType == "":
		verr.Add("connection type is required")
	case !p.ConnectionType.Valid():
		verr.Add(fmt.Sprintf("invalid connection type %q", p.ConnectionType))
	case p.ConnectionType == ConnectionNetwork:
		if p.IPAddress == "" {
			verr.Add("IP address is required for network printers")
		} else if net.ParseIP(p.IPAddress) == nil {
			verr.Add(fmt.Sprintf("invalid IP address %q", p.IPAddress))
		}
		if p.Port < 1 || p.Port > 65535 {
			verr.Add("port must be between 1 and 65535")
		}
	case p.ConnectionType == ConnectionUSB:
		if p.USBDevice == "" {
			verr.Add("USB device path is required for usb printers")
		}
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

func (r *Registry) Create(ctx context.Context, restaurantID string, in PrinterInput) (*Printer, error) {
	now := r.clock.Now()
	p := &Printer{
		ID:             uuid.NewString(),
		RestaurantID:   restaurantID,
		Name:           in.Name,
		Type:           in.Type,
		ConnectionType: in.ConnectionType,
		IPAddress:      in.IPAddress,
		Port:           in.Port,
		USBDevice:      in.USBDevice,
		Enabled:        true,
		Status:         PrinterUnknown,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.AutoPrintOrders != nil {
		p.AutoPrintOrders = *in.AutoPrintOrders
	}
	if in.Enabled != nil {
		p.Enabled = *in.Enabled
	}

	if err := validatePrinter(p); err != nil {
		return nil, err
	}

	if err := r.printers.CreatePrinter(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create printer: %w", err)
	}

	if p.Enabled && r.onEnable != nil {
		r.onEnable(p.ID)
	}

	return p, nil
}

func (r *Registry) Get(ctx context.Context, restaurantID, printerID string) (*Printer, error) {
	p, err := r.printers.GetPrinter(ctx, printerID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.RestaurantID != restaurantID {
		return nil, ErrNotFound
	}
	return p, nil
}

// Update merges the partial input into the stored config and re-validates
// the result as a whole.
func (r *Registry) Update(ctx context.Context, restaurantID, printerID string, in PrinterInput) (*Printer, error) {
	p, err := r.Get(ctx, restaurantID, printerID)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Type != "" {
		p.Type = in.Type
	}
	if in.ConnectionType != "" && in.ConnectionType != p.ConnectionType {
		// Switching transports drops the old variant's parameters.
		p.ConnectionType = in.ConnectionType
		p.IPAddress = ""
		p.Port = 0
		p.USBDevice = ""
	}
	if in.IPAddress != "" {
		p.IPAddress = in.IPAddress
	}
	if in.Port != 0 {
		p.Port = in.Port
	}
	if in.USBDevice != "" {
		p.USBDevice = in.USBDevice
	}
	if in.AutoPrintOrders != nil {
		p.AutoPrintOrders = *in.AutoPrintOrders
	}

	wasEnabled := p.Enabled
	if in.Enabled != nil {
		p.Enabled = *in.Enabled
	}

	if err := validatePrinter(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = r.clock.Now()
	if err := r.printers.UpdatePrinter(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update printer: %w", err)
	}

	if wasEnabled && !p.Enabled && r.onDelete != nil {
		r.onDelete(p.ID)
	}
	if !wasEnabled && p.Enabled && r.onEnable != nil {
		r.onEnable(p.ID)
	}

	return p, nil
}

// Delete removes the printer and fails any jobs still queued against it so
// they do not sit in the queue referencing a dead device.
func (r *Registry) Delete(ctx context.Context, restaurantID, printerID string) error {
	p, err := r.Get(ctx, restaurantID, printerID)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	failed, err := r.jobs.FailQueuedJobsForPrinter(ctx, p.ID, "printer removed", now)
	if err != nil {
		return fmt.Errorf("failed to cancel queued jobs: %w", err)
	}
	if failed > 0 {
		log.Printf("registry: failed %d queued jobs for removed printer %s", failed, p.ID)
	}

	if err := r.printers.DeletePrinter(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to delete printer: %w", err)
	}

	if r.onDelete != nil {
		r.onDelete(p.ID)
	}

	return nil
}

func (r *Registry) List(ctx context.Context, restaurantID string, enabledOnly bool) ([]*Printer, error) {
	return r.printers.ListPrinters(ctx, restaurantID, enabledOnly)
}

type TestResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TestConnection probes the printer over its transport with a bounded
// timeout and records the outcome on the printer's status. It never returns
// a probe failure as an error; the result object carries it.
func (r *Registry) TestConnection(ctx context.Context, restaurantID, printerID string) (*TestResult, error) {
	p, err := r.Get(ctx, restaurantID, printerID)
	if err != nil {
		return nil, err
	}

	tr, err := r.transports.For(p.ConnectionType)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := r.clock.Now()
	result := &TestResult{Timestamp: now}

	if probeErr := tr.Probe(probeCtx, p); probeErr != nil {
		result.Success = false
		result.Message = fmt.Sprintf("printer unreachable: %v", probeErr)
		if err := r.printers.UpdatePrinterStatus(ctx, p.ID, PrinterError, now); err != nil {
			log.Printf("registry: failed to update printer %s status: %v", p.ID, err)
		}
		return result, nil
	}

	result.Success = true
	result.Message = "printer is reachable"
	if err := r.printers.UpdatePrinterStatus(ctx, p.ID, PrinterOnline, now); err != nil {
		log.Printf("registry: failed to update printer %s status: %v", p.ID, err)
	}
	return result, nil
}

// StartHealthChecks probes every enabled printer on the given interval and
// keeps its status current. An interval of zero disables the loop.
func (r *Registry) StartHealthChecks(interval time.Duration) {
	if interval <= 0 || r.stopHealth != nil {
		return
	}
	r.stopHealth = make(chan struct{})

	r.healthWG.Add(1)
	go func() {
		defer r.healthWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopHealth:
				return
			case <-ticker.C:
				r.checkAll(context.Background())
			}
		}
	}()
}

func (r *Registry) StopHealthChecks() {
	if r.stopHealth == nil {
		return
	}
	close(r.stopHealth)
	r.healthWG.Wait()
	r.stopHealth = nil
}

func (r *Registry) checkAll(ctx context.Context) {
	printers, err := r.printers.ListEnabledPrinters(ctx)
	if err != nil {
		log.Printf("registry: health check listing failed: %v", err)
		return
	}

	for _, p := range printers {
		tr, err := r.transports.For(p.ConnectionType)
		if err != nil {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
		probeErr := tr.Probe(probeCtx, p)
		cancel()

		state := PrinterOnline
		if probeErr != nil {
			state = PrinterOffline
		}
		if state == p.Status {
			continue
		}
		if err := r.printers.UpdatePrinterStatus(ctx, p.ID, state, r.clock.Now()); err != nil {
			log.Printf("registry: failed to update printer %s status: %v", p.ID, err)
		}
	}
}
