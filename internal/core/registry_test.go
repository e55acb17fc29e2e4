package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func newTestRegistry(transport Transport) (*Registry, *memPrinterStore, *memJobStore, *fakeClock) {
	printers := newMemPrinterStore()
	jobs := newMemJobStore()
	clock := newFakeClock()
	transports := Transports{
		ConnectionNetwork:   transport,
		ConnectionUSB:       transport,
		ConnectionBluetooth: transport,
	}
	r := NewRegistry(printers, jobs, transports, clock, time.Second)
	return r, printers, jobs, clock
}

func networkPrinterInput() PrinterInput {
	return PrinterInput{
		Name:           "Kitchen Left",
		Type:           PrinterTypeKitchen,
		ConnectionType: ConnectionNetwork,
		IPAddress:      "192.168.1.50",
		Port:           9100,
	}
}

func TestRegistryCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		r, _, _, clock := newTestRegistry(newFakeTransport())
		p, err := r.Create(ctx, "rest-1", networkPrinterInput())
		require.NoError(t, err)
		assert.True(t, p.Enabled)
		assert.False(t, p.AutoPrintOrders)
		assert.Equal(t, PrinterUnknown, p.Status)
		assert.Equal(t, clock.Now(), p.CreatedAt)
	})

	t.Run("fires the enable hook", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		var enabled []string
		r.OnEnable(func(id string) { enabled = append(enabled, id) })

		p, err := r.Create(ctx, "rest-1", networkPrinterInput())
		require.NoError(t, err)
		assert.Equal(t, []string{p.ID}, enabled)

		in := networkPrinterInput()
		in.Enabled = boolPtr(false)
		_, err = r.Create(ctx, "rest-1", in)
		require.NoError(t, err)
		assert.Len(t, enabled, 1)
	})

	t.Run("validation lists every violation", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		_, err := r.Create(ctx, "rest-1", PrinterInput{
			Type:           PrinterTypeKitchen,
			ConnectionType: ConnectionNetwork,
			Port:           70000,
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Violations, "printer name is required")
		assert.Contains(t, verr.Violations, "IP address is required for network printers")
		assert.Contains(t, verr.Violations, "port must be between 1 and 65535")
	})

	t.Run("network printer needs a parseable IP", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		in := networkPrinterInput()
		in.IPAddress = "not-an-ip"
		_, err := r.Create(ctx, "rest-1", in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Violations, `invalid IP address "not-an-ip"`)
	})

	t.Run("usb printer needs a device path", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		_, err := r.Create(ctx, "rest-1", PrinterInput{
			Name:           "Receipt",
			Type:           PrinterTypeReceipt,
			ConnectionType: ConnectionUSB,
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Violations, "USB device path is required for usb printers")
	})

	t.Run("bluetooth printer needs no address", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		_, err := r.Create(ctx, "rest-1", PrinterInput{
			Name:           "Label",
			Type:           PrinterTypeLabel,
			ConnectionType: ConnectionBluetooth,
		})
		assert.NoError(t, err)
	})
}

func TestRegistryGet(t *testing.T) {
	ctx := context.Background()
	r, _, _, _ := newTestRegistry(newFakeTransport())

	p, err := r.Create(ctx, "rest-1", networkPrinterInput())
	require.NoError(t, err)

	got, err := r.Get(ctx, "rest-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	// Another restaurant's printers stay invisible.
	_, err = r.Get(ctx, "rest-2", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("merges partial input", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		p, err := r.Create(ctx, "rest-1", networkPrinterInput())
		require.NoError(t, err)

		got, err := r.Update(ctx, "rest-1", p.ID, PrinterInput{Name: "Kitchen Right"})
		require.NoError(t, err)
		assert.Equal(t, "Kitchen Right", got.Name)
		assert.Equal(t, "192.168.1.50", got.IPAddress)
	})

	t.Run("switching connection type clears the old address", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		p, err := r.Create(ctx, "rest-1", networkPrinterInput())
		require.NoError(t, err)

		got, err := r.Update(ctx, "rest-1", p.ID, PrinterInput{
			ConnectionType: ConnectionUSB,
			USBDevice:      "/dev/usb/lp0",
		})
		require.NoError(t, err)
		assert.Equal(t, ConnectionUSB, got.ConnectionType)
		assert.Empty(t, got.IPAddress)
		assert.Zero(t, got.Port)
		assert.Equal(t, "/dev/usb/lp0", got.USBDevice)
	})

	t.Run("switching without the new address is invalid", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		p, err := r.Create(ctx, "rest-1", networkPrinterInput())
		require.NoError(t, err)

		_, err = r.Update(ctx, "rest-1", p.ID, PrinterInput{ConnectionType: ConnectionUSB})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Violations, "USB device path is required for usb printers")
	})

	t.Run("disable and re-enable fire the worker hooks", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		p, err := r.Create(ctx, "rest-1", networkPrinterInput())
		require.NoError(t, err)

		var stopped, started []string
		r.OnDelete(func(id string) { stopped = append(stopped, id) })
		r.OnEnable(func(id string) { started = append(started, id) })

		_, err = r.Update(ctx, "rest-1", p.ID, PrinterInput{Enabled: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, []string{p.ID}, stopped)

		_, err = r.Update(ctx, "rest-1", p.ID, PrinterInput{Enabled: boolPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, []string{p.ID}, started)
	})
}

func TestRegistryDelete(t *testing.T) {
	ctx := context.Background()
	r, printers, jobs, clock := newTestRegistry(newFakeTransport())

	p, err := r.Create(ctx, "rest-1", networkPrinterInput())
	require.NoError(t, err)

	// Two jobs queued against the printer, one already completed.
	for _, j := range []*PrintJob{
		{ID: "j1", PrinterID: p.ID, RestaurantID: "rest-1", Status: JobQueued, CreatedAt: clock.Now()},
		{ID: "j2", PrinterID: p.ID, RestaurantID: "rest-1", Status: JobQueued, CreatedAt: clock.Now()},
		{ID: "j3", PrinterID: p.ID, RestaurantID: "rest-1", Status: JobCompleted, CreatedAt: clock.Now()},
	} {
		require.NoError(t, jobs.CreateJob(ctx, j))
	}

	var stopped []string
	r.OnDelete(func(id string) { stopped = append(stopped, id) })

	require.NoError(t, r.Delete(ctx, "rest-1", p.ID))
	assert.Equal(t, []string{p.ID}, stopped)

	got, err := printers.GetPrinter(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, id := range []string{"j1", "j2"} {
		j, err := jobs.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, JobFailed, j.Status)
		assert.Equal(t, "printer removed", j.ErrorMessage)
	}
	j3, err := jobs.GetJob(ctx, "j3")
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, j3.Status)
}

func TestRegistryTestConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("reachable printer goes online", func(t *testing.T) {
		transport := newFakeTransport()
		r, printers, _, clock := newTestRegistry(transport)
		p, err := r.Create(ctx, "rest-1", networkPrinterInput())
		require.NoError(t, err)

		result, err := r.TestConnection(ctx, "rest-1", p.ID)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, clock.Now(), result.Timestamp)

		got, err := printers.GetPrinter(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, PrinterOnline, got.Status)
		require.NotNil(t, got.LastSeenAt)
	})

	t.Run("probe failure is a result, not an error", func(t *testing.T) {
		transport := newFakeTransport()
		transport.probeErr = errors.New("connection refused")
		r, printers, _, _ := newTestRegistry(transport)
		p, err := r.Create(ctx, "rest-1", networkPrinterInput())
		require.NoError(t, err)

		result, err := r.TestConnection(ctx, "rest-1", p.ID)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "connection refused")

		got, err := printers.GetPrinter(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, PrinterError, got.Status)
	})

	t.Run("unknown printer", func(t *testing.T) {
		r, _, _, _ := newTestRegistry(newFakeTransport())
		_, err := r.TestConnection(ctx, "rest-1", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestHealthChecks(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	r, printers, _, _ := newTestRegistry(transport)

	p, err := r.Create(ctx, "rest-1", networkPrinterInput())
	require.NoError(t, err)

	r.StartHealthChecks(5 * time.Millisecond)
	defer r.StopHealthChecks()

	deadline := time.Now().Add(time.Second)
	online := func() bool {
		got, err := printers.GetPrinter(ctx, p.ID)
		return err == nil && got.Status == PrinterOnline
	}
	for !online() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, online())

	// The device disappears; the next sweep marks it offline.
	transport.mu.Lock()
	transport.probeErr = errors.New("no route to host")
	transport.mu.Unlock()

	offline := func() bool {
		got, err := printers.GetPrinter(ctx, p.ID)
		return err == nil && got.Status == PrinterOffline
	}
	deadline = time.Now().Add(time.Second)
	for !offline() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, offline())
}
