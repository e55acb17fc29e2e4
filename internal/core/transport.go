package core

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"
)

// Transport delivers rendered payloads to a physical printer. Probe is a
// cheap reachability check used by test-connection and never sends data.
// Both calls must respect the context deadline; a stuck device must not
// hold a dispatcher worker forever.
type Transport interface {
	Probe(ctx context.Context, p *Printer) error
	Send(ctx context.Context, p *Printer, payload []byte) error
}

// Transports selects the transport for a printer's connection type.
type Transports map[ConnectionType]Transport

func (t Transports) For(ct ConnectionType) (Transport, error) {
	tr, ok := t[ct]
	if !ok {
		return nil, fmt.Errorf("no transport for connection type %q", ct)
	}
	return tr, nil
}

// DefaultTransports wires the real device transports.
func DefaultTransports() Transports {
	return Transports{
		ConnectionNetwork:   &NetworkTransport{},
		ConnectionUSB:       &DeviceTransport{},
		ConnectionBluetooth: &DeviceTransport{DefaultPath: "/dev/rfcomm0"},
	}
}

// NetworkTransport talks to raw-socket printers (ESC/POS port 9100 style):
// open a TCP connection, write the payload, close.
type NetworkTransport struct{}

func (t *NetworkTransport) Probe(ctx context.Context, p *Printer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.IPAddress, fmt.Sprintf("%d", p.Port)))
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	conn.Close()
	return nil
}

func (t *NetworkTransport) Send(ctx context.Context, p *Printer, payload []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.IPAddress, fmt.Sprintf("%d", p.Port)))
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}

	if _, err := conn.Write(payload); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// DeviceTransport writes to a character device node. USB printers carry
// their device path in config; bluetooth printers are assumed pre-paired
// and bound to DefaultPath.
type DeviceTransport struct {
	DefaultPath string
}

func (t *DeviceTransport) path(p *Printer) string {
	if p.USBDevice != "" {
		return p.USBDevice
	}
	return t.DefaultPath
}

func (t *DeviceTransport) Probe(ctx context.Context, p *Printer) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "probe", Err: err}
	}
	if _, err := os.Stat(t.path(p)); err != nil {
		return &TransportError{Op: "probe", Err: err}
	}
	return nil
}

func (t *DeviceTransport) Send(ctx context.Context, p *Printer, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "open", Err: err}
	}

	f, err := os.OpenFile(t.path(p), os.O_WRONLY, 0)
	if err != nil {
		return &TransportError{Op: "open", Err: err}
	}
	defer f.Close()

	done := make(chan error, 1)
	go func() {
		_, werr := f.Write(payload)
		done <- werr
	}()

	select {
	case werr := <-done:
		if werr != nil {
			return &TransportError{Op: "write", Err: werr}
		}
		return nil
	case <-ctx.Done():
		return &TransportError{Op: "write", Err: ctx.Err()}
	}
}
