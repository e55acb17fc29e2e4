package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/larspage/orderdesk/internal/core"
)

type PrinterStore struct {
	conn *sql.DB
}

func NewPrinterStore(conn *sql.DB) *PrinterStore {
	return &PrinterStore{conn: conn}
}

func (s *PrinterStore) CreatePrinter(ctx context.Context, p *core.Printer) error {
	_, err := s.conn.ExecContext(ctx, insertPrinter,
		p.ID, p.RestaurantID, p.Name, string(p.Type), string(p.ConnectionType),
		p.IPAddress, p.Port, p.USBDevice, p.AutoPrintOrders, p.Enabled,
		string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert printer: %w", err)
	}
	return nil
}

func (s *PrinterStore) GetPrinter(ctx context.Context, id string) (*core.Printer, error) {
	row := s.conn.QueryRowContext(ctx, getPrinterByID, id)
	p, err := scanPrinter(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}
	return p, nil
}

func (s *PrinterStore) ListPrinters(ctx context.Context, restaurantID string, enabledOnly bool) ([]*core.Printer, error) {
	query := listPrintersByRestaurant
	if enabledOnly {
		query = listEnabledPrintersByRestaurant
	}
	rows, err := s.conn.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()
	return collectPrinters(rows)
}

func (s *PrinterStore) ListEnabledPrinters(ctx context.Context) ([]*core.Printer, error) {
	rows, err := s.conn.QueryContext(ctx, listAllEnabledPrinters)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()
	return collectPrinters(rows)
}

func (s *PrinterStore) UpdatePrinter(ctx context.Context, p *core.Printer) error {
	_, err := s.conn.ExecContext(ctx, updatePrinter,
		p.Name, string(p.Type), string(p.ConnectionType), p.IPAddress, p.Port,
		p.USBDevice, p.AutoPrintOrders, p.Enabled, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update printer: %w", err)
	}
	return nil
}

func (s *PrinterStore) UpdatePrinterStatus(ctx context.Context, id string, state core.PrinterState, seenAt time.Time) error {
	_, err := s.conn.ExecContext(ctx, updatePrinterStatus, string(state), seenAt, id)
	if err != nil {
		return fmt.Errorf("failed to update printer status: %w", err)
	}
	return nil
}

func (s *PrinterStore) DeletePrinter(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, deletePrinter, id)
	if err != nil {
		return fmt.Errorf("failed to delete printer: %w", err)
	}
	return nil
}

func collectPrinters(rows *sql.Rows) ([]*core.Printer, error) {
	var printers []*core.Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}

func scanPrinter(row rowScanner) (*core.Printer, error) {
	var p core.Printer
	var ptype, ctype, status string
	var lastSeen sql.NullTime

	err := row.Scan(
		&p.ID, &p.RestaurantID, &p.Name, &ptype, &ctype, &p.IPAddress, &p.Port,
		&p.USBDevice, &p.AutoPrintOrders, &p.Enabled, &status, &lastSeen,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.Type = core.PrinterType(ptype)
	p.ConnectionType = core.ConnectionType(ctype)
	p.Status = core.PrinterState(status)
	if lastSeen.Valid {
		p.LastSeenAt = &lastSeen.Time
	}

	return &p, nil
}
