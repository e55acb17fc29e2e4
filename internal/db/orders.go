package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/larspage/orderdesk/internal/core"
)

type OrderStore struct {
	conn *sql.DB
}

func NewOrderStore(conn *sql.DB) *OrderStore {
	return &OrderStore{conn: conn}
}

func (s *OrderStore) CreateOrder(ctx context.Context, o *core.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	var guestName, guestPhone, guestEmail string
	if o.Guest != nil {
		guestName = o.Guest.Name
		guestPhone = o.Guest.Phone
		guestEmail = o.Guest.Email
	}

	_, err = s.conn.ExecContext(ctx, insertOrder,
		o.ID, o.RestaurantID, o.CustomerID, guestName, guestPhone, guestEmail,
		string(items), o.TotalPrice, string(o.Status), o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id string) (*core.Order, error) {
	row := s.conn.QueryRowContext(ctx, getOrderByID, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) ListOrdersByRestaurant(ctx context.Context, restaurantID string) ([]*core.Order, error) {
	rows, err := s.conn.QueryContext(ctx, listOrdersByRestaurant, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*core.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *OrderStore) UpdateOrderStatus(ctx context.Context, id string, from, to core.Status, upd core.StatusUpdate) (bool, error) {
	result, err := s.conn.ExecContext(ctx, updateOrderStatusCAS,
		string(to), upd.EstimatedReadyTime, upd.CancellationReason, upd.CancellationReason,
		upd.UpdatedAt, id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*core.Order, error) {
	var o core.Order
	var guestName, guestPhone, guestEmail, itemsJSON, status string
	var estimatedReady sql.NullTime

	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.CustomerID, &guestName, &guestPhone, &guestEmail,
		&itemsJSON, &o.TotalPrice, &status, &o.Notes, &estimatedReady, &o.CancellationReason,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	o.Status = core.Status(status)
	if guestName != "" || guestPhone != "" || guestEmail != "" {
		o.Guest = &core.GuestInfo{Name: guestName, Phone: guestPhone, Email: guestEmail}
	}
	if estimatedReady.Valid {
		o.EstimatedReadyTime = &estimatedReady.Time
	}
	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}

	return &o, nil
}
