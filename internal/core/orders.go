package core

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StatusMachine validates and applies order status transitions. It is the
// only component allowed to mutate an order after creation.
type StatusMachine struct {
	orders OrderStore
	clock  Clock

	mu          sync.RWMutex
	subscribers []func(StatusChange)
}

func NewStatusMachine(orders OrderStore, clock Clock) *StatusMachine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StatusMachine{
		orders: orders,
		clock:  clock,
	}
}

// Subscribe registers a listener for successful transitions. Listeners run
// synchronously in the order they were registered.
func (m *StatusMachine) Subscribe(fn func(StatusChange)) {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	m.mu.Unlock()
}

func (m *StatusMachine) notify(change StatusChange) {
	m.mu.RLock()
	subs := make([]func(StatusChange), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(change)
	}
}

type CreateOrderInput struct {
	RestaurantID string
	CustomerID   string
	Guest        *GuestInfo
	Items        []OrderItem
	Notes        string
}

func (m *StatusMachine) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	verr := &ValidationError{}

	if in.RestaurantID == "" {
		verr.Add("restaurant id is required")
	}

	hasCustomer := in.CustomerID != ""
	hasGuest := in.Guest != nil
	if hasCustomer == hasGuest {
		verr.Add("exactly one of customer id or guest info must be provided")
	}
	if hasGuest {
		if in.Guest.Name == "" {
			verr.Add("guest name is required")
		}
		if in.Guest.Phone == "" {
			verr.Add("guest phone is required")
		}
		if in.Guest.Email == "" {
			verr.Add("guest email is required")
		}
	}

	if len(in.Items) == 0 {
		verr.Add("at least one item is required")
	}
	for i, item := range in.Items {
		if item.Name == "" {
			verr.Add(fmt.Sprintf("item %d: name is required", i+1))
		}
		if item.Price < 0 {
			verr.Add(fmt.Sprintf("item %d: price must not be negative", i+1))
		}
		if item.Quantity < 1 {
			verr.Add(fmt.Sprintf("item %d: quantity must be positive", i+1))
		}
	}

	if verr.HasViolations() {
		return nil, verr
	}

	total := 0.0
	for _, item := range in.Items {
		total += item.Price * float64(item.Quantity)
	}

	now := m.clock.Now()
	order := &Order{
		ID:           uuid.NewString(),
		RestaurantID: in.RestaurantID,
		CustomerID:   in.CustomerID,
		Guest:        in.Guest,
		Items:        in.Items,
		TotalPrice:   math.Round(total*100) / 100,
		Status:       StatusReceived,
		Notes:        in.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	m.notify(StatusChange{
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		NewStatus:    StatusReceived,
	})

	return order, nil
}

func (m *StatusMachine) GetOrder(ctx context.Context, id string) (*Order, error) {
	return m.orders.GetOrder(ctx, id)
}

func (m *StatusMachine) ListOrders(ctx context.Context, restaurantID string) ([]*Order, error) {
	return m.orders.ListOrdersByRestaurant(ctx, restaurantID)
}

// UpdateStatus applies one transition, enforcing the transition table and
// the caller's authorization, then emits the change to subscribers.
func (m *StatusMachine) UpdateStatus(ctx context.Context, p Principal, orderID string, newStatus Status, estimatedReady *time.Time, reason string) (*Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	order, err := m.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrNotFound
	}

	if err := m.authorize(p, order, newStatus); err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	upd := StatusUpdate{
		EstimatedReadyTime: estimatedReady,
		UpdatedAt:          m.clock.Now(),
	}
	if newStatus == StatusCancelled {
		upd.CancellationReason = reason
	}

	applied, err := m.orders.UpdateOrderStatus(ctx, orderID, order.Status, newStatus, upd)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !applied {
		// A concurrent writer won the race; re-read so the error reports
		// the transition that was actually attempted.
		current, rerr := m.orders.GetOrder(ctx, orderID)
		if rerr == nil && current != nil {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newStatus)
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	oldStatus := order.Status
	order.Status = newStatus
	order.UpdatedAt = upd.UpdatedAt
	if upd.EstimatedReadyTime != nil {
		order.EstimatedReadyTime = upd.EstimatedReadyTime
	}
	if newStatus == StatusCancelled {
		order.CancellationReason = reason
	}

	m.notify(StatusChange{
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID,
		OldStatus:    oldStatus,
		NewStatus:    newStatus,
	})

	return order, nil
}

// BulkResult is the outcome of a bulk transition: partial failure is data,
// not an error.
type BulkResult struct {
	Updated []*Order `json:"updated"`
	Failed  []string `json:"failed"`
}

// BulkUpdateStatus applies the transition to each order independently. A
// failure on one order leaves it untouched and does not abort the batch;
// other actors may be transitioning the same orders concurrently.
func (m *StatusMachine) BulkUpdateStatus(ctx context.Context, p Principal, orderIDs []string, newStatus Status, estimatedReady *time.Time, reason string) *BulkResult {
	result := &BulkResult{
		Updated: []*Order{},
		Failed:  []string{},
	}

	for _, id := range orderIDs {
		order, err := m.UpdateStatus(ctx, p, id, newStatus, estimatedReady, reason)
		if err != nil {
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Updated = append(result.Updated, order)
	}

	return result
}

// Cancel is sugar for a transition to cancelled with a mandatory reason.
func (m *StatusMachine) Cancel(ctx context.Context, p Principal, orderID, reason string) (*Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Violations: []string{"cancellation reason is required"}}
	}
	return m.UpdateStatus(ctx, p, orderID, StatusCancelled, nil, reason)
}

func (m *StatusMachine) authorize(p Principal, order *Order, newStatus Status) error {
	switch p.Role {
	case RoleOwner, RoleStaff:
		if p.RestaurantID != order.RestaurantID {
			return ErrForbidden
		}
		return nil
	case RoleCustomer:
		// Customers may only cancel their own orders.
		if newStatus == StatusCancelled && p.UserID != "" && p.UserID == order.CustomerID {
			return nil
		}
		return ErrForbidden
	case RoleGuest:
		// Guest cancellation requires both contact fields to match the
		// order's guest info.
		if newStatus != StatusCancelled || order.Guest == nil {
			return ErrForbidden
		}
		if !strings.EqualFold(p.GuestEmail, order.Guest.Email) || p.GuestPhone != order.Guest.Phone {
			return ErrForbidden
		}
		return nil
	}
	return ErrForbidden
}
