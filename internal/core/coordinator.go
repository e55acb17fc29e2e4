package core

import (
	"context"
	"log"
)

// Coordinator bridges order events to print jobs. It listens for orders
// entering the received status and enqueues a job per auto-print printer of
// the restaurant.
type Coordinator struct {
	registry *Registry
	queue    *Queue
}

func NewCoordinator(machine *StatusMachine, registry *Registry, queue *Queue) *Coordinator {
	c := &Coordinator{
		registry: registry,
		queue:    queue,
	}
	machine.Subscribe(c.handleStatusChange)
	return c
}

func (c *Coordinator) handleStatusChange(change StatusChange) {
	if change.NewStatus != StatusReceived {
		return
	}

	if err := c.AutoPrint(context.Background(), change.RestaurantID, change.OrderID); err != nil {
		log.Printf("coordinator: auto-print for order %s failed: %v", change.OrderID, err)
	}
}

// AutoPrint enqueues the matching document for every enabled auto-print
// printer. One printer's enqueue error is logged and skipped so it cannot
// starve the others.
func (c *Coordinator) AutoPrint(ctx context.Context, restaurantID, orderID string) error {
	printers, err := c.registry.List(ctx, restaurantID, true)
	if err != nil {
		return err
	}

	for _, p := range printers {
		if !p.AutoPrintOrders {
			continue
		}
		if _, err := c.queue.Enqueue(ctx, orderID, p.ID, PrintTypeFor(p.Type)); err != nil {
			log.Printf("coordinator: failed to enqueue %s for printer %s: %v", orderID, p.ID, err)
		}
	}

	return nil
}

// PrintOrder serves an explicit print request against a specific printer.
// The printer lookup is scoped to the caller's restaurant, and Enqueue
// checks the order belongs to the printer's restaurant.
func (c *Coordinator) PrintOrder(ctx context.Context, restaurantID, orderID, printerID string, printType PrintType) (*PrintJob, error) {
	if _, err := c.registry.Get(ctx, restaurantID, printerID); err != nil {
		return nil, err
	}
	return c.queue.Enqueue(ctx, orderID, printerID, printType)
}
