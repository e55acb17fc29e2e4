package core

import (
	"fmt"
	"strings"
)

// Renderer turns an order into the byte payload a printer receives. The
// dispatcher treats it as opaque.
type Renderer interface {
	Render(order *Order, printType PrintType) ([]byte, error)
}

const ticketWidth = 32

// TextRenderer emits plain fixed-width tickets the way ESC/POS receipt
// printers expect them: header, one line per item, cut at the end.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (r *TextRenderer) Render(order *Order, printType PrintType) ([]byte, error) {
	switch printType {
	case PrintKitchenTicket:
		return r.kitchenTicket(order), nil
	case PrintReceipt:
		return r.receipt(order), nil
	case PrintLabel:
		return r.label(order), nil
	}
	return nil, fmt.Errorf("unknown print type %q", printType)
}

func (r *TextRenderer) kitchenTicket(order *Order) []byte {
	var b strings.Builder

	b.WriteString(center("KITCHEN"))
	b.WriteString(center("ORDER " + shortID(order.ID)))
	b.WriteString(rule())

	for _, item := range order.Items {
		b.WriteString(fmt.Sprintf("%dx %s\n", item.Quantity, item.Name))
		for _, mod := range item.Modifications {
			b.WriteString("   * " + mod + "\n")
		}
	}

	if order.Notes != "" {
		b.WriteString(rule())
		b.WriteString("NOTES: " + order.Notes + "\n")
	}

	b.WriteString(rule())
	b.WriteString(center(order.CreatedAt.Format("15:04 Jan 2")))
	b.WriteString("\n\n\n")

	return []byte(b.String())
}

func (r *TextRenderer) receipt(order *Order) []byte {
	var b strings.Builder

	b.WriteString(center("RECEIPT"))
	b.WriteString(center("ORDER " + shortID(order.ID)))
	b.WriteString(rule())

	for _, item := range order.Items {
		line := fmt.Sprintf("%dx %s", item.Quantity, item.Name)
		price := fmt.Sprintf("%.2f", item.Price*float64(item.Quantity))
		b.WriteString(padBetween(line, price))
	}

	b.WriteString(rule())
	b.WriteString(padBetween("TOTAL", fmt.Sprintf("%.2f", order.TotalPrice)))
	b.WriteString(center(order.CreatedAt.Format("15:04 Jan 2 2006")))
	b.WriteString("\n\n\n")

	return []byte(b.String())
}

func (r *TextRenderer) label(order *Order) []byte {
	var b strings.Builder

	b.WriteString("ORDER " + shortID(order.ID) + "\n")
	b.WriteString(fmt.Sprintf("%d items\n", len(order.Items)))
	b.WriteString(order.CreatedAt.Format("15:04") + "\n")

	return []byte(b.String())
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}

func center(s string) string {
	if len(s) >= ticketWidth {
		return s + "\n"
	}
	pad := (ticketWidth - len(s)) / 2
	return strings.Repeat(" ", pad) + s + "\n"
}

func padBetween(left, right string) string {
	gap := ticketWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

func rule() string {
	return strings.Repeat("-", ticketWidth) + "\n"
}
