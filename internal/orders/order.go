package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status int

const (
	StatusOther Status = iota
	StatusDelivered
	StatusCancelled
	StatusReturned
)

var statusNames = map[Status]string{
	StatusOther:     "other",
	StatusDelivered: "delivered",
	StatusCancelled: "cancelled",
	StatusReturned:  "returned",
}

func (s Status) String() string {
	name, ok := statusNames[s]
	if !ok {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return name
}

// ParseStatus maps a status name as written in configuration back to a Status.
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for status, n := range statusNames {
		if n == name {
			return status, nil
		}
	}
	return StatusOther, fmt.Errorf("unknown order status '%s'", name)
}

// ParseStatuses is ParseStatus over a list, it fails on the first unknown name.
func ParseStatuses(names []string) ([]Status, error) {
	out := make([]Status, 0, len(names))
	for _, n := range names {
		status, err := ParseStatus(n)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

type LineItem struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

type Order struct {
	// ID is taken verbatim from the storefront and is the dedup key.
	ID       string
	PlacedAt time.Time
	Status   Status
	// RawStatus is the status text as rendered, Status is derived from it.
	RawStatus string
	Total     decimal.Decimal
	ItemCount int
	// DeliveryMinutes is nil when the storefront did not render a delivery time.
	DeliveryMinutes *int
	DetailURL       string
	Items           []LineItem
}

// Clone returns a deep copy so that the caller cannot mutate orders owned by a ResultSet.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]LineItem, len(o.Items))
		copy(out.Items, o.Items)
	}
	if o.DeliveryMinutes != nil {
		minutes := *o.DeliveryMinutes
		out.DeliveryMinutes = &minutes
	}
	return out
}

// ItemSummary flattens the line items into "2 x Milk (₹54.00); Bread (₹40.00)".
func (o Order) ItemSummary() string {
	parts := make([]string, len(o.Items))
	for i, item := range o.Items {
		prefix := ""
		if item.Quantity > 1 {
			prefix = fmt.Sprintf("%d x ", item.Quantity)
		}
		parts[i] = fmt.Sprintf("%s%s (%s)", prefix, item.Name, item.Price.StringFixed(2))
	}
	return strings.Join(parts, "; ")
}
