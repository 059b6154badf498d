package export

import (
	"fmt"
	"strconv"
	"strings"

	"orderscraper/internal/orders"
)

// Rows selects the granularity of flat outputs.
type Rows int

const (
	// OrderRows is one row per order, line items are flattened into a summary column.
	OrderRows Rows = iota
	// ItemRows is one row per line item, orders without line items produce no rows.
	ItemRows
)

func (r Rows) String() string {
	if r == ItemRows {
		return "items"
	}
	return "orders"
}

func ParseRows(name string) (Rows, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "orders":
		return OrderRows, nil
	case "items":
		return ItemRows, nil
	}
	return OrderRows, fmt.Errorf("unknown row kind '%s', expected 'orders' or 'items'", name)
}

const timestampLayout = "2006-01-02 15:04"

func (r Rows) Header() []string {
	if r == ItemRows {
		return []string{"order_id", "placed_at", "item_name", "quantity", "price"}
	}
	return []string{"order_id", "placed_at", "status", "total", "item_count", "delivery_minutes", "items"}
}

// Records flattens the orders, keeping their order.
func (r Rows) Records(list []orders.Order) [][]string {
	var out [][]string
	for _, o := range list {
		placedAt := o.PlacedAt.Format(timestampLayout)
		if r == ItemRows {
			for _, item := range o.Items {
				out = append(out, []string{
					o.ID,
					placedAt,
					item.Name,
					strconv.Itoa(item.Quantity),
					item.Price.StringFixed(2),
				})
			}
			continue
		}

		delivery := ""
		if o.DeliveryMinutes != nil {
			delivery = strconv.Itoa(*o.DeliveryMinutes)
		}
		out = append(out, []string{
			o.ID,
			placedAt,
			o.Status.String(),
			o.Total.StringFixed(2),
			strconv.Itoa(o.ItemCount),
			delivery,
			o.ItemSummary(),
		})
	}
	return out
}
