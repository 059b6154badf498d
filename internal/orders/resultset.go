package orders

import (
	"slices"
	"strings"
	"time"
)

// ResultSet is the accumulated, deduplicated collection of orders of a run.
// No two entries share an id, and entries are never replaced once inserted.
type ResultSet struct {
	byID map[string]Order
}

func NewResultSet() *ResultSet {
	return &ResultSet{byID: make(map[string]Order)}
}

func (rs *ResultSet) Len() int {
	return len(rs.byID)
}

func (rs *ResultSet) Contains(id string) bool {
	_, ok := rs.byID[id]
	return ok
}

func (rs *ResultSet) Get(id string) (Order, bool) {
	o, ok := rs.byID[id]
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}

// Orders returns copies of every order, most recent first, ties broken by id.
func (rs *ResultSet) Orders() []Order {
	out := make([]Order, 0, len(rs.byID))
	for _, o := range rs.byID {
		out = append(out, o.Clone())
	}
	slices.SortFunc(out, func(a, b Order) int {
		if !a.PlacedAt.Equal(b.PlacedAt) {
			return b.PlacedAt.Compare(a.PlacedAt)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Oldest returns the earliest timestamp in the set, it is zero for an empty set.
func (rs *ResultSet) Oldest() time.Time {
	var oldest time.Time
	for _, o := range rs.byID {
		if oldest.IsZero() || o.PlacedAt.Before(oldest) {
			oldest = o.PlacedAt
		}
	}
	return oldest
}

func (rs *ResultSet) insert(o Order) {
	rs.byID[o.ID] = o.Clone()
}
