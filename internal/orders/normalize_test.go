package orders

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func day(d int) time.Time {
	return time.Date(2025, time.August, d, 10, 0, 0, 0, ist)
}

func makeOrder(id string, placedAt time.Time, rawStatus string) Order {
	return Order{
		ID:        id,
		PlacedAt:  placedAt,
		RawStatus: rawStatus,
		Total:     decimal.RequireFromString("100.00"),
	}
}

func makeBatch(from, to int) []Order {
	var out []Order
	for i := from; i < to; i++ {
		out = append(out, makeOrder(
			fmt.Sprintf("ORD%03d", i),
			day(1).Add(time.Duration(i)*time.Hour),
			"Delivered",
		))
	}
	return out
}

func newTestNormalizer(since time.Time) Normalizer {
	return NewNormalizer(
		MustDefaultClassifier(),
		since,
		[]Status{StatusCancelled, StatusReturned},
	)
}

func TestMergeOverlappingBatches(t *testing.T) {
	n := newTestNormalizer(day(1))
	rs := NewResultSet()

	first := makeBatch(0, 10)
	// re-renders 3 of the first batch plus 5 new ones
	second := append(makeBatch(7, 10), makeBatch(10, 15)...)

	stats := n.Merge(rs, first)
	require.Equal(t, MergeStats{Added: 10}, stats)

	stats = n.Merge(rs, second)
	require.Equal(t, MergeStats{Added: 5, Duplicate: 3}, stats)
	require.Equal(t, 15, rs.Len())
}

func TestMergeIdempotent(t *testing.T) {
	n := newTestNormalizer(day(2))
	batch := append(makeBatch(0, 40), makeOrder("CANCELLED1", day(20), "Cancelled"))

	once := NewResultSet()
	n.Merge(once, batch)

	twice := NewResultSet()
	n.Merge(twice, batch)
	stats := n.Merge(twice, batch)
	require.Zero(t, stats.Added)

	diff := cmp.Diff(once.Orders(), twice.Orders())
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestMergeInvariants(t *testing.T) {
	since := day(5)
	n := newTestNormalizer(since)
	rs := NewResultSet()

	batch := []Order{
		makeOrder("A", day(10), "Delivered"),
		makeOrder("B", day(4), "Delivered"),
		makeOrder("C", day(6), "Order cancelled"),
		makeOrder("D", day(7), "Refund completed"),
		makeOrder("E", since, "Out for delivery"),
		makeOrder("A", day(11), "Delivered"),
		makeOrder("", day(12), "Delivered"),
		makeOrder("F", time.Time{}, "Delivered"),
	}
	stats := n.Merge(rs, batch)
	require.Equal(t, MergeStats{Added: 2, Invalid: 2, Excluded: 2, TooOld: 1, Duplicate: 1}, stats)

	seen := map[string]bool{}
	for _, o := range rs.Orders() {
		require.False(t, o.PlacedAt.Before(since), o.ID)
		require.NotEqual(t, StatusCancelled, o.Status, o.ID)
		require.NotEqual(t, StatusReturned, o.Status, o.ID)
		require.False(t, seen[o.ID], o.ID)
		seen[o.ID] = true
	}

	// first seen wins
	a, ok := rs.Get("A")
	require.True(t, ok)
	require.True(t, a.PlacedAt.Equal(day(10)))
}

func TestOrdersSortedByRecency(t *testing.T) {
	n := newTestNormalizer(day(1))
	rs := NewResultSet()
	n.Merge(rs, []Order{
		makeOrder("B", day(3), "Delivered"),
		makeOrder("C", day(9), "Delivered"),
		makeOrder("A", day(3), "Delivered"),
		makeOrder("D", day(5), "Delivered"),
	})

	var ids []string
	for _, o := range rs.Orders() {
		ids = append(ids, o.ID)
	}
	require.Equal(t, []string{"C", "D", "A", "B"}, ids)
	require.True(t, rs.Oldest().Equal(day(3)))
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer(day(1))
	minutes := 12

	in := Order{
		ID:              "  ORD1 ",
		PlacedAt:        day(2),
		RawStatus:       "  Arrived in\n 12 minutes ",
		Total:           decimal.RequireFromString("123.456"),
		DeliveryMinutes: &minutes,
		Items: []LineItem{
			{Name: " Amul  Milk ", Price: decimal.RequireFromString("27")},
			{Name: "Bread", Quantity: 2, Price: decimal.RequireFromString("80.004")},
		},
	}
	out := n.Normalize(in)

	expect := Order{
		ID:              "ORD1",
		PlacedAt:        day(2),
		Status:          StatusDelivered,
		RawStatus:       "Arrived in 12 minutes",
		Total:           decimal.RequireFromString("123.46"),
		ItemCount:       2,
		DeliveryMinutes: &minutes,
		Items: []LineItem{
			{Name: "Amul Milk", Quantity: 1, Price: decimal.RequireFromString("27")},
			{Name: "Bread", Quantity: 2, Price: decimal.RequireFromString("80.00")},
		},
	}
	diff := cmp.Diff(expect, out)
	if diff != "" {
		t.Fatal(diff)
	}

	// the input is left untouched
	require.Equal(t, " Amul  Milk ", in.Items[0].Name)
	require.Equal(t, "Amul Milk (27.00); 2 x Bread (80.00)", out.ItemSummary())
}
