package commands

import (
	"testing"
	"time"

	"orderscraper/internal/components/chrono"
	"orderscraper/internal/export"

	"github.com/stretchr/testify/require"
)

func TestParseSince(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	clock := chrono.FixedImpl{At: time.Date(2025, time.August, 20, 10, 0, 0, 0, ist)}

	since, err := parseSince("", clock)
	require.NoError(t, err)
	require.True(t, since.Equal(time.Date(2025, time.August, 1, 0, 0, 0, 0, ist)))

	since, err = parseSince("2025-06-15", clock)
	require.NoError(t, err)
	require.True(t, since.Equal(time.Date(2025, time.June, 15, 0, 0, 0, 0, ist)))

	_, err = parseSince("15/06/2025", clock)
	require.Error(t, err)
	_, err = parseSince("2025-09-01", clock)
	require.Error(t, err)
}

func TestDefaultOut(t *testing.T) {
	require.Equal(t, "orders.csv", defaultOut(export.FormatCSV, ""))
	require.Equal(t, "orders.db", defaultOut(export.FormatSQLite, ""))
	require.Equal(t, "-", defaultOut(export.FormatTable, ""))
	require.Equal(t, "out.csv", defaultOut(export.FormatCSV, "out.csv"))
}
