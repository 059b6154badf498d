package statedir

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ORDERSCRAPER_STATE_DIR", dir)

	cases := []struct {
		path   string
		expect string
	}{
		{path: "<state>/session.json", expect: filepath.Join(dir, "session.json")},
		{path: "<state>/debug/snapshots", expect: filepath.Join(dir, "debug", "snapshots")},
		{path: "orders.csv", expect: "orders.csv"},
		{path: "/tmp/orders.db", expect: "/tmp/orders.db"},
	}

	for _, test := range cases {
		resolved, err := ResolvePath(test.path)
		require.NoError(t, err)
		require.Equal(t, test.expect, resolved, test.path)
	}
}
