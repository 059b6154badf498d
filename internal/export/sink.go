// Package export writes the final, deduplicated orders out of the process.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"orderscraper/internal/orders"
)

// Sink receives the result of a run, it is only called once a run has succeeded.
type Sink interface {
	Write(ctx context.Context, list []orders.Order) error
}

type Format int

const (
	FormatCSV Format = iota
	FormatSQLite
	FormatTable
)

func (f Format) String() string {
	switch f {
	case FormatSQLite:
		return "sqlite"
	case FormatTable:
		return "table"
	}
	return "csv"
}

func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv":
		return FormatCSV, nil
	case "sqlite", "db":
		return FormatSQLite, nil
	case "table":
		return FormatTable, nil
	}
	return FormatCSV, fmt.Errorf("unknown output format '%s', expected csv, sqlite or table", name)
}

// NewSink builds the sink for a format, `stdout` is used by the table format and by
// csv when `path` is "-".
func NewSink(format Format, path string, rows Rows, stdout io.Writer) (Sink, error) {
	switch format {
	case FormatCSV:
		if path == "-" {
			return NewCSVWriterSink(stdout, rows), nil
		}
		return NewCSVSink(path, rows), nil
	case FormatSQLite:
		if path == "" || path == "-" {
			return nil, fmt.Errorf("the sqlite format needs an output file")
		}
		return NewSQLiteSink(path), nil
	case FormatTable:
		return NewTableSink(stdout, rows), nil
	}
	return nil, fmt.Errorf("unsupported format %s", format)
}
