package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"orderscraper/internal/orders"
)

type CSVSink struct {
	path string
	out  io.Writer
	rows Rows
}

// NewCSVSink writes to a file, the file is only created once Write is called.
func NewCSVSink(path string, rows Rows) CSVSink {
	return CSVSink{path: path, rows: rows}
}

func NewCSVWriterSink(out io.Writer, rows Rows) CSVSink {
	return CSVSink{out: out, rows: rows}
}

func (s CSVSink) encode(w io.Writer, list []orders.Order) error {
	writer := csv.NewWriter(w)
	err := writer.Write(s.rows.Header())
	if err != nil {
		return err
	}
	err = writer.WriteAll(s.rows.Records(list))
	if err != nil {
		return err
	}
	return writer.Error()
}

func (s CSVSink) Write(ctx context.Context, list []orders.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.out != nil {
		return s.encode(s.out, list)
	}

	dir := filepath.Dir(s.path)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	// write next to the destination so a failed export never leaves a partial file
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = s.encode(tmp, list)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
