package export

import (
	"context"
	"io"

	"orderscraper/internal/orders"

	"github.com/jedib0t/go-pretty/v6/table"
)

type TableSink struct {
	out  io.Writer
	rows Rows
}

func NewTableSink(out io.Writer, rows Rows) TableSink {
	return TableSink{out: out, rows: rows}
}

func (s TableSink) Write(ctx context.Context, list []orders.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(s.out)

	header := table.Row{}
	for _, h := range s.rows.Header() {
		header = append(header, h)
	}
	t.AppendHeader(header)

	for _, record := range s.rows.Records(list) {
		row := make(table.Row, len(record))
		for i, v := range record {
			row[i] = v
		}
		t.AppendRow(row)
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}
