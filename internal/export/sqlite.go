package export

import (
	"context"
	"database/sql"
	"strings"

	"orderscraper/internal/export/db"
	"orderscraper/internal/orders"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("orderscraper/internal/export")

// SQLiteSink replaces the contents of the orders and line_items tables of a sqlite
// database with the result of the run.
type SQLiteSink struct {
	path string
}

func NewSQLiteSink(path string) SQLiteSink {
	return SQLiteSink{path: path}
}

func (s SQLiteSink) Write(ctx context.Context, list []orders.Order) error {
	ctx, span := tracer.Start(ctx, "SQLiteSink.Write")
	defer span.End()
	span.SetAttributes(attribute.Int("orders", len(list)))

	err := s.write(ctx, list)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s SQLiteSink) write(ctx context.Context, list []orders.Order) error {
	database, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	defer database.Close()

	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}

	qry, discard, commit, err := db.NewMakeTx(database)(ctx)
	if err != nil {
		return err
	}
	defer discard()

	err = qry.DeleteLineItems(ctx)
	if err != nil {
		return err
	}
	err = qry.DeleteOrders(ctx)
	if err != nil {
		return err
	}

	for _, o := range list {
		row := db.Order{
			ID:        o.ID,
			PlacedAt:  o.PlacedAt.Unix(),
			Status:    o.Status.String(),
			RawStatus: o.RawStatus,
			Total:     o.Total.StringFixed(2),
			ItemCount: int64(o.ItemCount),
			DetailURL: o.DetailURL,
		}
		if o.DeliveryMinutes != nil {
			row.DeliveryMinutes = sql.NullInt64{Int64: int64(*o.DeliveryMinutes), Valid: true}
		}
		err = qry.CreateOrder(ctx, row)
		if err != nil {
			return err
		}

		for i, item := range o.Items {
			err = qry.CreateLineItem(ctx, db.LineItem{
				OrderID:  o.ID,
				Position: int64(i),
				Name:     item.Name,
				Quantity: int64(item.Quantity),
				Price:    item.Price.StringFixed(2),
			})
			if err != nil {
				return err
			}
		}
	}

	return commit()
}
