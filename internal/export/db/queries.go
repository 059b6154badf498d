package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Order struct {
	ID              string
	PlacedAt        int64
	Status          string
	RawStatus       string
	Total           string
	ItemCount       int64
	DeliveryMinutes sql.NullInt64
	DetailURL       string
}

type LineItem struct {
	OrderID  string
	Position int64
	Name     string
	Quantity int64
	Price    string
}

const deleteLineItems = `delete from line_items`

func (q *Queries) DeleteLineItems(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteLineItems)
	return err
}

const deleteOrders = `delete from orders`

func (q *Queries) DeleteOrders(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteOrders)
	return err
}

const createOrder = `insert into orders (
    id, placed_at, status, raw_status, total, item_count, delivery_minutes, detail_url
) values (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateOrder(ctx context.Context, arg Order) error {
	_, err := q.db.ExecContext(ctx, createOrder,
		arg.ID,
		arg.PlacedAt,
		arg.Status,
		arg.RawStatus,
		arg.Total,
		arg.ItemCount,
		arg.DeliveryMinutes,
		arg.DetailURL,
	)
	return err
}

const createLineItem = `insert into line_items (
    order_id, position, name, quantity, price
) values (?, ?, ?, ?, ?)`

func (q *Queries) CreateLineItem(ctx context.Context, arg LineItem) error {
	_, err := q.db.ExecContext(ctx, createLineItem,
		arg.OrderID,
		arg.Position,
		arg.Name,
		arg.Quantity,
		arg.Price,
	)
	return err
}

const getOrders = `select
    id, placed_at, status, raw_status, total, item_count, delivery_minutes, detail_url
from orders
order by placed_at desc, id asc`

func (q *Queries) GetOrders(ctx context.Context) ([]Order, error) {
	rows, err := q.db.QueryContext(ctx, getOrders)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Order
	for rows.Next() {
		var i Order
		err := rows.Scan(
			&i.ID,
			&i.PlacedAt,
			&i.Status,
			&i.RawStatus,
			&i.Total,
			&i.ItemCount,
			&i.DeliveryMinutes,
			&i.DetailURL,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLineItems = `select order_id, position, name, quantity, price
from line_items
where order_id = ?
order by position asc`

func (q *Queries) GetLineItems(ctx context.Context, orderID string) ([]LineItem, error) {
	rows, err := q.db.QueryContext(ctx, getLineItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var i LineItem
		err := rows.Scan(&i.OrderID, &i.Position, &i.Name, &i.Quantity, &i.Price)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
