package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/quickbite/api/internal/enum"
)

const orderColumns = `id, location, token, token_seq, user_id, client_name, table_number, total_amount, status, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.Location,
		&i.Token,
		&i.TokenSeq,
		&i.UserID,
		&i.ClientName,
		&i.TableNumber,
		&i.TotalAmount,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextOrderTokenSeq = `-- name: GetNextOrderTokenSeq :one
SELECT (COALESCE(MAX(token_seq), 0) + 1)::int4 FROM orders WHERE location = $1
`

func (q *Queries) GetNextOrderTokenSeq(ctx context.Context, location enum.Location) (int32, error) {
	row := q.db.QueryRow(ctx, getNextOrderTokenSeq, location)
	var next int32
	err := row.Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (location, token, token_seq, user_id, client_name, table_number, total_amount, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
RETURNING ` + orderColumns

type CreateOrderParams struct {
	Location    enum.Location
	Token       string
	TokenSeq    int32
	UserID      pgtype.UUID
	ClientName  string
	TableNumber pgtype.Text
	TotalAmount pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.Location,
		arg.Token,
		arg.TokenSeq,
		arg.UserID,
		arg.ClientName,
		arg.TableNumber,
		arg.TotalAmount,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, position, product_id, name, unit_price, quantity, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, position, product_id, name, unit_price, quantity, subtotal
`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	Position  int32
	ProductID string
	Name      string
	UnitPrice pgtype.Numeric
	Quantity  int32
	Subtotal  pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.Position,
		arg.ProductID,
		arg.Name,
		arg.UnitPrice,
		arg.Quantity,
		arg.Subtotal,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Position,
		&i.ProductID,
		&i.Name,
		&i.UnitPrice,
		&i.Quantity,
		&i.Subtotal,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrdersByLocation = `-- name: ListOrdersByLocation :many
SELECT ` + orderColumns + ` FROM orders
WHERE location = $1
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
`

type ListOrdersByLocationParams struct {
	Location enum.Location
	Status   pgtype.Text
}

func (q *Queries) ListOrdersByLocation(ctx context.Context, arg ListOrdersByLocationParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByLocation, arg.Location, arg.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT id, order_id, position, product_id, name, unit_price, quantity, subtotal
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, position
`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Position,
			&i.ProductID,
			&i.Name,
			&i.UnitPrice,
			&i.Quantity,
			&i.Subtotal,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     enum.OrderStatus
	PrevStatus enum.OrderStatus
}

// UpdateOrderStatus only succeeds while the order still has PrevStatus.
// pgx.ErrNoRows means the order is gone or its status moved underneath the caller.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PrevStatus))
}

const setOrderStatus = `-- name: SetOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type SetOrderStatusParams struct {
	ID     uuid.UUID
	Status enum.OrderStatus
}

func (q *Queries) SetOrderStatus(ctx context.Context, arg SetOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderStatus, arg.ID, arg.Status))
}

const createStatusHistory = `-- name: CreateStatusHistory :exec
INSERT INTO order_status_history (order_id, from_status, to_status, changed_by)
VALUES ($1, $2, $3, $4)
`

type CreateStatusHistoryParams struct {
	OrderID    uuid.UUID
	FromStatus pgtype.Text
	ToStatus   enum.OrderStatus
	ChangedBy  pgtype.UUID
}

func (q *Queries) CreateStatusHistory(ctx context.Context, arg CreateStatusHistoryParams) error {
	_, err := q.db.Exec(ctx, createStatusHistory, arg.OrderID, arg.FromStatus, arg.ToStatus, arg.ChangedBy)
	return err
}

const listStatusHistory = `-- name: ListStatusHistory :many
SELECT id, order_id, from_status, to_status, changed_by, changed_at
FROM order_status_history
WHERE order_id = $1
ORDER BY changed_at, id
`

func (q *Queries) ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]OrderStatusHistory, error) {
	rows, err := q.db.Query(ctx, listStatusHistory, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderStatusHistory{}
	for rows.Next() {
		var i OrderStatusHistory
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.FromStatus,
			&i.ToStatus,
			&i.ChangedBy,
			&i.ChangedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
