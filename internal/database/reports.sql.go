package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/quickbite/api/internal/enum"
)

const getDailyOrderSummary = `-- name: GetDailyOrderSummary :many
SELECT
    (created_at AT TIME ZONE $4::text)::date AS sale_day,
    COUNT(*)::int8 AS order_count,
    (COUNT(*) FILTER (WHERE status = 'completed'))::int8 AS completed_count,
    COALESCE(SUM(total_amount), 0)::numeric(12, 2) AS total_revenue
FROM orders
WHERE location = $1 AND created_at >= $2 AND created_at < $3
GROUP BY sale_day
ORDER BY sale_day
`

type GetDailyOrderSummaryParams struct {
	Location enum.Location
	Start    time.Time
	End      time.Time
	TimeZone string
}

type GetDailyOrderSummaryRow struct {
	Day            pgtype.Date
	OrderCount     int64
	CompletedCount int64
	TotalRevenue   pgtype.Numeric
}

func (q *Queries) GetDailyOrderSummary(ctx context.Context, arg GetDailyOrderSummaryParams) ([]GetDailyOrderSummaryRow, error) {
	rows, err := q.db.Query(ctx, getDailyOrderSummary, arg.Location, arg.Start, arg.End, arg.TimeZone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailyOrderSummaryRow
	for rows.Next() {
		var i GetDailyOrderSummaryRow
		if err := rows.Scan(&i.Day, &i.OrderCount, &i.CompletedCount, &i.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getItemSales = `-- name: GetItemSales :many
SELECT
    oi.product_id,
    MAX(oi.name) AS name,
    SUM(oi.quantity)::int8 AS quantity_sold,
    SUM(oi.subtotal)::numeric(12, 2) AS total_revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.location = $1 AND o.created_at >= $2 AND o.created_at < $3
GROUP BY oi.product_id
ORDER BY quantity_sold DESC, total_revenue DESC
LIMIT $4
`

type GetItemSalesParams struct {
	Location enum.Location
	Start    time.Time
	End      time.Time
	Limit    int32
}

type GetItemSalesRow struct {
	ProductID    string
	Name         string
	QuantitySold int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetItemSales(ctx context.Context, arg GetItemSalesParams) ([]GetItemSalesRow, error) {
	rows, err := q.db.Query(ctx, getItemSales, arg.Location, arg.Start, arg.End, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetItemSalesRow
	for rows.Next() {
		var i GetItemSalesRow
		if err := rows.Scan(&i.ProductID, &i.Name, &i.QuantitySold, &i.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getLocationComparison = `-- name: GetLocationComparison :many
SELECT
    location,
    COUNT(*)::int8 AS order_count,
    COALESCE(SUM(total_amount), 0)::numeric(12, 2) AS total_revenue
FROM orders
WHERE created_at >= $1 AND created_at < $2
GROUP BY location
ORDER BY location
`

type GetLocationComparisonParams struct {
	Start time.Time
	End   time.Time
}

type GetLocationComparisonRow struct {
	Location     enum.Location
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetLocationComparison(ctx context.Context, arg GetLocationComparisonParams) ([]GetLocationComparisonRow, error) {
	rows, err := q.db.Query(ctx, getLocationComparison, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetLocationComparisonRow
	for rows.Next() {
		var i GetLocationComparisonRow
		if err := rows.Scan(&i.Location, &i.OrderCount, &i.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
