package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/quickbite/api/internal/enum"
)

type Order struct {
	ID          uuid.UUID
	Location    enum.Location
	Token       string
	TokenSeq    int32
	UserID      pgtype.UUID
	ClientName  string
	TableNumber pgtype.Text
	TotalAmount pgtype.Numeric
	Status      enum.OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Position  int32
	ProductID string
	Name      string
	UnitPrice pgtype.Numeric
	Quantity  int32
	Subtotal  pgtype.Numeric
}

type OrderStatusHistory struct {
	ID         int64
	OrderID    uuid.UUID
	FromStatus pgtype.Text
	ToStatus   enum.OrderStatus
	ChangedBy  pgtype.UUID
	ChangedAt  time.Time
}

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Phone        pgtype.Text
	Role         string
	Location     pgtype.Text
	CreatedAt    time.Time
}
