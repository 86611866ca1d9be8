package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/quickbite/api/internal/database"
	"github.com/quickbite/api/internal/enum"
	"github.com/quickbite/api/internal/event"
	"github.com/quickbite/api/internal/lifecycle"
)

const (
	maxTokenRetries    = 3
	maxClientNameLen   = 100
	tokenSeqConstraint = "orders_location_token_seq_key"
)

// maxAmount is the exclusive upper bound of a NUMERIC(12,2) money column.
var maxAmount = decimal.New(1, 10)

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidLocation   = errors.New("invalid location")
	ErrNameRequired      = errors.New("clientName is required")
	ErrNameTooLong       = errors.New("clientName must be at most 100 characters")
	ErrItemNameRequired  = errors.New("item name is required")
	ErrInvalidQuantity   = errors.New("quantity must be >= 1")
	ErrInvalidPrice      = errors.New("unitPrice must be a non-negative amount")
	ErrAmountTooLarge    = errors.New("order total exceeds the maximum amount")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrUserNotFound      = errors.New("user not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = lifecycle.ErrInvalidTransition
	ErrStatusConflict    = errors.New("order status changed, please retry")
	ErrForbidden         = errors.New("order belongs to another location")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and progress orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (database.User, error)
	GetNextOrderTokenSeq(ctx context.Context, location enum.Location) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SetOrderStatus(ctx context.Context, arg database.SetOrderStatusParams) (database.Order, error)
	CreateStatusHistory(ctx context.Context, arg database.CreateStatusHistoryParams) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the input for creating an order. UserID is uuid.Nil
// for anonymous checkout.
type CreateOrderRequest struct {
	Location    string
	UserID      uuid.UUID
	ClientName  string
	TableNumber string
	Items       []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line item. UnitPrice is a decimal string.
type CreateOrderItemRequest struct {
	ProductID string
	Name      string
	UnitPrice string
	Quantity  int32
}

// Actor identifies who is changing an order. A nil Actor means the caller
// is not authenticated.
type Actor struct {
	UserID   uuid.UUID
	Role     string
	Location enum.Location
}

// UpdateStatusRequest is the input for a status transition.
type UpdateStatusRequest struct {
	OrderID uuid.UUID
	Status  string
	Actor   *Actor
}

// OrderResult is an order with its line items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	policy   lifecycle.Policy
	notifier event.Notifier
	now      func() time.Time
}

// NewOrderService creates a new OrderService. notifier may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, policy lifecycle.Policy, notifier event.Notifier) *OrderService {
	return &OrderService{
		pool:     pool,
		newStore: newStore,
		policy:   policy,
		notifier: notifier,
		now:      time.Now,
	}
}

// Policy returns the transition policy the service enforces.
func (s *OrderService) Policy() lifecycle.Policy {
	return s.policy
}

// processedItem holds a validated line item ready to insert.
type processedItem struct {
	productID string
	name      string
	unitPrice decimal.Decimal
	quantity  int32
	subtotal  decimal.Decimal
}

// CreateOrder validates the request, computes the total, and creates the order
// atomically in status pending. Retries up to maxTokenRetries times when two
// concurrent transactions draw the same token sequence.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	loc, err := enum.ParseLocation(req.Location)
	if err != nil {
		return nil, ErrInvalidLocation
	}

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	items, total, err := processItems(req.Items)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxTokenRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req, loc, items, total)
		if err == nil {
			s.notify(ctx, enum.EventOrderCreated, result.Order, "")
			return result, nil
		}
		if isTokenConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func processItems(reqItems []CreateOrderItemRequest) ([]processedItem, decimal.Decimal, error) {
	total := decimal.Zero
	items := make([]processedItem, 0, len(reqItems))
	for i, item := range reqItems {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrItemNameRequired)
		}
		if item.Quantity < 1 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(item.UnitPrice))
		if err != nil || price.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidPrice)
		}
		price = price.Round(2)

		// subtotal = unit_price * quantity
		subtotal := price.Mul(decimal.NewFromInt32(item.Quantity))
		total = total.Add(subtotal)
		if total.GreaterThanOrEqual(maxAmount) {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrAmountTooLarge)
		}

		items = append(items, processedItem{
			productID: strings.TrimSpace(item.ProductID),
			name:      name,
			unitPrice: price,
			quantity:  item.Quantity,
			subtotal:  subtotal,
		})
	}
	return items, total, nil
}

// isTokenConflict checks if the error is a unique constraint violation
// on the per-location token sequence (pgconn error code 23505).
func isTokenConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == tokenSeqConstraint
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, loc enum.Location, items []processedItem, total decimal.Decimal) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Resolve customer name ---
	name := strings.TrimSpace(req.ClientName)
	userID := pgtype.UUID{}
	if req.UserID != uuid.Nil {
		user, err := store.GetUser(ctx, req.UserID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("get user: %w", err)
		}
		userID = pgtype.UUID{Bytes: user.ID, Valid: true}
		if name == "" {
			name = strings.TrimSpace(user.Name)
		}
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	if utf8.RuneCountInString(name) > maxClientNameLen {
		return nil, ErrNameTooLong
	}

	// --- Generate pickup token ---
	seq, err := store.GetNextOrderTokenSeq(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("get next token seq: %w", err)
	}
	token := fmt.Sprintf("%s-%03d", loc.TokenPrefix(), seq)

	tableNumber := pgtype.Text{}
	if t := strings.TrimSpace(req.TableNumber); t != "" {
		tableNumber = pgtype.Text{String: t, Valid: true}
	}

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		Location:    loc,
		Token:       token,
		TokenSeq:    seq,
		UserID:      userID,
		ClientName:  name,
		TableNumber: tableNumber,
		TotalAmount: decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items ---
	created := make([]database.OrderItem, 0, len(items))
	for i, pi := range items {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			Position:  int32(i),
			ProductID: pi.productID,
			Name:      pi.name,
			UnitPrice: decimalToNumeric(pi.unitPrice),
			Quantity:  pi.quantity,
			Subtotal:  decimalToNumeric(pi.subtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		created = append(created, item)
	}

	if err := store.CreateStatusHistory(ctx, database.CreateStatusHistoryParams{
		OrderID:   order.ID,
		ToStatus:  order.Status,
		ChangedBy: userID,
	}); err != nil {
		return nil, fmt.Errorf("create status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: created}, nil
}

// UpdateStatus moves an order to a new status under the configured policy.
// Guarded policies only write if the status is still the one that was read;
// a concurrent change yields ErrStatusConflict. A same-state request under
// the forward policy returns the order unchanged.
func (s *OrderService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*OrderResult, error) {
	next := enum.OrderStatus(req.Status)
	if !next.Valid() {
		return nil, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order for status update: %w", err)
	}

	if a := req.Actor; a != nil && a.Role == enum.UserRoleStaff && a.Location != current.Location {
		return nil, ErrForbidden
	}

	if err := s.policy.Check(current.Status, next); err != nil {
		return nil, err
	}

	if current.Status == next && s.policy != lifecycle.Permissive {
		items, err := store.ListOrderItemsByOrders(ctx, []uuid.UUID{current.ID})
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		return &OrderResult{Order: current, Items: items}, nil
	}

	var updated database.Order
	if s.policy.Guarded() {
		updated, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:         current.ID,
			Status:     next,
			PrevStatus: current.Status,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			// The status moved between our read and write.
			return nil, ErrStatusConflict
		}
	} else {
		updated, err = store.SetOrderStatus(ctx, database.SetOrderStatusParams{
			ID:     current.ID,
			Status: next,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	changedBy := pgtype.UUID{}
	if req.Actor != nil && req.Actor.UserID != uuid.Nil {
		changedBy = pgtype.UUID{Bytes: req.Actor.UserID, Valid: true}
	}
	if err := store.CreateStatusHistory(ctx, database.CreateStatusHistoryParams{
		OrderID:    updated.ID,
		FromStatus: pgtype.Text{String: string(current.Status), Valid: true},
		ToStatus:   updated.Status,
		ChangedBy:  changedBy,
	}); err != nil {
		return nil, fmt.Errorf("create status history: %w", err)
	}

	items, err := store.ListOrderItemsByOrders(ctx, []uuid.UUID{updated.ID})
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.notify(ctx, enum.EventOrderUpdated, updated, current.Status)
	return &OrderResult{Order: updated, Items: items}, nil
}

// IsValidationError reports whether err is a request problem that should
// map to 400 Bad Request.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyItems) ||
		errors.Is(err, ErrInvalidLocation) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrNameTooLong) ||
		errors.Is(err, ErrItemNameRequired) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrAmountTooLarge) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrUserNotFound)
}

func (s *OrderService) notify(ctx context.Context, typ string, o database.Order, prev enum.OrderStatus) {
	if s.notifier == nil {
		return
	}
	// Notifiers log their own failures; the write already committed.
	_ = s.notifier.Notify(ctx, event.Order{
		Type:       typ,
		OrderID:    o.ID,
		Location:   o.Location,
		Token:      o.Token,
		Status:     o.Status,
		PrevStatus: prev,
		OccurredAt: s.now().UTC(),
	})
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
