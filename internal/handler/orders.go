package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/quickbite/api/internal/database"
	"github.com/quickbite/api/internal/enum"
	"github.com/quickbite/api/internal/middleware"
	"github.com/quickbite/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (*service.OrderResult, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrdersByLocation(ctx context.Context, arg database.ListOrdersByLocationParams) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// guard, when non-nil, wraps the staff-facing routes; the location list is
// additionally scoped to the caller's location.
func (h *OrderHandler) RegisterRoutes(r chi.Router, guard func(http.Handler) http.Handler) {
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Get)

	r.Group(func(r chi.Router) {
		if guard != nil {
			r.Use(guard)
			r.With(middleware.RequireLocation).Get("/orders/location/{location}", h.List)
		} else {
			r.Get("/orders/location/{location}", h.List)
		}
		r.Get("/orders/{id}/history", h.History)
		r.Patch("/orders/{id}/status", h.UpdateStatus)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	UserID      string                   `json:"userId"`
	ClientName  string                   `json:"clientName"`
	Location    string                   `json:"location"`
	TableNumber string                   `json:"tableNumber"`
	Items       []createOrderItemRequest `json:"items"`
}

// UnitPrice accepts either a JSON number or a decimal string.
type createOrderItemRequest struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	UnitPrice json.Number `json:"unitPrice"`
	Quantity  int32       `json:"quantity"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	Token       string              `json:"token"`
	Location    string              `json:"location"`
	UserID      *string             `json:"userId"`
	ClientName  string              `json:"clientName"`
	TableNumber *string             `json:"tableNumber"`
	TotalAmount string              `json:"totalAmount"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Items       []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unitPrice"`
	Quantity  int32     `json:"quantity"`
	Subtotal  string    `json:"subtotal"`
}

type statusHistoryResponse struct {
	FromStatus *string   `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ChangedBy  *string   `json:"changedBy"`
	ChangedAt  time.Time `json:"changedAt"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders. Anonymous callers supply clientName; an
// authenticated caller's identity replaces any userId in the body.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location is required"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be >= 1"),
			})
			return
		}
		if item.UnitPrice == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "unitPrice is required"),
			})
			return
		}
	}

	userID := uuid.Nil
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		userID = claims.UserID
	} else if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid userId"})
			return
		}
		userID = id
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.String(),
			Quantity:  item.Quantity,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Location:    req.Location,
		UserID:      userID,
		ClientName:  req.ClientName,
		TableNumber: req.TableNumber,
		Items:       svcItems,
	})
	if err != nil {
		if service.IsValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.WithError(err).Error("create order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order, result.Items))
}

// List handles GET /orders/location/{location}, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	loc, err := enum.ParseLocation(chi.URLParam(r, "location"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid location"})
		return
	}

	params := database.ListOrdersByLocationParams{Location: loc}
	if s := r.URL.Query().Get("status"); s != "" {
		if !enum.OrderStatus(s).Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrdersByLocation(r.Context(), params)
	if err != nil {
		log.WithError(err).Error("list orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemsByOrder := map[uuid.UUID][]database.OrderItem{}
	if len(orders) > 0 {
		ids := make([]uuid.UUID, len(orders))
		for i, o := range orders {
			ids[i] = o.ID
		}
		items, err := h.store.ListOrderItemsByOrders(r.Context(), ids)
		if err != nil {
			log.WithError(err).Error("list order items")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		for _, item := range items {
			itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
		}
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o, itemsByOrder[o.ID])
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, ok := h.loadOrder(w, r, orderID)
	if !ok {
		return
	}

	items, err := h.store.ListOrderItemsByOrders(r.Context(), []uuid.UUID{orderID})
	if err != nil {
		log.WithError(err).Error("list order items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

// History handles GET /orders/{id}/history, oldest change first.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, ok := h.loadOrder(w, r, orderID)
	if !ok {
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil &&
		claims.Role == enum.UserRoleStaff && claims.Location != string(order.Location) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this location"})
		return
	}

	rows, err := h.store.ListStatusHistory(r.Context(), orderID)
	if err != nil {
		log.WithError(err).Error("list status history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]statusHistoryResponse, len(rows))
	for i, row := range rows {
		resp[i] = statusHistoryResponse{
			ToStatus:  string(row.ToStatus),
			ChangedAt: row.ChangedAt,
		}
		if row.FromStatus.Valid {
			resp[i].FromStatus = &row.FromStatus.String
		}
		if row.ChangedBy.Valid {
			s := uuid.UUID(row.ChangedBy.Bytes).String()
			resp[i].ChangedBy = &s
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	var actor *service.Actor
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		actor = &service.Actor{
			UserID:   claims.UserID,
			Role:     claims.Role,
			Location: enum.Location(claims.Location),
		}
	}

	result, err := h.svc.UpdateStatus(r.Context(), service.UpdateStatusRequest{
		OrderID: orderID,
		Status:  req.Status,
		Actor:   actor,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrForbidden):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this location"})
		case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrStatusConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.WithError(err).WithField("orderID", orderID).Error("update order status")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result.Order, result.Items))
}

// --- Helpers ---

func (h *OrderHandler) loadOrder(w http.ResponseWriter, r *http.Request, id uuid.UUID) (database.Order, bool) {
	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return database.Order{}, false
		}
		log.WithError(err).Error("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.Order{}, false
	}
	return order, true
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		Token:       o.Token,
		Location:    string(o.Location),
		ClientName:  o.ClientName,
		TotalAmount: numericToString(o.TotalAmount),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}

	if o.UserID.Valid {
		s := uuid.UUID(o.UserID.Bytes).String()
		resp.UserID = &s
	}
	if o.TableNumber.Valid {
		resp.TableNumber = &o.TableNumber.String
	}

	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: numericToString(item.UnitPrice),
			Quantity:  item.Quantity,
			Subtotal:  numericToString(item.Subtotal),
		}
	}

	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
