package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/quickbite/api/internal/auth"
	"github.com/quickbite/api/internal/database"
	"github.com/quickbite/api/internal/enum"
	"github.com/quickbite/api/internal/handler"
	"github.com/quickbite/api/internal/middleware"
	"github.com/quickbite/api/internal/service"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	createFn       func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	updateStatusFn func(ctx context.Context, req service.UpdateStatusRequest) (*service.OrderResult, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (*service.OrderResult, error) {
	return m.updateStatusFn(ctx, req)
}

// --- Mock OrderStore ---

type mockOrderStore struct {
	getOrderFn          func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listByLocationFn    func(ctx context.Context, arg database.ListOrdersByLocationParams) ([]database.Order, error)
	listItemsFn         func(ctx context.Context, ids []uuid.UUID) ([]database.OrderItem, error)
	listStatusHistoryFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrdersByLocation(ctx context.Context, arg database.ListOrdersByLocationParams) ([]database.Order, error) {
	if m.listByLocationFn != nil {
		return m.listByLocationFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrderItemsByOrders(ctx context.Context, ids []uuid.UUID) ([]database.OrderItem, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, ids)
	}
	return []database.OrderItem{}, nil
}

func (m *mockOrderStore) ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error) {
	if m.listStatusHistoryFn != nil {
		return m.listStatusHistoryFn(ctx, orderID)
	}
	return []database.OrderStatusHistory{}, nil
}

// --- Helpers ---

func testNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func testOrder(loc enum.Location, status enum.OrderStatus) database.Order {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return database.Order{
		ID:          uuid.New(),
		Location:    loc,
		Token:       "MED-001",
		TokenSeq:    1,
		ClientName:  "Asha",
		TotalAmount: testNumeric("40.00"),
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func testItem(orderID uuid.UUID, name string) database.OrderItem {
	return database.OrderItem{
		ID:        uuid.New(),
		OrderID:   orderID,
		ProductID: "tea",
		Name:      name,
		UnitPrice: testNumeric("20"),
		Quantity:  2,
		Subtotal:  testNumeric("40"),
	}
}

// setupOrderRouter mounts order routes the way the API router does.
// staff=true puts the staff routes behind bearer auth.
func setupOrderRouter(svc *mockOrderService, store *mockOrderStore, staff bool) *chi.Mux {
	h := handler.NewOrderHandler(svc, store)
	r := chi.NewRouter()
	r.Use(middleware.OptionalAuthenticate(testSecret))
	var guard func(http.Handler) http.Handler
	if staff {
		guard = func(next http.Handler) http.Handler {
			return middleware.Authenticate(testSecret)(middleware.RequireRole(enum.UserRoleStaff, enum.UserRoleAdmin)(next))
		}
	}
	h.RegisterRoutes(r, guard)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func staffToken(t *testing.T, loc string) (string, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	tok, err := auth.GenerateToken(testSecret, auth.Identity{UserID: id, Role: enum.UserRoleStaff, Location: loc})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok, id
}

func echoCreate(t *testing.T, captured *service.CreateOrderRequest) func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
	return func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
		*captured = req
		o := testOrder(enum.Location(req.Location), enum.OrderStatusPending)
		o.ClientName = req.ClientName
		o.Token = "BIT-001"
		if req.UserID != uuid.Nil {
			o.UserID = pgtype.UUID{Bytes: req.UserID, Valid: true}
		}
		return &service.OrderResult{Order: o, Items: []database.OrderItem{testItem(o.ID, "Tea")}}, nil
	}
}

// --- Create tests ---

func TestCreateOrder_Anonymous(t *testing.T) {
	var captured service.CreateOrderRequest
	svc := &mockOrderService{}
	svc.createFn = echoCreate(t, &captured)
	router := setupOrderRouter(svc, &mockOrderStore{}, false)

	rr := doJSON(t, router, "POST", "/orders", "", `{
		"clientName": "Asha",
		"location": "bitbites",
		"items": [{"productId": "tea", "name": "Tea", "unitPrice": 20, "quantity": 2}]
	}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if captured.UserID != uuid.Nil {
		t.Errorf("anonymous request should not carry a user: got %v", captured.UserID)
	}
	if captured.Items[0].UnitPrice != "20" {
		t.Errorf("unit price: got %q", captured.Items[0].UnitPrice)
	}

	resp := decodeResponse(t, rr)
	if resp["token"] != "BIT-001" || resp["status"] != "pending" {
		t.Errorf("response: got %v", resp)
	}
	if resp["totalAmount"] != "40.00" {
		t.Errorf("totalAmount: got %v", resp["totalAmount"])
	}
	if resp["userId"] != nil {
		t.Errorf("userId: got %v, want null", resp["userId"])
	}
	if _, err := time.Parse(time.RFC3339, resp["createdAt"].(string)); err != nil {
		t.Errorf("createdAt not RFC 3339: %v", resp["createdAt"])
	}
	items := resp["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["subtotal"] != "40.00" {
		t.Errorf("items: got %v", items)
	}
}

func TestCreateOrder_StringPrice(t *testing.T) {
	var captured service.CreateOrderRequest
	svc := &mockOrderService{}
	svc.createFn = echoCreate(t, &captured)
	router := setupOrderRouter(svc, &mockOrderStore{}, false)

	rr := doJSON(t, router, "POST", "/orders", "", `{
		"clientName": "Asha",
		"location": "medical",
		"items": [{"name": "Tea", "unitPrice": "12.50", "quantity": 1}]
	}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if captured.Items[0].UnitPrice != "12.50" {
		t.Errorf("unit price: got %q", captured.Items[0].UnitPrice)
	}
}

func TestCreateOrder_AuthenticatedUsesTokenIdentity(t *testing.T) {
	var captured service.CreateOrderRequest
	svc := &mockOrderService{}
	svc.createFn = echoCreate(t, &captured)
	router := setupOrderRouter(svc, &mockOrderStore{}, false)

	userID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, auth.Identity{UserID: userID, Role: enum.UserRoleClient})

	rr := doJSON(t, router, "POST", "/orders", token, map[string]interface{}{
		"userId":   uuid.NewString(),
		"location": "bitbites",
		"items":    []map[string]interface{}{{"name": "Tea", "unitPrice": "20", "quantity": 2}},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != userID {
		t.Errorf("user: got %v, want token subject %v", captured.UserID, userID)
	}
}

func TestCreateOrder_BodyUserIDWithoutToken(t *testing.T) {
	var captured service.CreateOrderRequest
	svc := &mockOrderService{}
	svc.createFn = echoCreate(t, &captured)
	router := setupOrderRouter(svc, &mockOrderStore{}, false)

	userID := uuid.New()
	rr := doJSON(t, router, "POST", "/orders", "", map[string]interface{}{
		"userId":   userID.String(),
		"location": "bitbites",
		"items":    []map[string]interface{}{{"name": "Tea", "unitPrice": "20", "quantity": 2}},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != userID {
		t.Errorf("user: got %v, want %v", captured.UserID, userID)
	}
}

func TestCreateOrder_RequestValidation(t *testing.T) {
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, false)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing location", `{"clientName":"A","items":[{"name":"Tea","unitPrice":1,"quantity":1}]}`},
		{"empty items", `{"clientName":"A","location":"medical","items":[]}`},
		{"zero quantity", `{"clientName":"A","location":"medical","items":[{"name":"Tea","unitPrice":1,"quantity":0}]}`},
		{"missing price", `{"clientName":"A","location":"medical","items":[{"name":"Tea","quantity":1}]}`},
		{"bad user id", `{"userId":"nope","location":"medical","items":[{"name":"Tea","unitPrice":1,"quantity":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, router, "POST", "/orders", "", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
}

func TestCreateOrder_ServiceErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrNameRequired, http.StatusBadRequest},
		{service.ErrInvalidLocation, http.StatusBadRequest},
		{fmt.Errorf("item[0]: %w", service.ErrInvalidPrice), http.StatusBadRequest},
		{service.ErrUserNotFound, http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			svc := &mockOrderService{
				createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
					return nil, tt.err
				},
			}
			router := setupOrderRouter(svc, &mockOrderStore{}, false)
			rr := doJSON(t, router, "POST", "/orders", "", `{"location":"medical","items":[{"name":"Tea","unitPrice":1,"quantity":1}]}`)
			if rr.Code != tt.code {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.code)
			}
			if tt.code == http.StatusInternalServerError {
				if resp := decodeResponse(t, rr); resp["error"] != "internal server error" {
					t.Errorf("internal details leaked: %v", resp["error"])
				}
			}
		})
	}
}

// --- List tests ---

func TestListOrders_GroupsItems(t *testing.T) {
	o1 := testOrder(enum.LocationMedical, enum.OrderStatusPending)
	o2 := testOrder(enum.LocationMedical, enum.OrderStatusReady)
	store := &mockOrderStore{
		listByLocationFn: func(ctx context.Context, arg database.ListOrdersByLocationParams) ([]database.Order, error) {
			if arg.Location != enum.LocationMedical || arg.Status.Valid {
				t.Errorf("params: got %+v", arg)
			}
			return []database.Order{o2, o1}, nil
		},
		listItemsFn: func(ctx context.Context, ids []uuid.UUID) ([]database.OrderItem, error) {
			if len(ids) != 2 {
				t.Errorf("expected one batched item lookup for 2 orders, got %d ids", len(ids))
			}
			return []database.OrderItem{testItem(o1.ID, "Tea"), testItem(o2.ID, "Samosa"), testItem(o2.ID, "Chai")}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, false)

	rr := doJSON(t, router, "GET", "/orders/location/medical", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("orders: got %d", len(resp))
	}
	if resp[0]["id"] != o2.ID.String() {
		t.Error("store order must be preserved")
	}
	if n := len(resp[0]["items"].([]interface{})); n != 2 {
		t.Errorf("first order items: got %d, want 2", n)
	}
	if n := len(resp[1]["items"].([]interface{})); n != 1 {
		t.Errorf("second order items: got %d, want 1", n)
	}
}

func TestListOrders_EmptyIsArray(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{}, false)

	rr := doJSON(t, router, "GET", "/orders/location/bitbites", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if body := bytes.TrimSpace(rr.Body.Bytes()); string(body) != "[]" {
		t.Errorf("body: got %s, want []", body)
	}
}

func TestListOrders_StatusFilter(t *testing.T) {
	var got database.ListOrdersByLocationParams
	store := &mockOrderStore{
		listByLocationFn: func(ctx context.Context, arg database.ListOrdersByLocationParams) ([]database.Order, error) {
			got = arg
			return []database.Order{}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, false)

	rr := doJSON(t, router, "GET", "/orders/location/bitbites?status=ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if !got.Status.Valid || got.Status.String != "ready" {
		t.Errorf("status filter: got %+v", got.Status)
	}

	rr = doJSON(t, router, "GET", "/orders/location/bitbites?status=cancelled", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid filter status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestListOrders_UnknownLocation(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{}, false)

	rr := doJSON(t, router, "GET", "/orders/location/downtown", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestListOrders_StaffAuth(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{}, true)
	medToken, _ := staffToken(t, "medical")
	clientToken, _ := auth.GenerateToken(testSecret, auth.Identity{UserID: uuid.New(), Role: enum.UserRoleClient})

	tests := []struct {
		name  string
		path  string
		token string
		code  int
	}{
		{"no token", "/orders/location/medical", "", http.StatusUnauthorized},
		{"client role", "/orders/location/medical", clientToken, http.StatusForbidden},
		{"other location", "/orders/location/bitbites", medToken, http.StatusForbidden},
		{"own location", "/orders/location/medical", medToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, router, "GET", tt.path, tt.token, nil)
			if rr.Code != tt.code {
				t.Errorf("status: got %d, want %d", rr.Code, tt.code)
			}
		})
	}
}

// --- Get / History tests ---

func TestGetOrder(t *testing.T) {
	o := testOrder(enum.LocationBitBites, enum.OrderStatusPreparing)
	o.TableNumber = pgtype.Text{String: "T4", Valid: true}
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			if id == o.ID {
				return o, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
		listItemsFn: func(ctx context.Context, ids []uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{testItem(o.ID, "Tea")}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, false)

	rr := doJSON(t, router, "GET", "/orders/"+o.ID.String(), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp["tableNumber"] != "T4" || resp["status"] != "preparing" {
		t.Errorf("response: got %v", resp)
	}

	rr = doJSON(t, router, "GET", "/orders/"+uuid.NewString(), "", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing order: got %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = doJSON(t, router, "GET", "/orders/not-a-uuid", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestOrderHistory(t *testing.T) {
	o := testOrder(enum.LocationMedical, enum.OrderStatusReady)
	actor := uuid.New()
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) { return o, nil },
		listStatusHistoryFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error) {
			return []database.OrderStatusHistory{
				{ID: 1, OrderID: o.ID, ToStatus: enum.OrderStatusPending, ChangedAt: o.CreatedAt},
				{ID: 2, OrderID: o.ID, FromStatus: pgtype.Text{String: "pending", Valid: true}, ToStatus: enum.OrderStatusReady,
					ChangedBy: pgtype.UUID{Bytes: actor, Valid: true}, ChangedAt: o.CreatedAt.Add(time.Minute)},
			}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, true)

	bitToken, _ := staffToken(t, "bitbites")
	rr := doJSON(t, router, "GET", "/orders/"+o.ID.String()+"/history", bitToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("other location staff: got %d, want %d", rr.Code, http.StatusForbidden)
	}

	medToken, _ := staffToken(t, "medical")
	rr = doJSON(t, router, "GET", "/orders/"+o.ID.String()+"/history", medToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("history rows: got %d", len(resp))
	}
	if resp[0]["fromStatus"] != nil || resp[1]["fromStatus"] != "pending" {
		t.Errorf("fromStatus: got %v, %v", resp[0]["fromStatus"], resp[1]["fromStatus"])
	}
	if resp[1]["changedBy"] != actor.String() {
		t.Errorf("changedBy: got %v", resp[1]["changedBy"])
	}
}

// --- UpdateStatus tests ---

func TestUpdateStatus_Success(t *testing.T) {
	o := testOrder(enum.LocationMedical, enum.OrderStatusPending)
	var captured service.UpdateStatusRequest
	svc := &mockOrderService{
		updateStatusFn: func(ctx context.Context, req service.UpdateStatusRequest) (*service.OrderResult, error) {
			captured = req
			updated := o
			updated.Status = enum.OrderStatus(req.Status)
			return &service.OrderResult{Order: updated}, nil
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, false)

	rr := doJSON(t, router, "PATCH", "/orders/"+o.ID.String()+"/status", "", map[string]string{"status": "ready"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != o.ID || captured.Status != "ready" || captured.Actor != nil {
		t.Errorf("service request: got %+v", captured)
	}
	if resp := decodeResponse(t, rr); resp["status"] != "ready" {
		t.Errorf("status: got %v", resp["status"])
	}
}

func TestUpdateStatus_PassesActor(t *testing.T) {
	var captured service.UpdateStatusRequest
	svc := &mockOrderService{
		updateStatusFn: func(ctx context.Context, req service.UpdateStatusRequest) (*service.OrderResult, error) {
			captured = req
			return &service.OrderResult{Order: testOrder(enum.LocationMedical, enum.OrderStatusPreparing)}, nil
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, true)
	token, staffID := staffToken(t, "medical")

	rr := doJSON(t, router, "PATCH", "/orders/"+uuid.NewString()+"/status", token, map[string]string{"status": "preparing"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if captured.Actor == nil || captured.Actor.UserID != staffID || captured.Actor.Location != enum.LocationMedical {
		t.Errorf("actor: got %+v", captured.Actor)
	}
}

func TestUpdateStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid status", service.ErrInvalidStatus, http.StatusBadRequest},
		{"not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"invalid transition", fmt.Errorf("%w: completed is terminal", service.ErrInvalidTransition), http.StatusConflict},
		{"conflict", service.ErrStatusConflict, http.StatusConflict},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				updateStatusFn: func(ctx context.Context, req service.UpdateStatusRequest) (*service.OrderResult, error) {
					return nil, tt.err
				},
			}
			router := setupOrderRouter(svc, &mockOrderStore{}, false)
			rr := doJSON(t, router, "PATCH", "/orders/"+uuid.NewString()+"/status", "", map[string]string{"status": "ready"})
			if rr.Code != tt.code {
				t.Errorf("status: got %d, want %d", rr.Code, tt.code)
			}
		})
	}
}

func TestUpdateStatus_BadRequests(t *testing.T) {
	svc := &mockOrderService{
		updateStatusFn: func(ctx context.Context, req service.UpdateStatusRequest) (*service.OrderResult, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	router := setupOrderRouter(svc, &mockOrderStore{}, false)

	rr := doJSON(t, router, "PATCH", "/orders/not-a-uuid/status", "", map[string]string{"status": "ready"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", rr.Code)
	}
	rr = doJSON(t, router, "PATCH", "/orders/"+uuid.NewString()+"/status", "", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing status: got %d", rr.Code)
	}
}

func TestUpdateStatus_StaffAuthRequiresToken(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, &mockOrderStore{}, true)

	rr := doJSON(t, router, "PATCH", "/orders/"+uuid.NewString()+"/status", "", map[string]string{"status": "ready"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
