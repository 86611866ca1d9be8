// Package client talks to the QuickBite order API over HTTP and websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/quickbite/api/internal/enum"
	"github.com/quickbite/api/internal/event"
)

const defaultTimeout = 10 * time.Second

// Order is an order as returned by the API, with typed money and timestamps.
type Order struct {
	ID          uuid.UUID        `json:"id"`
	Token       string           `json:"token"`
	Location    enum.Location    `json:"location"`
	UserID      *uuid.UUID       `json:"userId"`
	ClientName  string           `json:"clientName"`
	TableNumber *string          `json:"tableNumber"`
	TotalAmount decimal.Decimal  `json:"totalAmount"`
	Status      enum.OrderStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Items       []OrderItem      `json:"items"`
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int32           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// HistoryEntry is one recorded status change.
type HistoryEntry struct {
	FromStatus *enum.OrderStatus `json:"fromStatus"`
	ToStatus   enum.OrderStatus  `json:"toStatus"`
	ChangedBy  *uuid.UUID        `json:"changedBy"`
	ChangedAt  time.Time         `json:"changedAt"`
}

// CreateOrderRequest is the body of POST /orders. ClientName may be blank
// for authenticated callers; the server then uses the profile name.
type CreateOrderRequest struct {
	UserID      *uuid.UUID        `json:"userId,omitempty"`
	ClientName  string            `json:"clientName,omitempty"`
	Location    enum.Location     `json:"location"`
	TableNumber string            `json:"tableNumber,omitempty"`
	Items       []CreateOrderItem `json:"items"`
}

type CreateOrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int32           `json:"quantity"`
}

// Profile is the public part of a user account.
type Profile struct {
	ID       uuid.UUID      `json:"id"`
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Phone    *string        `json:"phone"`
	Role     string         `json:"role"`
	Location *enum.Location `json:"location"`
}

// Session is the result of a successful login.
type Session struct {
	Token        string  `json:"token"`
	RefreshToken string  `json:"refreshToken"`
	User         Profile `json:"user"`
}

// Event is a realtime notification pushed over the websocket.
type Event struct {
	Type    string      `json:"type"`
	Payload event.Order `json:"payload"`
}

// Client is an HTTP client for the order API. It is safe for concurrent use;
// WithToken returns a copy bound to another bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bearer token, if any.
func (c *Client) Token() string {
	return c.token
}

// ListByLocation returns the orders for loc, newest first.
func (c *Client) ListByLocation(ctx context.Context, loc enum.Location) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/orders/location/"+url.PathEscape(string(loc)), nil, &orders); err != nil {
		return nil, errors.Wrapf(err, "list orders for %s", loc)
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// GetOrder fetches a single order.
func (c *Client) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+id.String(), nil, &o); err != nil {
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return &o, nil
}

// History fetches the status history of an order, oldest first.
func (c *Client) History(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := c.do(ctx, http.MethodGet, "/orders/"+id.String()+"/history", nil, &entries); err != nil {
		return nil, errors.Wrapf(err, "get history for %s", id)
	}
	return entries, nil
}

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return &o, nil
}

// UpdateStatus sets the status of an order. The value is sent as given;
// the server decides whether it is acceptable.
func (c *Client) UpdateStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus) (*Order, error) {
	var o Order
	body := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPatch, "/orders/"+id.String()+"/status", body, &o); err != nil {
		return nil, errors.Wrapf(err, "update order %s to %s", id, status)
	}
	return &o, nil
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &s); err != nil {
		return nil, errors.Wrap(err, "login")
	}
	return &s, nil
}

// Profile fetches a user profile. Requires a token.
func (c *Client) Profile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/users/"+id.String(), nil, &p); err != nil {
		return nil, errors.Wrapf(err, "get profile %s", id)
	}
	return &p, nil
}

// Subscribe streams realtime events for loc to fn until ctx is done or the
// connection drops. It requires a staff or admin token.
func (c *Client) Subscribe(ctx context.Context, loc enum.Location, fn func(Event)) error {
	u, err := url.Parse(c.baseURL + "/ws/locations/" + url.PathEscape(string(loc)) + "/orders")
	if err != nil {
		return errors.Wrap(err, "parse websocket url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return errors.Wrapf(statusError(resp), "subscribe to %s", loc)
		}
		return errors.Wrapf(ErrUnavailable, "subscribe to %s: %v", loc, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(ErrUnavailable, "subscription to %s closed: %v", loc, err)
		}
		fn(ev)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrUnavailable, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(ErrRequestFailed, "decode %s %s response: %v", method, path, err)
	}
	return nil
}

// statusError builds a *StatusError from a non-2xx response, reading the
// {"error": "..."} body when there is one.
func statusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		se.Message = body.Error
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}
	if se.Message == "" {
		se.Message = http.StatusText(resp.StatusCode)
	}
	return se
}

// String is used by the CLI for one-line order summaries.
func (o Order) String() string {
	return fmt.Sprintf("%s %-10s %-9s %s", o.Token, o.ClientName, o.Status, o.TotalAmount.StringFixed(2))
}
