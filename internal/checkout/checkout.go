// Package checkout turns a cart into an order.
package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/quickbite/api/internal/client"
	"github.com/quickbite/api/internal/enum"
)

var (
	// ErrRedirect means there is nothing to check out: the cart is empty or
	// no location was picked. Callers send the customer back to the menu.
	ErrRedirect     = errors.New("nothing to check out")
	ErrNameLocked   = errors.New("name is taken from the signed-in profile")
	ErrNameRequired = errors.New("please enter your name")
	ErrSubmitting   = errors.New("order submission in progress")
)

// Placer places orders. Satisfied by *client.Orders.
type Placer interface {
	Create(ctx context.Context, req client.CreateOrderRequest) (*client.Order, error)
}

// Identity is the signed-in customer, if any. A nil *Identity is anonymous.
type Identity struct {
	UserID  uuid.UUID
	Token   string
	Profile *client.Profile
}

func (id *Identity) authenticated() bool {
	return id != nil && id.UserID != uuid.Nil
}

// Checkout is a single checkout attempt. It is safe for concurrent use; only
// one Submit runs at a time.
type Checkout struct {
	orders   Placer
	cart     *Cart
	identity *Identity

	mu         sync.Mutex
	name       string
	table      string
	locked     bool
	submitting bool
}

// Confirmation is what the customer sees after a successful checkout.
type Confirmation struct {
	Order client.Order
}

// Location returns the customer-facing name of the pickup site.
func (c *Confirmation) Location() string {
	return c.Order.Location.DisplayName()
}

// New starts a checkout for cart. It returns ErrRedirect when the cart is
// empty or has no location.
func New(orders Placer, cart *Cart, identity *Identity) (*Checkout, error) {
	if cart == nil || cart.Empty() || cart.Location() == "" {
		return nil, ErrRedirect
	}
	c := &Checkout{orders: orders, cart: cart, identity: identity}
	if identity.authenticated() && identity.Profile != nil && strings.TrimSpace(identity.Profile.Name) != "" {
		c.name = identity.Profile.Name
		c.locked = true
	}
	return c, nil
}

func (c *Checkout) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// NameLocked reports whether the name comes from the profile.
func (c *Checkout) NameLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// SetName sets the name the order is placed under.
func (c *Checkout) SetName(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return ErrNameLocked
	}
	c.name = name
	return nil
}

// SetTable sets the optional table number.
func (c *Checkout) SetTable(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = strings.TrimSpace(table)
}

// CanSubmit is false while a submission is running or the name is blank.
func (c *Checkout) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.submitting && strings.TrimSpace(c.name) != ""
}

// Submit places the order. A blank name fails with ErrNameRequired without
// contacting the server. On success the cart is cleared; on failure it is
// left untouched and Submit may be called again.
func (c *Checkout) Submit(ctx context.Context) (*Confirmation, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitting
	}
	name := strings.TrimSpace(c.name)
	if name == "" {
		c.mu.Unlock()
		return nil, ErrNameRequired
	}
	if c.cart.Empty() {
		c.mu.Unlock()
		return nil, ErrRedirect
	}
	c.submitting = true
	req := client.CreateOrderRequest{
		ClientName:  name,
		Location:    c.cart.Location(),
		TableNumber: c.table,
		Items:       c.cart.requestItems(),
	}
	if c.identity.authenticated() {
		uid := c.identity.UserID
		req.UserID = &uid
	}
	c.mu.Unlock()

	order, err := c.orders.Create(ctx, req)

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()

	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}
	c.cart.Clear()
	return &Confirmation{Order: *order}, nil
}

// Location is the site the order will be placed at.
func (c *Checkout) Location() enum.Location {
	return c.cart.Location()
}
