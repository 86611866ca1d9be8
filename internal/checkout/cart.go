package checkout

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/quickbite/api/internal/client"
	"github.com/quickbite/api/internal/enum"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidPrice    = errors.New("unit price must not be negative")
	ErrItemMismatch    = errors.New("product is already in the cart with a different name or price")
)

// Item is one cart line.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int32
}

// Subtotal is UnitPrice × Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// Cart holds the items a customer intends to order at one location.
type Cart struct {
	mu       sync.Mutex
	location enum.Location
	items    []Item
}

// NewCart creates an empty cart for loc. loc may be empty until the
// customer picks a site.
func NewCart(loc enum.Location) *Cart {
	return &Cart{location: loc}
}

func (c *Cart) Location() enum.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// SetLocation switches site. Items are kept.
func (c *Cart) SetLocation(loc enum.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = loc
}

// Add puts item in the cart, merging with an existing line for the same
// product. The merged item must match that line's name and unit price.
func (c *Cart) Add(item Item) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if item.UnitPrice.IsNegative() {
		return ErrInvalidPrice
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID != item.ProductID {
			continue
		}
		if c.items[i].Name != item.Name || !c.items[i].UnitPrice.Equal(item.UnitPrice) {
			return errors.Wrapf(ErrItemMismatch, "product %s", item.ProductID)
		}
		c.items[i].Quantity += item.Quantity
		return nil
	}
	c.items = append(c.items, item)
	return nil
}

// SetQuantity changes a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(productID string, qty int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID != productID {
			continue
		}
		if qty < 1 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		} else {
			c.items[i].Quantity = qty
		}
		return
	}
}

// Remove drops the line for productID.
func (c *Cart) Remove(productID string) {
	c.SetQuantity(productID, 0)
}

func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// Total is the sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Clear removes every item. The location is kept.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

func (c *Cart) requestItems() []client.CreateOrderItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]client.CreateOrderItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, client.CreateOrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return out
}
