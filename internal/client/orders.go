package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/api/internal/enum"
)

// DefaultPollInterval is how often Poll re-fetches when nothing else wakes it.
const DefaultPollInterval = 5 * time.Second

// API is the subset of Client used by Orders.
// Satisfied by *Client; narrow interface for testability.
type API interface {
	ListByLocation(ctx context.Context, loc enum.Location) ([]Order, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus) (*Order, error)
}

// Orders caches per-location order lists over an API. Every write
// invalidates the affected lists; no local state is updated optimistically.
type Orders struct {
	api      API
	interval time.Duration

	mu    sync.Mutex
	lists map[enum.Location]*cachedList
}

type cachedList struct {
	orders []Order
	valid  bool
	// gen increases on every invalidation; a fetch only populates the
	// cache when gen is unchanged since it started.
	gen uint64
	// wake is closed and replaced on every invalidation.
	wake chan struct{}
}

// NewOrders creates an Orders cache. A non-positive interval means
// DefaultPollInterval.
func NewOrders(api API, interval time.Duration) *Orders {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Orders{
		api:      api,
		interval: interval,
		lists:    make(map[enum.Location]*cachedList),
	}
}

// PollInterval returns the configured refresh period.
func (o *Orders) PollInterval() time.Duration {
	return o.interval
}

func (o *Orders) entryLocked(loc enum.Location) *cachedList {
	e, ok := o.lists[loc]
	if !ok {
		e = &cachedList{wake: make(chan struct{})}
		o.lists[loc] = e
	}
	return e
}

// List returns the cached orders for loc, fetching them on a miss.
func (o *Orders) List(ctx context.Context, loc enum.Location) ([]Order, error) {
	o.mu.Lock()
	e := o.entryLocked(loc)
	if e.valid {
		orders := cloneOrders(e.orders)
		o.mu.Unlock()
		return orders, nil
	}
	o.mu.Unlock()
	return o.Refetch(ctx, loc)
}

// Refetch loads the orders for loc from the server. The result replaces the
// cached list unless loc was invalidated while the request was in flight.
func (o *Orders) Refetch(ctx context.Context, loc enum.Location) ([]Order, error) {
	o.mu.Lock()
	gen := o.entryLocked(loc).gen
	o.mu.Unlock()

	orders, err := o.api.ListByLocation(ctx, loc)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if e := o.entryLocked(loc); e.gen == gen {
		e.orders = cloneOrders(orders)
		e.valid = true
	}
	o.mu.Unlock()
	return orders, nil
}

// Invalidate drops the cached list for loc and wakes its pollers.
func (o *Orders) Invalidate(loc enum.Location) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invalidateLocked(o.entryLocked(loc))
}

// InvalidateAll drops every cached list and wakes every poller.
func (o *Orders) InvalidateAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.lists {
		o.invalidateLocked(e)
	}
}

func (o *Orders) invalidateLocked(e *cachedList) {
	e.orders = nil
	e.valid = false
	e.gen++
	close(e.wake)
	e.wake = make(chan struct{})
}

// Poll fetches the orders for loc immediately, then every PollInterval and
// whenever loc is invalidated, passing each result to fn. It returns when ctx
// is done; a fetch that completes after that is dropped.
func (o *Orders) Poll(ctx context.Context, loc enum.Location, fn func([]Order, error)) {
	timer := time.NewTimer(o.interval)
	defer timer.Stop()

	for {
		o.mu.Lock()
		wake := o.entryLocked(loc).wake
		o.mu.Unlock()

		orders, err := o.Refetch(ctx, loc)
		if ctx.Err() != nil {
			return
		}
		fn(orders, err)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(o.interval)

		select {
		case <-ctx.Done():
			return
		case <-wake:
		case <-timer.C:
		}
	}
}

// Create places an order and invalidates its location on success.
func (o *Orders) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	order, err := o.api.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	o.Invalidate(order.Location)
	return order, nil
}

// UpdateStatus changes an order's status and invalidates every cached list.
func (o *Orders) UpdateStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus) (*Order, error) {
	order, err := o.api.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	o.InvalidateAll()
	return order, nil
}

func cloneOrders(in []Order) []Order {
	out := make([]Order, len(in))
	copy(out, in)
	return out
}
