package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quickbite/api/internal/client"
	"github.com/quickbite/api/internal/enum"
)

var (
	ErrUnknownOrder = errors.New("order is not on this dashboard")
	ErrNoNextStatus = errors.New("order is already completed")
)

// Store is the order cache the dashboard reads through.
// Satisfied by *client.Orders.
type Store interface {
	Refetch(ctx context.Context, loc enum.Location) ([]client.Order, error)
	Poll(ctx context.Context, loc enum.Location, fn func([]client.Order, error))
	Invalidate(loc enum.Location)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus) (*client.Order, error)
}

// Subscriber streams realtime events. Satisfied by *client.Client.
type Subscriber interface {
	Subscribe(ctx context.Context, loc enum.Location, fn func(client.Event)) error
}

// Dashboard tracks the orders of one location for staff.
type Dashboard struct {
	store    Store
	sub      Subscriber
	location enum.Location
	now      func() time.Time

	mu          sync.RWMutex
	orders      []client.Order
	filter      Filter
	lastRefresh time.Time
	lastErr     error
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithSubscriber enables websocket push. Events only trigger a re-fetch;
// their payload is never merged into the list.
func WithSubscriber(s Subscriber) Option {
	return func(d *Dashboard) { d.sub = s }
}

func New(store Store, loc enum.Location, opts ...Option) *Dashboard {
	d := &Dashboard{
		store:    store,
		location: loc,
		filter:   FilterAll,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dashboard) Location() enum.Location { return d.location }

// Orders returns the last fetched orders that match the current filter.
func (d *Dashboard) Orders() []client.Order {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Apply(d.orders, d.filter)
}

// All returns every last fetched order.
func (d *Dashboard) All() []client.Order {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Apply(d.orders, FilterAll)
}

// Counts is computed over all orders, independent of the filter.
func (d *Dashboard) Counts() Counts {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Count(d.orders)
}

func (d *Dashboard) Filter() Filter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filter
}

func (d *Dashboard) SetFilter(f Filter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = f
}

// LastRefresh is when the list was last replaced.
func (d *Dashboard) LastRefresh() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastRefresh
}

// Err is the error from the most recent fetch, if it failed.
func (d *Dashboard) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Refresh re-fetches the list now.
func (d *Dashboard) Refresh(ctx context.Context) error {
	orders, err := d.store.Refetch(ctx, d.location)
	d.apply(orders, err)
	return err
}

// apply replaces the list wholesale. A failed fetch keeps the previous list.
func (d *Dashboard) apply(orders []client.Order, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = err
	if err != nil {
		return
	}
	d.orders = orders
	d.lastRefresh = d.now()
}

// Run keeps the list fresh until ctx is done: it polls the store and, with
// a subscriber, re-fetches as soon as a push event arrives. onUpdate, when
// non-nil, is called after every fetch.
func (d *Dashboard) Run(ctx context.Context, onUpdate func()) {
	if d.sub != nil {
		go d.listen(ctx)
	}
	d.store.Poll(ctx, d.location, func(orders []client.Order, err error) {
		d.apply(orders, err)
		if err != nil {
			log.WithError(err).WithField("location", d.location).Warn("refresh orders")
		}
		if onUpdate != nil {
			onUpdate()
		}
	})
}

func (d *Dashboard) listen(ctx context.Context) {
	err := d.sub.Subscribe(ctx, d.location, func(ev client.Event) {
		log.WithFields(log.Fields{"type": ev.Type, "token": ev.Payload.Token}).Debug("order event")
		d.store.Invalidate(d.location)
	})
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("realtime updates stopped, falling back to polling")
	}
}

// SetStatus moves an order to status and re-fetches the list.
func (d *Dashboard) SetStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus) (*client.Order, error) {
	order, err := d.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if err := d.Refresh(ctx); err != nil {
		log.WithError(err).Warn("refresh after status update")
	}
	return order, nil
}

// Advance moves an order to the next lifecycle state.
func (d *Dashboard) Advance(ctx context.Context, id uuid.UUID) (*client.Order, error) {
	d.mu.RLock()
	var current enum.OrderStatus
	found := false
	for _, o := range d.orders {
		if o.ID == id {
			current, found = o.Status, true
			break
		}
	}
	d.mu.RUnlock()

	if !found {
		return nil, ErrUnknownOrder
	}
	next, ok := current.Next()
	if !ok {
		return nil, ErrNoNextStatus
	}
	return d.SetStatus(ctx, id, next)
}
