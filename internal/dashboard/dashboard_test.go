package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/api/internal/client"
	"github.com/quickbite/api/internal/enum"
)

// fakeStore is a server-side order list behind the Store interface.
type fakeStore struct {
	mu          sync.Mutex
	orders      []client.Order
	refetchErr  error
	updateErr   error
	invalidated chan enum.Location
	updates     []enum.OrderStatus
}

func newFakeStore(orders ...client.Order) *fakeStore {
	return &fakeStore{orders: orders, invalidated: make(chan enum.Location, 8)}
}

func (s *fakeStore) Refetch(ctx context.Context, loc enum.Location) ([]client.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refetchErr != nil {
		return nil, s.refetchErr
	}
	out := make([]client.Order, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

func (s *fakeStore) Poll(ctx context.Context, loc enum.Location, fn func([]client.Order, error)) {
	for {
		orders, err := s.Refetch(ctx, loc)
		fn(orders, err)
		select {
		case <-ctx.Done():
			return
		case <-s.invalidated:
		}
	}
}

func (s *fakeStore) Invalidate(loc enum.Location) {
	s.invalidated <- loc
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus) (*client.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.updates = append(s.updates, status)
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders[i].Status = status
			o := s.orders[i]
			return &o, nil
		}
	}
	return nil, &client.StatusError{Code: 404, Message: "order not found"}
}

func (s *fakeStore) add(o client.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append([]client.Order{o}, s.orders...)
}

type fakeSubscriber struct {
	events chan client.Event
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, loc enum.Location, fn func(client.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.events:
			fn(ev)
		}
	}
}

func TestRefreshReplacesList(t *testing.T) {
	store := newFakeStore(sampleOrders()...)
	d := New(store, enum.LocationMedical)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	require.NoError(t, d.Refresh(context.Background()))
	assert.Len(t, d.All(), 6)
	assert.Equal(t, fixed, d.LastRefresh())
	assert.Equal(t, 3, d.Counts()[enum.OrderStatusPending])

	d.SetFilter(FilterReady)
	assert.Equal(t, []string{"MED-005"}, tokens(d.Orders()))
	assert.Equal(t, 3, d.Counts()[enum.OrderStatusPending], "counts ignore the filter")
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	store := newFakeStore(sampleOrders()...)
	d := New(store, enum.LocationMedical)
	require.NoError(t, d.Refresh(context.Background()))
	before := d.LastRefresh()

	store.refetchErr = errors.Wrap(client.ErrUnavailable, "dial")
	err := d.Refresh(context.Background())
	assert.True(t, errors.Is(err, client.ErrUnavailable))
	assert.Len(t, d.All(), 6)
	assert.Equal(t, before, d.LastRefresh())
	assert.Error(t, d.Err())

	store.refetchErr = nil
	require.NoError(t, d.Refresh(context.Background()))
	assert.NoError(t, d.Err())
}

func TestAdvanceWalksLifecycle(t *testing.T) {
	o := order("MED-010", enum.OrderStatusPending)
	store := newFakeStore(o)
	d := New(store, enum.LocationMedical)
	ctx := context.Background()
	require.NoError(t, d.Refresh(ctx))

	for _, want := range []enum.OrderStatus{enum.OrderStatusPreparing, enum.OrderStatusReady, enum.OrderStatusCompleted} {
		updated, err := d.Advance(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, want, updated.Status)
		assert.Equal(t, want, d.All()[0].Status, "list is re-fetched after the update")
	}

	_, err := d.Advance(ctx, o.ID)
	assert.ErrorIs(t, err, ErrNoNextStatus)
	_, err = d.Advance(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestSetStatusSkipAndError(t *testing.T) {
	o := order("BIT-001", enum.OrderStatusPending)
	store := newFakeStore(o)
	d := New(store, enum.LocationBitBites)
	ctx := context.Background()
	require.NoError(t, d.Refresh(ctx))

	updated, err := d.SetStatus(ctx, o.ID, enum.OrderStatusReady)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusReady, updated.Status)
	assert.Equal(t, []enum.OrderStatus{enum.OrderStatusReady}, store.updates)

	store.updateErr = &client.StatusError{Code: 409, Message: "invalid status transition"}
	_, err = d.SetStatus(ctx, o.ID, enum.OrderStatusPending)
	assert.True(t, client.IsConflict(err))
	assert.Equal(t, enum.OrderStatusReady, d.All()[0].Status)
}

func TestScenarioNewOrderVisibleWithToken(t *testing.T) {
	store := newFakeStore()
	d := New(store, enum.LocationBitBites)
	ctx := context.Background()
	require.NoError(t, d.Refresh(ctx))
	assert.Empty(t, d.All())

	store.add(client.Order{
		ID:          uuid.New(),
		Token:       "BIT-007",
		Location:    enum.LocationBitBites,
		ClientName:  "Asha",
		TotalAmount: decimal.NewFromInt(40),
		Status:      enum.OrderStatusPending,
	})
	require.NoError(t, d.Refresh(ctx))

	d.SetFilter(FilterPending)
	got := d.Orders()
	require.Len(t, got, 1)
	assert.Equal(t, "BIT-007", got[0].Token)
	assert.Equal(t, "40.00", got[0].TotalAmount.StringFixed(2))
}

func TestRunRefetchesOnPushEvent(t *testing.T) {
	store := newFakeStore(order("MED-001", enum.OrderStatusPending))
	sub := &fakeSubscriber{events: make(chan client.Event)}
	d := New(store, enum.LocationMedical, WithSubscriber(sub))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan struct{}, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx, func() { updates <- struct{}{} })
	}()

	waitUpdate(t, updates)
	assert.Len(t, d.All(), 1)

	store.add(order("MED-002", enum.OrderStatusPending))
	// the payload is only a hint; the list comes from the re-fetch
	sub.events <- client.Event{Type: enum.EventOrderCreated}

	waitUpdate(t, updates)
	assert.Equal(t, []string{"MED-002", "MED-001"}, tokens(d.All()))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func waitUpdate(t *testing.T, updates <-chan struct{}) {
	t.Helper()
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dashboard update")
	}
}
