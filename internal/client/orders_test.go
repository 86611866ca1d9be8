package client

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/api/internal/enum"
)

type fakeAPI struct {
	listCalls atomic.Int32
	listFn    func(ctx context.Context, loc enum.Location) ([]Order, error)
	createFn  func(ctx context.Context, req CreateOrderRequest) (*Order, error)
	updateFn  func(ctx context.Context, id uuid.UUID, status enum.OrderStatus) (*Order, error)
}

func (f *fakeAPI) ListByLocation(ctx context.Context, loc enum.Location) ([]Order, error) {
	f.listCalls.Add(1)
	if f.listFn != nil {
		return f.listFn(ctx, loc)
	}
	return []Order{{Token: "MED-001", Location: loc, Status: enum.OrderStatusPending}}, nil
}

func (f *fakeAPI) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return &Order{ID: uuid.New(), Location: req.Location, ClientName: req.ClientName, Status: enum.OrderStatusPending}, nil
}

func (f *fakeAPI) UpdateStatus(ctx context.Context, id uuid.UUID, status enum.OrderStatus) (*Order, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, status)
	}
	return &Order{ID: id, Location: enum.LocationMedical, Status: status}, nil
}

func TestNewOrdersDefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultPollInterval, NewOrders(&fakeAPI{}, 0).PollInterval())
	assert.Equal(t, time.Second, NewOrders(&fakeAPI{}, time.Second).PollInterval())
}

func TestListCachesPerLocation(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrders(api, time.Hour)
	ctx := context.Background()

	_, err := o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	_, err = o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.listCalls.Load())

	_, err = o.List(ctx, enum.LocationBitBites)
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.listCalls.Load())
}

func TestListReturnsCopy(t *testing.T) {
	o := NewOrders(&fakeAPI{}, time.Hour)
	ctx := context.Background()

	first, err := o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	first[0].Token = "mutated"

	second, err := o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	assert.Equal(t, "MED-001", second[0].Token)
}

func TestRefetchReplacesWholesale(t *testing.T) {
	var round atomic.Int32
	api := &fakeAPI{listFn: func(ctx context.Context, loc enum.Location) ([]Order, error) {
		if round.Add(1) == 1 {
			return []Order{{Token: "MED-001"}, {Token: "MED-002"}}, nil
		}
		return []Order{{Token: "MED-003"}}, nil
	}}
	o := NewOrders(api, time.Hour)
	ctx := context.Background()

	_, err := o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	_, err = o.Refetch(ctx, enum.LocationMedical)
	require.NoError(t, err)

	cached, err := o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "MED-003", cached[0].Token)
}

func TestFetchErrorLeavesCacheEmpty(t *testing.T) {
	api := &fakeAPI{listFn: func(ctx context.Context, loc enum.Location) ([]Order, error) {
		return nil, errors.Wrap(ErrUnavailable, "dial")
	}}
	o := NewOrders(api, time.Hour)

	_, err := o.List(context.Background(), enum.LocationMedical)
	assert.True(t, errors.Is(err, ErrUnavailable))
	_, _ = o.List(context.Background(), enum.LocationMedical)
	// no automatic retry, but a miss is fetched again on the next read
	assert.Equal(t, int32(2), api.listCalls.Load())
}

func TestCreateInvalidatesLocation(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrders(api, time.Hour)
	ctx := context.Background()

	_, err := o.List(ctx, enum.LocationBitBites)
	require.NoError(t, err)
	_, err = o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	require.Equal(t, int32(2), api.listCalls.Load())

	_, err = o.Create(ctx, CreateOrderRequest{ClientName: "Asha", Location: enum.LocationBitBites})
	require.NoError(t, err)

	_, err = o.List(ctx, enum.LocationBitBites)
	require.NoError(t, err)
	_, err = o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	assert.Equal(t, int32(3), api.listCalls.Load(), "only the order's location is refetched")
}

func TestCreateFailureKeepsCache(t *testing.T) {
	api := &fakeAPI{createFn: func(ctx context.Context, req CreateOrderRequest) (*Order, error) {
		return nil, &StatusError{Code: 400, Message: "clientName is required"}
	}}
	o := NewOrders(api, time.Hour)
	ctx := context.Background()

	_, err := o.List(ctx, enum.LocationBitBites)
	require.NoError(t, err)
	_, err = o.Create(ctx, CreateOrderRequest{Location: enum.LocationBitBites})
	assert.True(t, errors.Is(err, ErrRequestFailed))

	_, err = o.List(ctx, enum.LocationBitBites)
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.listCalls.Load())
}

func TestUpdateStatusInvalidatesEverything(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrders(api, time.Hour)
	ctx := context.Background()

	for _, loc := range enum.Locations {
		_, err := o.List(ctx, loc)
		require.NoError(t, err)
	}
	_, err := o.UpdateStatus(ctx, uuid.New(), enum.OrderStatusReady)
	require.NoError(t, err)

	for _, loc := range enum.Locations {
		_, err := o.List(ctx, loc)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2*len(enum.Locations)), api.listCalls.Load())
}

func TestStaleFetchDoesNotRepopulate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var round atomic.Int32
	api := &fakeAPI{listFn: func(ctx context.Context, loc enum.Location) ([]Order, error) {
		if round.Add(1) == 1 {
			close(started)
			<-release
			return []Order{{Token: "stale"}}, nil
		}
		return []Order{{Token: "fresh"}}, nil
	}}
	o := NewOrders(api, time.Hour)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		orders, err := o.Refetch(ctx, enum.LocationMedical)
		assert.NoError(t, err)
		assert.Equal(t, "stale", orders[0].Token)
	}()

	<-started
	o.Invalidate(enum.LocationMedical)
	close(release)
	<-done

	orders, err := o.List(ctx, enum.LocationMedical)
	require.NoError(t, err)
	assert.Equal(t, "fresh", orders[0].Token)
}

func TestPollFetchesImmediatelyAndOnInvalidate(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrders(api, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan []Order, 4)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		o.Poll(ctx, enum.LocationMedical, func(orders []Order, err error) {
			assert.NoError(t, err)
			results <- orders
		})
	}()

	waitResult(t, results)

	_, err := o.Create(context.Background(), CreateOrderRequest{ClientName: "Ben", Location: enum.LocationMedical})
	require.NoError(t, err)
	waitResult(t, results)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not stop after cancel")
	}
}

func TestPollTicks(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrders(api, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan []Order, 8)
	go o.Poll(ctx, enum.LocationBitBites, func(orders []Order, err error) {
		select {
		case results <- orders:
		default:
		}
	})

	for i := 0; i < 3; i++ {
		waitResult(t, results)
	}
}

func TestPollReportsErrors(t *testing.T) {
	api := &fakeAPI{listFn: func(ctx context.Context, loc enum.Location) ([]Order, error) {
		return nil, errors.Wrap(ErrUnavailable, "dial")
	}}
	o := NewOrders(api, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 1)
	go o.Poll(ctx, enum.LocationMedical, func(orders []Order, err error) {
		errs <- err
	})

	select {
	case err := <-errs:
		assert.True(t, errors.Is(err, ErrUnavailable))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll error")
	}
}

func TestPollDropsResultAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{listFn: func(_ context.Context, loc enum.Location) ([]Order, error) {
		cancel()
		return []Order{{Token: "late"}}, nil
	}}
	o := NewOrders(api, time.Hour)

	called := false
	o.Poll(ctx, enum.LocationMedical, func([]Order, error) { called = true })
	assert.False(t, called)
}

func waitResult(t *testing.T, results <-chan []Order) []Order {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll result")
		return nil
	}
}
