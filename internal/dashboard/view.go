// Package dashboard is the staff-side view of one location's orders.
package dashboard

import (
	"fmt"

	"github.com/quickbite/api/internal/client"
	"github.com/quickbite/api/internal/enum"
)

// Filter selects which orders the dashboard lists.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = Filter(enum.OrderStatusPending)
	FilterPreparing Filter = Filter(enum.OrderStatusPreparing)
	FilterReady     Filter = Filter(enum.OrderStatusReady)
)

// Filters lists the filter tabs in display order. Completed orders are only
// visible under FilterAll.
var Filters = []Filter{FilterAll, FilterPending, FilterPreparing, FilterReady}

func ParseFilter(s string) (Filter, error) {
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Next returns the filter tab after f, wrapping around.
func (f Filter) Next() Filter {
	for i, v := range Filters {
		if v == f {
			return Filters[(i+1)%len(Filters)]
		}
	}
	return FilterAll
}

// Apply returns the orders matching f, keeping their order.
func Apply(orders []client.Order, f Filter) []client.Order {
	if f == FilterAll {
		out := make([]client.Order, len(orders))
		copy(out, orders)
		return out
	}
	out := make([]client.Order, 0, len(orders))
	for _, o := range orders {
		if Filter(o.Status) == f {
			out = append(out, o)
		}
	}
	return out
}

// Counts is the number of orders per status.
type Counts map[enum.OrderStatus]int

func Count(orders []client.Order) Counts {
	c := make(Counts, len(enum.OrderStatuses))
	for _, s := range enum.OrderStatuses {
		c[s] = 0
	}
	for _, o := range orders {
		c[o.Status]++
	}
	return c
}

// Group is the orders sharing one status.
type Group struct {
	Status enum.OrderStatus
	Orders []client.Order
}

// GroupByStatus buckets orders by status in lifecycle order. Empty
// statuses are omitted.
func GroupByStatus(orders []client.Order) []Group {
	buckets := make(map[enum.OrderStatus][]client.Order)
	for _, o := range orders {
		buckets[o.Status] = append(buckets[o.Status], o)
	}
	var groups []Group
	for _, s := range enum.OrderStatuses {
		if len(buckets[s]) > 0 {
			groups = append(groups, Group{Status: s, Orders: buckets[s]})
		}
	}
	return groups
}
