package enum

import "fmt"

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is an order's position in its fulfillment lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
}

// Valid reports whether s is one of the four lifecycle states.
func (s OrderStatus) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of s in the lifecycle, or -1 for unknown values.
func (s OrderStatus) Rank() int {
	for i, v := range OrderStatuses {
		if v == s {
			return i
		}
	}
	return -1
}

// Next returns the state that follows s. Terminal and unknown states have no successor.
func (s OrderStatus) Next() (OrderStatus, bool) {
	r := s.Rank()
	if r < 0 || r == len(OrderStatuses)-1 {
		return "", false
	}
	return OrderStatuses[r+1], true
}

// Terminal reports whether no further work happens on an order in state s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted
}

// ── Group C: Borderline (CHECK constrained in DB) ──

// Location is one of the fixed physical order-fulfillment sites.
type Location string

const (
	LocationMedical  Location = "medical"
	LocationBitBites Location = "bitbites"
)

// Locations lists every site.
var Locations = []Location{LocationMedical, LocationBitBites}

// ParseLocation rejects anything outside the closed set.
func ParseLocation(s string) (Location, error) {
	switch l := Location(s); l {
	case LocationMedical, LocationBitBites:
		return l, nil
	}
	return "", fmt.Errorf("unknown location %q", s)
}

// TokenPrefix is the leading part of pickup tokens issued at l.
func (l Location) TokenPrefix() string {
	switch l {
	case LocationMedical:
		return "MED"
	case LocationBitBites:
		return "BIT"
	}
	return "QB"
}

// DisplayName is the customer-facing site name.
func (l Location) DisplayName() string {
	switch l {
	case LocationMedical:
		return "Medical Cafeteria"
	case LocationBitBites:
		return "Bit Bites"
	}
	return string(l)
}

const (
	UserRoleClient = "client"
	UserRoleStaff  = "staff"
	UserRoleAdmin  = "admin"
)

// ── Group B: Realtime event types (no DB constraint) ──

const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
)
