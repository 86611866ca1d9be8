// Package event carries order change notifications from the order service to
// realtime and messaging sinks.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quickbite/api/internal/enum"
	log "github.com/sirupsen/logrus"
)

// Order describes a change to one order. Subscribers treat it as a hint to
// re-fetch, not as authoritative order state.
type Order struct {
	Type       string           `json:"type"`
	OrderID    uuid.UUID        `json:"orderId"`
	Location   enum.Location    `json:"location"`
	Token      string           `json:"token"`
	Status     enum.OrderStatus `json:"status"`
	PrevStatus enum.OrderStatus `json:"prevStatus,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// Notifier delivers order events to one sink.
type Notifier interface {
	Notify(ctx context.Context, e Order) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Order) error

func (f NotifierFunc) Notify(ctx context.Context, e Order) error { return f(ctx, e) }

// Fanout delivers every event to all sinks. A failing sink is logged and does
// not stop delivery to the others.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, e Order) error {
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"type":    e.Type,
				"orderID": e.OrderID,
			}).Warn("order event delivery failed")
		}
	}
	return nil
}
