// Package messaging publishes order status notifications to RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/quickbite/api/internal/event"
)

// Exchange is the fanout exchange every order event is published to.
const Exchange = "quickbite.orders"

const (
	publishTimeout = 5 * time.Second
	dialTimeout    = 5 * time.Second
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// dialFunc opens a connection and channel. Replaced in tests.
type dialFunc func(ctx context.Context, url string) (channel, func() error, error)

// ErrDisconnected is returned for events dropped while the broker connection
// is being re-established.
var ErrDisconnected = errors.New("amqp publisher disconnected")

func dialAMQP(ctx context.Context, url string) (channel, func() error, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Dial: amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// Publisher sends order events to the orders fanout exchange. It implements
// event.Notifier. A lost channel is re-dialed in the background; events
// published in the meantime are dropped with ErrDisconnected.
type Publisher struct {
	url  string
	dial dialFunc

	mu           sync.Mutex
	ch           channel
	closeConn    func() error
	reconnecting bool
	closed       bool
}

// NewPublisher connects to the broker at url and declares the exchange.
func NewPublisher(url string) (*Publisher, error) {
	return newPublisher(url, dialAMQP)
}

func newPublisher(url string, dial dialFunc) (*Publisher, error) {
	p := &Publisher{url: url, dial: dial}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	ch, closeConn, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	p.ch, p.closeConn = ch, closeConn
	return p, nil
}

// open dials the broker and declares the exchange.
func (p *Publisher) open(ctx context.Context) (channel, func() error, error) {
	ch, closeConn, err := p.dial(ctx, p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	err = ch.ExchangeDeclare(
		Exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		if closeConn != nil {
			closeConn()
		}
		return nil, nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	return ch, closeConn, nil
}

// reconnectLocked starts one background redial. p.mu must be held.
func (p *Publisher) reconnectLocked() {
	if p.reconnecting || p.closed {
		return
	}
	p.reconnecting = true
	go p.reconnect()
}

func (p *Publisher) reconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	ch, closeConn, err := p.open(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconnecting = false
	if err != nil {
		log.WithError(err).Warn("amqp reconnect failed")
		return
	}
	if p.closed {
		ch.Close()
		if closeConn != nil {
			closeConn()
		}
		return
	}
	p.ch, p.closeConn = ch, closeConn
	log.WithField("exchange", Exchange).Info("amqp publisher reconnected")
}

// Notify publishes e as a persistent JSON message routed by order location.
func (p *Publisher) Notify(ctx context.Context, e event.Order) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("publish %s: publisher closed", e.Type)
	}
	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		p.reconnectLocked()
		return fmt.Errorf("publish %s for %s: %w", e.Type, e.Token, ErrDisconnected)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, Exchange, string(e.Location), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
		MessageId:    e.OrderID.String(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}

	log.WithFields(log.Fields{
		"exchange": Exchange,
		"type":     e.Type,
		"orderID":  e.OrderID,
		"size":     len(body),
	}).Debug("order event published")
	return nil
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
		p.ch = nil
	}
	if p.closeConn != nil {
		if cerr := p.closeConn(); err == nil {
			err = cerr
		}
		p.closeConn = nil
	}
	return err
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeLocked()
}
