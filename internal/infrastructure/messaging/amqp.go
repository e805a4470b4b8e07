package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	DefaultExchange          = "taskflow.events"
	RoutingSubscriptionEvent = "subscription.changed"
)

// Connect dials the broker, retrying a fixed number of times.
func Connect(url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "messaging.Connect"
	if retries <= 0 {
		retries = 1
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for range retries {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// Publisher sends domain events to a durable topic exchange.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewPublisher opens a channel on conn and declares the exchange.
func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	const op = "messaging.NewPublisher"
	if exchange == "" {
		exchange = DefaultExchange
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: declare exchange %s: %w", op, exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

var _ ports.EventPublisher = (*Publisher)(nil)

func (p *Publisher) PublishSubscriptionChanged(_ context.Context, msg domain.SubscriptionChanged) error {
	return p.publish(RoutingSubscriptionEvent, msg)
}

func (p *Publisher) publish(routingKey string, message any) error {
	const op = "messaging.Publish"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

// NoopPublisher drops every message. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishSubscriptionChanged(context.Context, domain.SubscriptionChanged) error {
	return nil
}
