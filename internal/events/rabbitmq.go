package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange lifecycle events go to.
const DefaultExchange = "account.events"

// channel is the slice of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes JSON events to a durable topic exchange.
type RabbitPublisher struct {
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
}

var _ Publisher = (*RabbitPublisher)(nil)

// DialRabbit connects to url and declares exchange.
func DialRabbit(url, exchange string) (*RabbitPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("events: declaring exchange %s: %w", exchange, err)
	}

	return &RabbitPublisher{exchange: exchange, conn: conn, ch: ch}, nil
}

// newRabbitPublisherWithChannel is used by tests to inject a fake channel.
func newRabbitPublisherWithChannel(ch channel, exchange string) *RabbitPublisher {
	return &RabbitPublisher{exchange: exchange, ch: ch}
}

func (p *RabbitPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := buildPublishing(ctx, evt)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return errors.New("events: publisher closed")
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, string(evt.Type), false, false, msg); err != nil {
		return fmt.Errorf("events: publishing %s: %w", evt.Type, err)
	}
	return nil
}

func buildPublishing(ctx context.Context, evt Event) (amqp.Publishing, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("events: encoding %s: %w", evt.Type, err)
	}

	headers := amqp.Table{}
	if id := requestIDFrom(ctx); id != "" {
		headers["X-Request-ID"] = id
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    evt.OccurredAt,
		Type:         string(evt.Type),
		Headers:      headers,
		Body:         body,
	}, nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}
