package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher sends events to a topic exchange, routed by action.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       AMQPChannel
	exchange string
	closer   func() error
}

func NewAMQPPublisher(ch AMQPChannel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

// DialAMQPPublisher connects and declares the exchange.
func DialAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp URL is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	p := NewAMQPPublisher(ch, exchange)
	p.closer = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return p, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event message.OutboundEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return &PublishError{ConnectionID: event.ConnectionID, Action: event.Action, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, "chatbot.messages."+string(event.Action), false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Unix(event.Timestamp, 0),
		Type:         string(event.Action),
	})
	if err != nil {
		return &PublishError{ConnectionID: event.ConnectionID, Action: event.Action, Err: err}
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
