package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"mmh_backend/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

type PublisherConfig struct {
	URL             string
	ExchangeName    string
	ExchangeType    string // direct, fanout, topic, headers
	DurableExchange bool
}

func (c PublisherConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("RabbitMQ URL configuration is required")
	}
	if c.ExchangeName == "" {
		return fmt.Errorf("RabbitMQ exchange name is required")
	}
	return nil
}

// AMQPPublisher publishes order events to a topic exchange.
type AMQPPublisher struct {
	config     PublisherConfig
	connection *amqp.Connection
	channel    *amqp.Channel
	mu         sync.Mutex
}

func NewAMQPPublisher(cfg PublisherConfig) (*AMQPPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = amqp.ExchangeTopic
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("producer: failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("producer: failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.ExchangeName,
		cfg.ExchangeType,
		cfg.DurableExchange,
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("producer: failed to declare exchange '%s': %w", cfg.ExchangeName, err)
	}

	logger.Info("RabbitMQ publisher connected", "exchange", cfg.ExchangeName, "type", cfg.ExchangeType)
	return &AMQPPublisher{config: cfg, connection: conn, channel: ch}, nil
}

func (p *AMQPPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("producer: marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.connection == nil || p.connection.IsClosed() {
		return fmt.Errorf("producer: not connected or channel/connection is closed")
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.config.ExchangeName,
		event.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Type:         event.Type,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("producer: failed to publish message: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
		p.channel = nil
	}
	if p.connection != nil {
		if err := p.connection.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.connection = nil
	}
	return firstErr
}
