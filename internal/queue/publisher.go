package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lperezmo/sms-helper/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultInboxQueue is where relayed turns go unless configured otherwise
const DefaultInboxQueue = "sms.inbox"

const publishTimeout = 5 * time.Second

// Channel is the part of an AMQP channel the publisher uses
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher hands relayed turns to the on-site processor over RabbitMQ
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel Channel
	queue   string
}

// New dials RabbitMQ and declares the durable inbox queue
func New(url, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultInboxQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &Publisher{conn: conn, channel: ch, queue: queue}, nil
}

// NewWithChannel creates a publisher over an already declared queue
func NewWithChannel(ch Channel, queue string) *Publisher {
	if queue == "" {
		queue = DefaultInboxQueue
	}
	return &Publisher{channel: ch, queue: queue}
}

// PublishInbox publishes one relayed turn as JSON
func (p *Publisher) PublishInbox(ctx context.Context, msg *models.InboxMessage) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return errors.New("publisher is closed")
	}

	err = p.channel.PublishWithContext(
		ctx,
		"",      // exchange (default)
		p.queue, // routing key (queue name)
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", p.queue, err)
	}

	return nil
}

// Close gracefully shuts down the publisher
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
