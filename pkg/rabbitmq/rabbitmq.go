// Package rabbitmq publishes and consumes order events over AMQP.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"
)

// Event is the JSON envelope of every message on the queue.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// channel is the subset of *amqp.Channel the client uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel channel
	queue   string
	mu      sync.Mutex
	now     func() time.Time
}

// NewClient connects to RabbitMQ and declares the durable event queue.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	client, err := newClient(ch, cfg.Queue)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	client.conn = conn
	logrus.WithField("queue", cfg.Queue).Info("RabbitMQ client connected")
	return client, nil
}

func newClient(ch channel, queue string) (*Client, error) {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to declare queue %s", queue)
	}
	return &Client{channel: ch, queue: queue, now: time.Now}, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "failed to close channel"))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "failed to close connection"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing RabbitMQ client: %v", errs)
	}
	return nil
}

// Publish sends payload as a persistent JSON event of the given type.
func (c *Client) Publish(eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s payload", eventType)
	}
	now := c.now()
	body, err := json.Marshal(Event{Type: eventType, OccurredAt: now.UTC(), Payload: raw})
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",      // default exchange
		c.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         eventType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    now,
		})
	if err != nil {
		return errors.Wrapf(err, "failed to publish %s", eventType)
	}
	logrus.WithField("event", eventType).Debug("event published")
	return nil
}

// Consume delivers events to handler until ctx is done or the channel closes.
// A handler error requeues the message once; undecodable messages are dropped.
func (c *Client) Consume(ctx context.Context, handler func(Event) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "failed to register consumer")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(msg, handler)
		}
	}
}

func handleDelivery(msg amqp.Delivery, handler func(Event) error) {
	log := logrus.WithField("delivery_tag", msg.DeliveryTag)

	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		log.WithError(err).Warn("dropping malformed event")
		if err := msg.Nack(false, false); err != nil {
			log.WithError(err).Error("nack failed")
		}
		return
	}

	if err := handler(event); err != nil {
		requeue := !msg.Redelivered
		log.WithError(err).WithFields(logrus.Fields{"event": event.Type, "requeue": requeue}).Warn("event handler failed")
		if err := msg.Nack(false, requeue); err != nil {
			log.WithError(err).Error("nack failed")
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		log.WithError(err).Error("ack failed")
	}
}
