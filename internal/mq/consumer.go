package mq

import (
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Consumer delivers ticket events from the broker to a handler.
type Consumer interface {
	Consume(handler func(amqp091.Delivery)) error
	Close() error
}

// prefetch bounds the unacknowledged events held by one consumer.
const prefetch = 16

// RabbitConsumer consumes messages from a queue bound to the ticket exchange.
type RabbitConsumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	log     zerolog.Logger
}

// NewRabbitConsumer declares the queue, binds it with bindingKey and returns
// a consumer.
func NewRabbitConsumer(url, exchange, queue, bindingKey string, log zerolog.Logger) (*RabbitConsumer, error) {
	conn, ch, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "declare queue %s", queue)
	}
	if err := ch.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "bind queue %s", queue)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "set prefetch")
	}
	return &RabbitConsumer{
		conn:    conn,
		channel: ch,
		queue:   q.Name,
		log:     log.With().Str("component", "mq.consumer").Str("queue", q.Name).Logger(),
	}, nil
}

// Consume begins delivering messages to handler. The handler owns Ack/Nack.
func (c *RabbitConsumer) Consume(handler func(amqp091.Delivery)) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "start consuming")
	}
	go func() {
		for msg := range deliveries {
			handler(msg)
		}
		c.log.Info().Msg("delivery channel closed")
	}()
	return nil
}

// Close closes the consumer resources.
func (c *RabbitConsumer) Close() error {
	if c == nil {
		return nil
	}
	if err := c.channel.Close(); err != nil {
		c.log.Warn().Err(err).Msg("close channel")
	}
	return c.conn.Close()
}
