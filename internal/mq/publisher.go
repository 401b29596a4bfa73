package mq

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher defines a minimal interface for publishing events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// RabbitPublisher publishes JSON events to a RabbitMQ topic exchange.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      zerolog.Logger
}

// NewRabbitPublisher connects to RabbitMQ and declares the exchange.
func NewRabbitPublisher(url, exchange string, log zerolog.Logger) (*RabbitPublisher, error) {
	conn, ch, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		log:      log.With().Str("component", "mq.publisher").Logger(),
	}, nil
}

// Publish serializes the payload to JSON and sends it to the exchange as a
// persistent message.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
	return errors.Wrapf(err, "publish %s", routingKey)
}

// Close terminates the connection.
func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.log.Warn().Err(err).Msg("close channel")
	}
	return p.conn.Close()
}

// LocalPublisher delivers events synchronously to an in-process handler. It
// stands in for the broker when none is configured.
type LocalPublisher struct {
	handle func(ctx context.Context, body []byte) error
}

// NewLocalPublisher returns a publisher that feeds handle directly.
func NewLocalPublisher(handle func(ctx context.Context, body []byte) error) *LocalPublisher {
	return &LocalPublisher{handle: handle}
}

// Publish encodes the payload exactly as the broker path would.
func (p *LocalPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	return errors.Wrapf(p.handle(ctx, body), "deliver %s", routingKey)
}

func dial(url, exchange string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	return conn, ch, nil
}
