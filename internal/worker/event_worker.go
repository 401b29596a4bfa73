package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/mq"
)

type eventAppender interface {
	Append(ctx context.Context, event *models.TicketEvent) error
}

// EventWorker turns published ticket events into history records.
type EventWorker struct {
	consumer mq.Consumer
	events   eventAppender
	log      zerolog.Logger
}

// NewEventWorker creates the worker. consumer may be nil when events are
// delivered in-process through Handle.
func NewEventWorker(consumer mq.Consumer, events eventAppender, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		consumer: consumer,
		events:   events,
		log:      log.With().Str("component", "event_worker").Logger(),
	}
}

// Run consumes deliveries until ctx is cancelled and should be launched in
// its own goroutine.
func (w *EventWorker) Run(ctx context.Context) error {
	if w.consumer == nil {
		return errors.New("event worker has no consumer")
	}
	err := w.consumer.Consume(func(d amqp091.Delivery) {
		if err := w.Handle(ctx, d.Body); err != nil {
			w.log.Error().Err(err).Str("routing_key", d.RoutingKey).Msg("handle ticket event")
			// Malformed bodies never succeed; do not requeue them.
			_ = d.Nack(false, !errors.Is(err, models.ErrValidation))
			return
		}
		_ = d.Ack(false)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	w.log.Info().Msg("event worker shutting down")
	return w.consumer.Close()
}

// Handle decodes one event body and stores it.
func (w *EventWorker) Handle(ctx context.Context, body []byte) error {
	var event models.TicketEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return errors.Wrap(models.NewValidationError("body", err.Error()), "decode ticket event")
	}
	if event.TicketID == uuid.Nil || event.Event == "" {
		return errors.Wrap(models.NewValidationError("ticket_id", "is required"), "decode ticket event")
	}
	if err := w.events.Append(ctx, &event); err != nil {
		return err
	}
	w.log.Debug().
		Str("event", event.Event).
		Str("ticket_id", event.TicketID.String()).
		Str("status", event.Status.String()).
		Msg("ticket event recorded")
	return nil
}
