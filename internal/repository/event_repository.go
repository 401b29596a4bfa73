package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/civictickets/internal/models"
)

// EventRepository stores ticket history entries.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository constructs a repository using the provided gorm DB.
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append records an event. Redelivered events with a known id are ignored.
func (r *EventRepository) Append(ctx context.Context, event *models.TicketEvent) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error
	return errors.WithStack(err)
}

// ListByTicket returns the history of a ticket, oldest first.
func (r *EventRepository) ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]models.TicketEvent, error) {
	events := make([]models.TicketEvent, 0)
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("occurred_at asc").
		Find(&events).Error
	return events, errors.WithStack(err)
}
