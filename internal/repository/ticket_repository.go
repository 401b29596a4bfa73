package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/civictickets/internal/models"
)

// TicketRepository provides persistence access for Ticket entities.
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository constructs a repository using the provided gorm DB.
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create persists the ticket instance.
func (r *TicketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	return translate(r.db.WithContext(ctx).Create(ticket).Error)
}

// FindByID returns the ticket by id.
func (r *TicketRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).First(&ticket, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &ticket, nil
}

// List returns the tickets matching filter, newest first. It returns an
// empty slice when nothing matches.
func (r *TicketRepository) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	q := r.db.WithContext(ctx).Model(&models.Ticket{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.OwnerID != nil {
		q = q.Where("user_id = ?", *filter.OwnerID)
	}
	if filter.AssignedTo != nil {
		q = q.Where("assigned_company_id = ?", *filter.AssignedTo)
	}
	if filter.AvailableOnly {
		q = q.Where("status = ? AND assigned_company_id IS NULL", models.TicketStatusOpen)
	}
	tickets := make([]models.Ticket, 0)
	err := q.Order("created_at desc").Order("id desc").Find(&tickets).Error
	return tickets, errors.WithStack(err)
}

// Mutate locks the ticket row, hands it to fn and saves the result when fn
// succeeds. Nothing is written when fn fails.
func (r *TicketRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(*models.Ticket) error) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ticket, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if err := fn(&ticket); err != nil {
			return err
		}
		return errors.WithStack(tx.Save(&ticket).Error)
	})
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.WithStack(models.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.WithStack(models.ErrAlreadyExists)
	}
	return errors.WithStack(err)
}
