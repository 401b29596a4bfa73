package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/civictickets/internal/models"
)

// UserRepository stores registered principals.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository using the provided gorm DB.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a principal; emails are unique and case-insensitive.
func (r *UserRepository) Create(ctx context.Context, p *models.Principal) error {
	p.Email = normalizeEmail(p.Email)
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return translate(err)
	}
	return nil
}

// FindByEmail returns the principal registered under email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	var p models.Principal
	if err := r.db.WithContext(ctx).First(&p, "email = ?", normalizeEmail(email)).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// FindByID returns the principal by id.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	var p models.Principal
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
