// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/civictickets/internal/models"
)

// Citizen returns a valid citizen principal with a fresh id.
func Citizen(name string) *models.Principal {
	return &models.Principal{
		ID:           uuid.New(),
		Name:         name,
		Email:        uuid.NewString()[:8] + "@citizen.example.com",
		Document:     "12345678900",
		DocumentType: models.DocumentIndividual,
		Role:         models.RoleCitizen,
	}
}

// Organization returns a valid organization principal with a fresh id.
func Organization(name string) *models.Principal {
	return &models.Principal{
		ID:           uuid.New(),
		Name:         name,
		Email:        uuid.NewString()[:8] + "@org.example.com",
		Document:     "12345678000199",
		DocumentType: models.DocumentOrganization,
		Role:         models.RoleOrganization,
	}
}

// Admin returns a valid admin principal with a fresh id.
func Admin(name string) *models.Principal {
	return &models.Principal{
		ID:           uuid.New(),
		Name:         name,
		Email:        uuid.NewString()[:8] + "@admin.example.com",
		Document:     "00000000000",
		DocumentType: models.DocumentIndividual,
		Role:         models.RoleAdmin,
	}
}

// OpenTicket returns an open ticket filed by creator.
func OpenTicket(creator *models.Principal, created time.Time) models.Ticket {
	return models.Ticket{
		ID:          uuid.New(),
		Title:       "Pothole",
		Description: "Deep hole in the road",
		Address:     "Main St 1",
		UserID:      creator.ID,
		UserName:    creator.Name,
		UserEmail:   creator.Email,
		Status:      models.TicketStatusOpen,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// AssignedTicket returns a ticket filed by creator and held by org in status.
func AssignedTicket(creator, org *models.Principal, status models.TicketStatus, created time.Time) models.Ticket {
	t := OpenTicket(creator, created)
	id := org.ID
	t.Status = status
	t.AssignedCompanyID = &id
	t.AssignedCompanyName = org.Name
	return t
}
