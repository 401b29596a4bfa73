package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// TicketStatus describes the life-cycle state of a ticket. The values are the
// literals stored by the existing ticket backend and must not change.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "aberto"
	TicketStatusInProgress TicketStatus = "em andamento"
	TicketStatusResolved   TicketStatus = "resolvido"
)

func (s TicketStatus) String() string { return string(s) }

func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

// RequiresAssignee reports whether a ticket in this status must carry an
// assigned organization.
func (s TicketStatus) RequiresAssignee() bool {
	switch s {
	case TicketStatusInProgress, TicketStatusResolved:
		return true
	case TicketStatusOpen:
		return false
	}
	return false
}

// ParseTicketStatus accepts the stored literals and their English names
// (open, in_progress, resolved).
func ParseTicketStatus(raw string) (TicketStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TicketStatusOpen), "open":
		return TicketStatusOpen, nil
	case string(TicketStatusInProgress), "in_progress", "in-progress":
		return TicketStatusInProgress, nil
	case string(TicketStatusResolved), "resolved":
		return TicketStatusResolved, nil
	}
	return "", NewValidationError("status", "must be one of aberto, em andamento, resolvido")
}

// Action names a lifecycle transition that can be requested on a ticket.
type Action string

const (
	ActionAssign        Action = "assign"
	ActionComplete      Action = "complete"
	ActionAddFeedback   Action = "add_feedback"
	ActionAdminOverride Action = "admin_override"
)

func (a Action) String() string { return string(a) }

func (a Action) IsValid() bool {
	switch a {
	case ActionAssign, ActionComplete, ActionAddFeedback, ActionAdminOverride:
		return true
	}
	return false
}

// Ticket is a reported maintenance issue persisted in Postgres.
type Ticket struct {
	ID                  uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Title               string       `gorm:"not null" json:"title"`
	Description         string       `gorm:"type:text;not null" json:"description"`
	Address             string       `gorm:"not null" json:"address"`
	UserID              uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	UserName            string       `json:"user_name"`
	UserEmail           string       `json:"user_email"`
	ImageURL            *string      `json:"image_url"`
	Status              TicketStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	AssignedCompanyID   *uuid.UUID   `gorm:"type:uuid;index" json:"assigned_company_id"`
	AssignedCompanyName string       `json:"assigned_company_name,omitempty"`
	Feedback            string       `gorm:"type:text" json:"feedback,omitempty"`
	CreatedAt           time.Time    `gorm:"autoCreateTime:false;index" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// BeforeCreate is a GORM hook that populates the primary key.
func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TicketStatusOpen
	}
	return nil
}

// Clone returns a deep copy so callers never share pointer fields.
func (t Ticket) Clone() Ticket {
	out := t
	if t.ImageURL != nil {
		v := *t.ImageURL
		out.ImageURL = &v
	}
	if t.AssignedCompanyID != nil {
		v := *t.AssignedCompanyID
		out.AssignedCompanyID = &v
	}
	return out
}

// IsAssignedTo reports whether the organization id holds the ticket.
func (t *Ticket) IsAssignedTo(id uuid.UUID) bool {
	return t.AssignedCompanyID != nil && *t.AssignedCompanyID == id
}

// IsAvailable reports whether the ticket can still be claimed.
func (t *Ticket) IsAvailable() bool {
	return t.Status == TicketStatusOpen && t.AssignedCompanyID == nil
}

// CheckInvariants verifies the status/assignee/feedback relationship.
func (t *Ticket) CheckInvariants() error {
	if !t.Status.IsValid() {
		return errors.Errorf("ticket %s has unknown status %q", t.ID, t.Status)
	}
	if t.Status.RequiresAssignee() != (t.AssignedCompanyID != nil) {
		return errors.Errorf("ticket %s in status %q has inconsistent assignee", t.ID, t.Status)
	}
	if t.Feedback != "" && t.Status != TicketStatusResolved {
		return errors.Errorf("ticket %s carries feedback while %q", t.ID, t.Status)
	}
	return nil
}

// TicketFilter restricts a ticket listing. Nil fields do not filter.
type TicketFilter struct {
	Status        *TicketStatus
	OwnerID       *uuid.UUID
	AssignedTo    *uuid.UUID
	AvailableOnly bool
}

// Matches applies the filter to a single ticket.
func (f TicketFilter) Matches(t *Ticket) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.OwnerID != nil && t.UserID != *f.OwnerID {
		return false
	}
	if f.AssignedTo != nil && !t.IsAssignedTo(*f.AssignedTo) {
		return false
	}
	if f.AvailableOnly && !t.IsAvailable() {
		return false
	}
	return true
}

// TicketEvent is one entry of a ticket's history, also used as the message
// body published for every lifecycle change.
type TicketEvent struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	TicketID   uuid.UUID    `gorm:"type:uuid;not null;index" json:"ticket_id"`
	Event      string       `gorm:"not null" json:"event"`
	Status     TicketStatus `gorm:"type:varchar(32);not null" json:"status"`
	ActorID    uuid.UUID    `gorm:"type:uuid" json:"actor_id"`
	AssigneeID *uuid.UUID   `gorm:"type:uuid" json:"assignee_id,omitempty"`
	OccurredAt time.Time    `gorm:"not null;index" json:"occurred_at"`
}

// BeforeCreate is a GORM hook that populates the primary key.
func (e *TicketEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
