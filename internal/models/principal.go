package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the authorization level of a principal.
type Role string

const (
	RoleCitizen      Role = "citizen"
	RoleOrganization Role = "organization"
	RoleAdmin        Role = "admin"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleOrganization, RoleAdmin:
		return true
	}
	return false
}

// DocumentType discriminates natural persons from organizations.
type DocumentType string

const (
	DocumentIndividual   DocumentType = "individual"
	DocumentOrganization DocumentType = "organization"
)

func (d DocumentType) String() string { return string(d) }

func (d DocumentType) IsValid() bool {
	switch d {
	case DocumentIndividual, DocumentOrganization:
		return true
	}
	return false
}

// DocumentLength is the number of digits of a valid document (CPF or CNPJ).
func (d DocumentType) DocumentLength() int {
	switch d {
	case DocumentIndividual:
		return 11
	case DocumentOrganization:
		return 14
	}
	return 0
}

// Principal is an authenticated actor: a citizen, an organization or an admin.
type Principal struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string       `gorm:"not null" json:"name"`
	Email        string       `gorm:"uniqueIndex;not null" json:"email"`
	Document     string       `json:"document,omitempty"`
	DocumentType DocumentType `gorm:"type:varchar(16);not null" json:"document_type"`
	Role         Role         `gorm:"type:varchar(16);not null" json:"role"`
	PasswordHash string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// BeforeCreate is a GORM hook that populates the primary key.
func (p *Principal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Validate checks the document-type/role pairing.
func (p *Principal) Validate() error {
	if p.ID == uuid.Nil {
		return NewValidationError("id", "is required")
	}
	if !p.Role.IsValid() {
		return NewValidationError("role", "is unknown")
	}
	switch p.DocumentType {
	case DocumentOrganization:
		if p.Role != RoleOrganization {
			return NewValidationError("role", "organization documents require the organization role")
		}
	case DocumentIndividual:
		if p.Role != RoleCitizen && p.Role != RoleAdmin {
			return NewValidationError("role", "individual documents require the citizen or admin role")
		}
	default:
		return NewValidationError("document_type", "is unknown")
	}
	return nil
}

func (p *Principal) IsCitizen() bool      { return p != nil && p.Role == RoleCitizen }
func (p *Principal) IsOrganization() bool { return p != nil && p.Role == RoleOrganization }
func (p *Principal) IsAdmin() bool        { return p != nil && p.Role == RoleAdmin }

// RoleFor derives the self-registration role from a document type.
func RoleFor(d DocumentType) Role {
	if d == DocumentOrganization {
		return RoleOrganization
	}
	return RoleCitizen
}
