package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPrincipalValidate(t *testing.T) {
	tests := []struct {
		name    string
		docType DocumentType
		role    Role
		wantErr bool
	}{
		{"citizen with individual document", DocumentIndividual, RoleCitizen, false},
		{"admin with individual document", DocumentIndividual, RoleAdmin, false},
		{"organization with organization document", DocumentOrganization, RoleOrganization, false},
		{"organization document claiming citizen", DocumentOrganization, RoleCitizen, true},
		{"organization document claiming admin", DocumentOrganization, RoleAdmin, true},
		{"individual document claiming organization", DocumentIndividual, RoleOrganization, true},
		{"unknown document type", DocumentType("passport"), RoleCitizen, true},
		{"unknown role", DocumentIndividual, Role("user"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &Principal{ID: uuid.New(), Name: "x", Email: "x@example.com", DocumentType: tc.docType, Role: tc.role}
			err := p.Validate()
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPrincipalValidateRequiresID(t *testing.T) {
	p := &Principal{DocumentType: DocumentIndividual, Role: RoleCitizen}
	assert.Error(t, p.Validate())
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, RoleOrganization, RoleFor(DocumentOrganization))
	assert.Equal(t, RoleCitizen, RoleFor(DocumentIndividual))
	assert.Equal(t, 11, DocumentIndividual.DocumentLength())
	assert.Equal(t, 14, DocumentOrganization.DocumentLength())
}

func TestNilPrincipalRoleHelpers(t *testing.T) {
	var p *Principal
	assert.False(t, p.IsCitizen())
	assert.False(t, p.IsOrganization())
	assert.False(t, p.IsAdmin())
}

func TestValidationErrorWrapsSentinel(t *testing.T) {
	err := errors.Wrap(NewValidationErrors([]FieldError{
		{Field: "title", Message: "is required"},
		{Field: "address", Message: "is required"},
	}), "create ticket")

	assert.True(t, errors.Is(err, ErrValidation))
	var verr *ValidationError
	if assert.True(t, errors.As(err, &verr)) {
		assert.Len(t, verr.Errors, 2)
	}
	assert.Equal(t, "validation: title is required", NewValidationError("title", "is required").Error())
}
