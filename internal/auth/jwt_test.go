package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/civictickets/internal/models"
)

func principal() *models.Principal {
	return &models.Principal{ID: uuid.New(), Role: models.RoleCitizen, DocumentType: models.DocumentIndividual}
}

func TestIssueAndValidate(t *testing.T) {
	m := NewTokenManager("secret", "civictickets", time.Hour)
	p := principal()

	token, err := m.Issue(p)
	require.NoError(t, err)

	id, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)
}

func TestValidateRejects(t *testing.T) {
	m := NewTokenManager("secret", "civictickets", time.Hour)
	token, err := m.Issue(principal())
	require.NoError(t, err)

	tests := map[string]struct {
		manager *TokenManager
		token   string
	}{
		"empty token":  {m, ""},
		"garbage":      {m, "a.b.c"},
		"wrong secret": {NewTokenManager("other", "civictickets", time.Hour), token},
		"wrong issuer": {NewTokenManager("secret", "someone-else", time.Hour), token},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tc.manager.Validate(tc.token)
			assert.True(t, errors.Is(err, models.ErrUnauthorized), "got %v", err)
		})
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewTokenManager("secret", "civictickets", time.Minute)
	issuedAt := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issuedAt }
	token, err := m.Issue(principal())
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Validate(token)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}
