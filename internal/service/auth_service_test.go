package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/civictickets/internal/auth"
	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/repository"
	"github.com/example/civictickets/internal/service"
)

func newAuthService(opts ...service.AuthOption) (*service.AuthService, *repository.MemoryUserRepository) {
	users := repository.NewMemoryUserRepository()
	tokens := auth.NewTokenManager("test-secret", "civictickets-test", time.Hour)
	return service.NewAuthService(users, tokens, zerolog.Nop(), opts...), users
}

func validRegistration() service.RegisterInput {
	return service.RegisterInput{
		Name:            "Ana Souza",
		Email:           "ana@example.com",
		Password:        "s3cret!",
		ConfirmPassword: "s3cret!",
		Document:        "123.456.789-00",
		DocumentType:    models.DocumentIndividual,
	}
}

func TestRegisterDerivesRoleFromDocument(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	citizen, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, models.RoleCitizen, citizen.Role)
	assert.Equal(t, "12345678900", citizen.Document)
	assert.NotEqual(t, "s3cret!", citizen.PasswordHash)

	in := validRegistration()
	in.Email = "prefeitura@example.com"
	in.Document = "12.345.678/0001-99"
	in.DocumentType = models.DocumentOrganization
	org, err := svc.Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOrganization, org.Role)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, service.RegisterInput{DocumentType: "passport"})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]bool{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["email"])
	assert.True(t, fields["password"])
	assert.True(t, fields["document_type"])

	in := validRegistration()
	in.Document = "123"
	_, err = svc.Register(ctx, in)
	assert.True(t, errors.Is(err, models.ErrValidation))

	in = validRegistration()
	in.ConfirmPassword = "different"
	_, err = svc.Register(ctx, in)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	in := validRegistration()
	in.Email = "ANA@example.com"
	_, err = svc.Register(ctx, in)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()
	registered, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	token, p, err := svc.Login(ctx, "ana@example.com", "s3cret!")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, registered.ID, p.ID)

	resolved, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resolved.ID)

	_, _, err = svc.Login(ctx, "ana@example.com", "wrong")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	_, _, err = svc.Login(ctx, "nobody@example.com", "s3cret!")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	_, _, err = svc.Login(ctx, "", "")
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestDemoLoginOnlyWhenEnabled(t *testing.T) {
	ctx := context.Background()

	strict, users := newAuthService()
	require.NoError(t, repository.Seed(ctx, users, repository.NewMemoryTicketRepository(), ""))
	_, _, err := strict.Login(ctx, "admin@example.com", "anything")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	demo, demoUsers := newAuthService(service.WithDemoLogin())
	require.NoError(t, repository.Seed(ctx, demoUsers, repository.NewMemoryTicketRepository(), ""))
	_, p, err := demo.Login(ctx, "admin@example.com", "anything")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
}
