package service

import (
	"context"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/civictickets/internal/auth"
	"github.com/example/civictickets/internal/models"
)

type userStore interface {
	Create(ctx context.Context, p *models.Principal) error
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
}

// RegisterInput holds the fields of the registration form.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Document        string
	DocumentType    models.DocumentType
}

// AuthService registers principals, issues tokens and resolves them back.
type AuthService struct {
	users     userStore
	tokens    *auth.TokenManager
	demoLogin bool
	log       zerolog.Logger
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithDemoLogin lets principals without a password hash sign in with any
// password. Only the in-memory demo backend enables it.
func WithDemoLogin() AuthOption {
	return func(s *AuthService) { s.demoLogin = true }
}

// NewAuthService builds the service.
func NewAuthService(users userStore, tokens *auth.TokenManager, log zerolog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{users: users, tokens: tokens, log: log.With().Str("service", "auth").Logger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a citizen or organization principal. The role follows the
// document type; admins are never self-registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Principal, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	p := &models.Principal{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		Document:     digits(in.Document),
		DocumentType: in.DocumentType,
		Role:         models.RoleFor(in.DocumentType),
		PasswordHash: string(hash),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, p); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return nil, models.NewValidationError("email", "is already registered")
		}
		return nil, err
	}
	s.log.Info().Str("principal_id", p.ID.String()).Str("role", p.Role.String()).Msg("principal registered")
	return p, nil
}

// Login checks the credentials and returns a token with the principal.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.Principal, error) {
	var missing []models.FieldError
	if strings.TrimSpace(email) == "" {
		missing = append(missing, models.FieldError{Field: "email", Message: "is required"})
	}
	if password == "" {
		missing = append(missing, models.FieldError{Field: "password", Message: "is required"})
	}
	if len(missing) > 0 {
		return "", nil, models.NewValidationErrors(missing)
	}
	p, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, errors.Wrap(models.ErrUnauthorized, "invalid credentials")
		}
		return "", nil, err
	}
	if !s.passwordMatches(p, password) {
		return "", nil, errors.Wrap(models.ErrUnauthorized, "invalid credentials")
	}
	token, err := s.tokens.Issue(p)
	if err != nil {
		return "", nil, err
	}
	return token, p, nil
}

// Authenticate resolves a bearer token to the current stored principal.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Principal, error) {
	id, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	p, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errors.Wrap(models.ErrUnauthorized, "principal no longer exists")
		}
		return nil, err
	}
	return p, nil
}

func (s *AuthService) passwordMatches(p *models.Principal, password string) bool {
	if p.PasswordHash == "" {
		return s.demoLogin
	}
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) == nil
}

func (in RegisterInput) validate() error {
	var errs []models.FieldError
	required := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, models.FieldError{Field: field, Message: "is required"})
		}
	}
	required("name", in.Name)
	required("email", in.Email)
	required("password", in.Password)
	required("document", in.Document)

	if !in.DocumentType.IsValid() {
		errs = append(errs, models.FieldError{Field: "document_type", Message: "must be individual or organization"})
	} else if doc := digits(in.Document); doc != "" && len(doc) != in.DocumentType.DocumentLength() {
		errs = append(errs, models.FieldError{Field: "document", Message: "has the wrong number of digits"})
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		errs = append(errs, models.FieldError{Field: "email", Message: "is malformed"})
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		errs = append(errs, models.FieldError{Field: "confirm_password", Message: "does not match"})
	}
	if len(errs) > 0 {
		return models.NewValidationErrors(errs)
	}
	return nil
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
