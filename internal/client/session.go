package client

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/example/civictickets/internal/authz"
	"github.com/example/civictickets/internal/models"
)

// Session is the signed-in identity of the client: a token and the
// principal it was issued for.
type Session struct {
	mu        sync.RWMutex
	store     Store
	token     string
	principal *models.Principal
	log       zerolog.Logger
}

// Snapshot is a consistent copy of the session with the capabilities
// derived from it.
type Snapshot struct {
	Token        string
	Principal    *models.Principal
	Capabilities authz.Capabilities
}

// NewSession returns an empty session backed by store.
func NewSession(store Store, log zerolog.Logger) *Session {
	return &Session{store: store, log: log.With().Str("component", "session").Logger()}
}

// Load restores the session from the store. An unreadable store, or a
// stored user that does not decode or fails validation, is discarded
// together with its token and the session starts empty.
func (s *Session) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.principal = "", nil

	values, err := s.store.Load()
	if errors.Is(err, ErrCorruptSession) {
		s.log.Warn().Err(err).Msg("session store is unreadable, clearing session")
		return s.store.Clear()
	}
	if err != nil {
		return err
	}

	token, rawUser := values[KeyToken], values[KeyUser]
	if token == "" || rawUser == "" {
		return nil
	}
	var p models.Principal
	if err := json.Unmarshal([]byte(rawUser), &p); err != nil {
		s.log.Warn().Err(err).Msg("stored user is not valid JSON, clearing session")
		return s.store.Clear()
	}
	if err := p.Validate(); err != nil {
		s.log.Warn().Err(err).Msg("stored user is invalid, clearing session")
		return s.store.Clear()
	}
	s.token, s.principal = token, &p
	return nil
}

// Begin stores a new token and principal together.
func (s *Session) Begin(token string, p *models.Principal) error {
	if token == "" {
		return errors.Wrap(models.ErrUnauthorized, "login returned no token")
	}
	if p == nil {
		return errors.Wrap(models.ErrUnauthorized, "login returned no user")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	user, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(map[string]string{KeyToken: token, KeyUser: string(user)}); err != nil {
		return err
	}
	copied := *p
	s.token, s.principal = token, &copied
	return nil
}

// End signs out, removing both keys.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.principal = "", nil
	return s.store.Clear()
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Token: s.token}
	if s.principal != nil {
		copied := *s.principal
		snap.Principal = &copied
	}
	snap.Capabilities = authz.For(snap.Principal)
	return snap
}
