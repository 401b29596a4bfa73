package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/example/civictickets/internal/auth"
	httpserver "github.com/example/civictickets/internal/http"
	"github.com/example/civictickets/internal/mq"
	"github.com/example/civictickets/internal/repository"
	"github.com/example/civictickets/internal/service"
	"github.com/example/civictickets/internal/worker"
)

// mockSecret signs mock sessions. It is fixed so a saved demo session stays
// valid across runs; the demo principals have stable ids.
const mockSecret = "civictickets-mock-backend"

// MockTransport serves the ticket API in process over memory repositories
// seeded with the demo data. Demo accounts accept any password.
type MockTransport struct {
	*HTTPTransport
	Tickets *repository.MemoryTicketRepository
	Users   *repository.MemoryUserRepository
}

type mockConfig struct {
	clock clockwork.Clock
	log   zerolog.Logger
	seed  bool
}

// MockOption customises a MockTransport.
type MockOption func(*mockConfig)

// WithMockClock sets the clock used to stamp tickets.
func WithMockClock(clock clockwork.Clock) MockOption {
	return func(c *mockConfig) { c.clock = clock }
}

// WithMockLogger sets the logger of the in-process services.
func WithMockLogger(log zerolog.Logger) MockOption {
	return func(c *mockConfig) { c.log = log }
}

// WithoutSeed starts the mock store empty.
func WithoutSeed() MockOption {
	return func(c *mockConfig) { c.seed = false }
}

// NewMockTransport builds the in-process backend.
func NewMockTransport(opts ...MockOption) (*MockTransport, error) {
	cfg := mockConfig{clock: clockwork.NewRealClock(), log: zerolog.Nop(), seed: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	tickets := repository.NewMemoryTicketRepository()
	users := repository.NewMemoryUserRepository()
	events := repository.NewMemoryEventRepository()
	if cfg.seed {
		if err := repository.Seed(context.Background(), users, tickets, ""); err != nil {
			return nil, errors.Wrap(err, "seed mock store")
		}
	}

	tokens := auth.NewTokenManager(mockSecret, "civictickets-mock", 24*time.Hour)

	eventWorker := worker.NewEventWorker(nil, events, cfg.log)
	ticketSvc := service.NewTicketService(tickets, events, users, mq.NewLocalPublisher(eventWorker.Handle), cfg.clock, cfg.log)
	authSvc := service.NewAuthService(users, tokens, cfg.log, service.WithDemoLogin())
	server := httpserver.NewServer(ticketSvc, authSvc, cfg.log, httpserver.Options{})

	transport := &HTTPTransport{
		baseURL: "http://mock/api",
		client:  &http.Client{Transport: handlerTransport{handler: server}},
	}
	return &MockTransport{HTTPTransport: transport, Tickets: tickets, Users: users}, nil
}

// handlerTransport answers requests by calling an http.Handler directly.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, req)
	return rec.Result(), nil
}
