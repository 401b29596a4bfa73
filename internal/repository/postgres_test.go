package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/civictickets/internal/db"
	"github.com/example/civictickets/internal/models"
)

var (
	pgOnce      sync.Once
	pgDSN       string
	pgErr       error
	pgContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	code := m.Run()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		fmt.Fprintf(os.Stderr, "terminate postgres container: %v\n", err)
	}
	os.Exit(code)
}

// setupPostgres connects to TEST_DB_DSN, or to a shared Postgres container
// started once per test run. The test is skipped when neither is available.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres tests need docker; skipped in -short mode")
	}

	pgOnce.Do(func() {
		if dsn := os.Getenv("TEST_DB_DSN"); dsn != "" {
			pgDSN = dsn
			return
		}
		pgDSN, pgErr = startPostgres()
	})
	if pgErr != nil {
		t.Skipf("postgres unavailable: %v", pgErr)
	}

	database, err := db.New(pgDSN, gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))
	require.NoError(t, database.Exec("TRUNCATE ticket_events, tickets, principals").Error)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return database
}

func startPostgres() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tickets",
				"POSTGRES_PASSWORD": "tickets",
				"POSTGRES_DB":       "tickets",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	pgContainer = container
	if err != nil {
		return "", errors.Wrap(err, "start container")
	}
	host, err := container.Host(ctx)
	if err != nil {
		return "", errors.Wrap(err, "container host")
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", errors.Wrap(err, "mapped port")
	}
	return fmt.Sprintf("postgres://tickets:tickets@%s:%s/tickets?sslmode=disable", host, port.Port()), nil
}

func TestTicketRepositoryPostgres(t *testing.T) {
	database := setupPostgres(t)
	ctx := context.Background()
	repo := NewTicketRepository(database)
	owner, org := uuid.New(), uuid.New()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	older := newTicket(owner, base)
	newer := newTicket(owner, base.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	got, err := repo.FindByID(ctx, older.ID)
	require.NoError(t, err)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.True(t, base.Equal(got.UpdatedAt), "timestamps are set by the caller")

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, models.ErrNotFound))

	list, err := repo.List(ctx, models.TicketFilter{OwnerID: &owner})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	updated, err := repo.Mutate(ctx, older.ID, func(tk *models.Ticket) error {
		tk.Status = models.TicketStatusInProgress
		tk.AssignedCompanyID = &org
		tk.UpdatedAt = base.Add(2 * time.Hour)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusInProgress, updated.Status)

	held, err := repo.List(ctx, models.TicketFilter{AssignedTo: &org})
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, older.ID, held[0].ID)

	available, err := repo.List(ctx, models.TicketFilter{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, newer.ID, available[0].ID)

	_, err = repo.Mutate(ctx, newer.ID, func(tk *models.Ticket) error {
		tk.Title = "half-written"
		return models.ErrConflict
	})
	assert.True(t, errors.Is(err, models.ErrConflict))
	unchanged, err := repo.FindByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broken lamp", unchanged.Title)

	resolved := models.TicketStatusResolved
	empty, err := repo.List(ctx, models.TicketFilter{Status: &resolved})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTicketRepositoryPostgresConcurrentAssign(t *testing.T) {
	database := setupPostgres(t)
	ctx := context.Background()
	repo := NewTicketRepository(database)
	ticket := newTicket(uuid.New(), time.Now().UTC())
	require.NoError(t, repo.Create(ctx, ticket))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			org := uuid.New()
			_, err := repo.Mutate(ctx, ticket.ID, func(tk *models.Ticket) error {
				if tk.Status != models.TicketStatusOpen {
					return models.ErrConflict
				}
				tk.Status = models.TicketStatusInProgress
				tk.AssignedCompanyID = &org
				return nil
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestUserAndEventRepositoryPostgres(t *testing.T) {
	database := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(database)
	events := NewEventRepository(database)

	p := &models.Principal{Name: "Ana", Email: "Ana@Example.com", DocumentType: models.DocumentIndividual, Role: models.RoleCitizen}
	require.NoError(t, users.Create(ctx, p))
	dup := &models.Principal{Name: "Ana 2", Email: "ana@example.com", DocumentType: models.DocumentIndividual, Role: models.RoleCitizen}
	assert.True(t, errors.Is(users.Create(ctx, dup), models.ErrAlreadyExists))

	got, err := users.FindByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	ticketID := uuid.New()
	event := &models.TicketEvent{ID: uuid.New(), TicketID: ticketID, Event: "ticket.created", Status: models.TicketStatusOpen, OccurredAt: time.Now().UTC()}
	require.NoError(t, events.Append(ctx, event))
	require.NoError(t, events.Append(ctx, event))

	history, err := events.ListByTicket(ctx, ticketID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
