package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/civictickets/internal/models"
)

// MemoryTicketRepository keeps tickets in process memory. It backs the mock
// mode and tests, with the same semantics as TicketRepository.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	seq     int64
	tickets map[uuid.UUID]memoryTicket
}

type memoryTicket struct {
	ticket models.Ticket
	seq    int64
}

// NewMemoryTicketRepository returns an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[uuid.UUID]memoryTicket)}
}

// Create stores a copy of ticket, assigning an id when missing.
func (r *MemoryTicketRepository) Create(_ context.Context, ticket *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}
	if _, exists := r.tickets[ticket.ID]; exists {
		return errors.Wrapf(models.ErrAlreadyExists, "ticket %s", ticket.ID)
	}
	r.seq++
	r.tickets[ticket.ID] = memoryTicket{ticket: ticket.Clone(), seq: r.seq}
	return nil
}

// FindByID returns a copy of the ticket.
func (r *MemoryTicketRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tickets[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "ticket %s", id)
	}
	t := entry.ticket.Clone()
	return &t, nil
}

// List returns copies of the matching tickets, newest first; insertion order
// breaks ties between equal creation times.
func (r *MemoryTicketRepository) List(_ context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	r.mu.RLock()
	entries := make([]memoryTicket, 0, len(r.tickets))
	for _, entry := range r.tickets {
		if filter.Matches(&entry.ticket) {
			entries = append(entries, entry)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ticket.CreatedAt.Equal(b.ticket.CreatedAt) {
			return a.ticket.CreatedAt.After(b.ticket.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]models.Ticket, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.ticket.Clone())
	}
	return out, nil
}

// Mutate applies fn to a copy under the write lock and stores it on success.
func (r *MemoryTicketRepository) Mutate(_ context.Context, id uuid.UUID, fn func(*models.Ticket) error) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tickets[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "ticket %s", id)
	}
	working := entry.ticket.Clone()
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.ID = id
	entry.ticket = working.Clone()
	r.tickets[id] = entry
	return &working, nil
}

// MemoryUserRepository keeps principals in process memory.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]models.Principal
	byEmail map[string]uuid.UUID
}

// NewMemoryUserRepository returns an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[uuid.UUID]models.Principal),
		byEmail: make(map[string]uuid.UUID),
	}
}

// Create stores p; emails are unique and case-insensitive.
func (r *MemoryUserRepository) Create(_ context.Context, p *models.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.Email = normalizeEmail(p.Email)
	if _, exists := r.byEmail[p.Email]; exists {
		return errors.Wrapf(models.ErrAlreadyExists, "email %s", p.Email)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.byID[p.ID] = *p
	r.byEmail[p.Email] = p.ID
	return nil
}

// FindByEmail returns the principal registered under email.
func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "email %s", email)
	}
	p := r.byID[id]
	return &p, nil
}

// FindByID returns the principal by id.
func (r *MemoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, errors.Wrapf(models.ErrNotFound, "principal %s", id)
	}
	return &p, nil
}

// MemoryEventRepository keeps ticket history in process memory.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	seen   map[uuid.UUID]struct{}
	events map[uuid.UUID][]models.TicketEvent
}

// NewMemoryEventRepository returns an empty store.
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		seen:   make(map[uuid.UUID]struct{}),
		events: make(map[uuid.UUID][]models.TicketEvent),
	}
}

// Append records an event. Redelivered events with a known id are ignored.
func (r *MemoryEventRepository) Append(_ context.Context, event *models.TicketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if _, dup := r.seen[event.ID]; dup {
		return nil
	}
	r.seen[event.ID] = struct{}{}
	r.events[event.TicketID] = append(r.events[event.TicketID], *event)
	return nil
}

// ListByTicket returns the history of a ticket, oldest first.
func (r *MemoryEventRepository) ListByTicket(_ context.Context, ticketID uuid.UUID) ([]models.TicketEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[ticketID]
	out := make([]models.TicketEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
