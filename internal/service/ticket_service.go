package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/example/civictickets/internal/authz"
	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/mq"
	"github.com/example/civictickets/internal/workflow"
)

type ticketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(*models.Ticket) error) (*models.Ticket, error)
}

type eventStore interface {
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]models.TicketEvent, error)
}

type principalLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
}

// TicketService applies the ticket lifecycle on top of the ticket store and
// publishes an event for every change.
type TicketService struct {
	tickets ticketStore
	events  eventStore
	users   principalLookup
	mq      mq.Publisher
	clock   clockwork.Clock
	log     zerolog.Logger
}

// NewTicketService builds a service with dependencies. publisher may be nil.
func NewTicketService(tickets ticketStore, events eventStore, users principalLookup, publisher mq.Publisher, clock clockwork.Clock, log zerolog.Logger) *TicketService {
	return &TicketService{
		tickets: tickets,
		events:  events,
		users:   users,
		mq:      publisher,
		clock:   clock,
		log:     log.With().Str("service", "tickets").Logger(),
	}
}

// Create validates the report and files a new open ticket for actor.
func (s *TicketService) Create(ctx context.Context, actor *models.Principal, in workflow.CreateInput) (*models.Ticket, error) {
	ticket, err := workflow.NewTicket(in, actor, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, &ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, workflow.EventCreated, &ticket, actor)
	return &ticket, nil
}

// List returns the tickets matching filter that actor may see, newest first.
func (s *TicketService) List(ctx context.Context, actor *models.Principal, filter models.TicketFilter) ([]models.Ticket, error) {
	caps := authz.For(actor)
	if !caps.Authenticated {
		return nil, errors.WithStack(models.ErrUnauthorized)
	}
	tickets, err := s.tickets.List(ctx, caps.Scope(filter))
	if err != nil {
		return nil, err
	}
	visible := tickets[:0]
	for i := range tickets {
		if caps.CanViewTicket(&tickets[i]) {
			visible = append(visible, tickets[i])
		}
	}
	return visible, nil
}

// Available lists open, unassigned tickets for organizations and admins.
func (s *TicketService) Available(ctx context.Context, actor *models.Principal) ([]models.Ticket, error) {
	caps := authz.For(actor)
	if caps.Authenticated && !caps.ViewOpenTickets {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s cannot browse available tickets", caps.Role())
	}
	return s.List(ctx, actor, models.TicketFilter{AvailableOnly: true})
}

// Assigned lists the tickets held by the acting organization. Admins see
// every assigned ticket.
func (s *TicketService) Assigned(ctx context.Context, actor *models.Principal, status *models.TicketStatus) ([]models.Ticket, error) {
	caps := authz.For(actor)
	switch {
	case !caps.Authenticated:
		return nil, errors.WithStack(models.ErrUnauthorized)
	case caps.IsAdmin():
		all, err := s.List(ctx, actor, models.TicketFilter{Status: status})
		if err != nil {
			return nil, err
		}
		assigned := all[:0]
		for _, t := range all {
			if t.AssignedCompanyID != nil {
				assigned = append(assigned, t)
			}
		}
		return assigned, nil
	case caps.AssignTickets:
		id := caps.PrincipalID()
		return s.List(ctx, actor, models.TicketFilter{Status: status, AssignedTo: &id})
	}
	return nil, errors.Wrapf(models.ErrForbidden, "role %s holds no assignments", caps.Role())
}

// Get returns a ticket visible to actor.
func (s *TicketService) Get(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.Ticket, error) {
	caps := authz.For(actor)
	if !caps.Authenticated {
		return nil, errors.WithStack(models.ErrUnauthorized)
	}
	ticket, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caps.CanViewTicket(ticket) {
		return nil, errors.Wrapf(models.ErrForbidden, "ticket %s is not visible to %s", id, actor.ID)
	}
	return ticket, nil
}

// Transition applies cmd atomically. The stored ticket only changes when
// the whole transition succeeds.
func (s *TicketService) Transition(ctx context.Context, id uuid.UUID, cmd workflow.Command, actor *models.Principal) (*models.Ticket, error) {
	if cmd.Action == models.ActionAdminOverride && cmd.AssignTo != nil {
		org, err := s.users.FindByID(ctx, cmd.AssignTo.ID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.NewValidationError("assigned_company_id", "does not reference a known principal")
			}
			return nil, err
		}
		cmd.AssignTo = org
	}

	now := s.clock.Now().UTC()
	ticket, err := s.tickets.Mutate(ctx, id, func(t *models.Ticket) error {
		next, err := workflow.Apply(*t, cmd, actor, now)
		if err != nil {
			return err
		}
		*t = next
		return nil
	})
	if err != nil {
		s.log.Debug().Err(err).Str("ticket_id", id.String()).Str("action", cmd.Action.String()).Msg("transition rejected")
		return nil, err
	}
	s.publishEvent(ctx, workflow.EventName(cmd.Action), ticket, actor)
	return ticket, nil
}

// History returns the recorded events of a ticket visible to actor.
func (s *TicketService) History(ctx context.Context, actor *models.Principal, id uuid.UUID) ([]models.TicketEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.events.ListByTicket(ctx, id)
}

// publishEvent never fails the caller: the ticket change is already stored.
func (s *TicketService) publishEvent(ctx context.Context, event string, ticket *models.Ticket, actor *models.Principal) {
	if s.mq == nil {
		return
	}
	payload := models.TicketEvent{
		ID:         uuid.New(),
		TicketID:   ticket.ID,
		Event:      event,
		Status:     ticket.Status,
		ActorID:    actor.ID,
		AssigneeID: ticket.AssignedCompanyID,
		OccurredAt: ticket.UpdatedAt,
	}
	if err := s.mq.Publish(ctx, event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Str("ticket_id", ticket.ID.String()).Msg("publish ticket event failed")
	}
}
