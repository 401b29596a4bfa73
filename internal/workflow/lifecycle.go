// Package workflow implements the ticket lifecycle: open, in progress,
// resolved. Transitions are pure functions of the current ticket, the
// command and the acting principal.
package workflow

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/example/civictickets/internal/authz"
	"github.com/example/civictickets/internal/models"
)

// Command requests one transition.
type Command struct {
	Action   models.Action
	Feedback string
	// Status and AssignTo are only read by admin overrides.
	Status   models.TicketStatus
	AssignTo *models.Principal
}

// CreateInput holds the fields of the report form.
type CreateInput struct {
	Title       string
	Description string
	Address     string
	ImageURL    *string
}

// Validate reports every missing required field at once.
func (in CreateInput) Validate() error {
	var errs []models.FieldError
	if strings.TrimSpace(in.Title) == "" {
		errs = append(errs, models.FieldError{Field: "title", Message: "is required"})
	}
	if strings.TrimSpace(in.Description) == "" {
		errs = append(errs, models.FieldError{Field: "description", Message: "is required"})
	}
	if strings.TrimSpace(in.Address) == "" {
		errs = append(errs, models.FieldError{Field: "address", Message: "is required"})
	}
	if len(errs) > 0 {
		return models.NewValidationErrors(errs)
	}
	return nil
}

// NewTicket builds an open ticket filed by creator.
func NewTicket(in CreateInput, creator *models.Principal, now time.Time) (models.Ticket, error) {
	caps := authz.For(creator)
	if !caps.Authenticated {
		return models.Ticket{}, errors.WithStack(models.ErrUnauthorized)
	}
	if !caps.CreateTickets {
		return models.Ticket{}, errors.Wrapf(models.ErrForbidden, "role %s cannot create tickets", creator.Role)
	}
	if err := in.Validate(); err != nil {
		return models.Ticket{}, err
	}
	t := models.Ticket{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Address:     strings.TrimSpace(in.Address),
		UserID:      creator.ID,
		UserName:    creator.Name,
		UserEmail:   creator.Email,
		Status:      models.TicketStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.ImageURL != nil && strings.TrimSpace(*in.ImageURL) != "" {
		url := strings.TrimSpace(*in.ImageURL)
		t.ImageURL = &url
	}
	return t, nil
}

// Apply runs cmd against current on behalf of actor. On success it returns
// the next state with UpdatedAt set to now; on failure it returns current
// untouched together with the error. current itself is never modified.
func Apply(current models.Ticket, cmd Command, actor *models.Principal, now time.Time) (models.Ticket, error) {
	caps := authz.For(actor)
	if !caps.Authenticated {
		return current, errors.WithStack(models.ErrUnauthorized)
	}

	next := current.Clone()
	var err error
	switch cmd.Action {
	case models.ActionAssign:
		err = assign(&next, caps, actor)
	case models.ActionComplete:
		err = complete(&next, caps)
	case models.ActionAddFeedback:
		err = addFeedback(&next, caps, cmd.Feedback)
	case models.ActionAdminOverride:
		err = override(&next, caps, cmd)
	default:
		err = models.NewValidationError("action", "is unknown")
	}
	if err != nil {
		return current, err
	}
	if err := next.CheckInvariants(); err != nil {
		return current, errors.Wrap(models.ErrConflict, err.Error())
	}
	next.UpdatedAt = now
	return next, nil
}

func assign(t *models.Ticket, caps authz.Capabilities, actor *models.Principal) error {
	if !caps.AssignTickets {
		return errors.Wrapf(models.ErrForbidden, "role %s cannot assign tickets", caps.Role())
	}
	if t.Status != models.TicketStatusOpen {
		return errors.Wrapf(models.ErrConflict, "ticket %s cannot be assigned from status %q", t.ID, t.Status)
	}
	id := actor.ID
	t.Status = models.TicketStatusInProgress
	t.AssignedCompanyID = &id
	t.AssignedCompanyName = actor.Name
	return nil
}

func complete(t *models.Ticket, caps authz.Capabilities) error {
	if !caps.CompleteTickets {
		return errors.Wrapf(models.ErrForbidden, "role %s cannot complete tickets", caps.Role())
	}
	if t.Status != models.TicketStatusInProgress {
		return errors.Wrapf(models.ErrConflict, "ticket %s cannot be completed from status %q", t.ID, t.Status)
	}
	if !caps.IsAdmin() && !caps.HoldsAssignment(t) {
		return errors.Wrapf(models.ErrForbidden, "ticket %s is assigned to another organization", t.ID)
	}
	t.Status = models.TicketStatusResolved
	return nil
}

func addFeedback(t *models.Ticket, caps authz.Capabilities, feedback string) error {
	if !caps.SubmitFeedback {
		return errors.Wrapf(models.ErrForbidden, "role %s cannot submit feedback", caps.Role())
	}
	if !caps.IsCreator(t) {
		return errors.Wrapf(models.ErrForbidden, "only the creator of ticket %s may leave feedback", t.ID)
	}
	text := strings.TrimSpace(feedback)
	if text == "" {
		return models.NewValidationError("feedback", "is required")
	}
	if t.Status != models.TicketStatusResolved {
		return errors.Wrapf(models.ErrConflict, "ticket %s is not resolved", t.ID)
	}
	if t.Feedback != "" {
		return errors.Wrapf(models.ErrConflict, "ticket %s already has feedback", t.ID)
	}
	t.Feedback = text
	return nil
}

// override sets any status while keeping the assignee and feedback
// invariants: reopening clears the assignee, leaving resolved clears the
// feedback, and in-progress or resolved need an organization on the ticket.
func override(t *models.Ticket, caps authz.Capabilities, cmd Command) error {
	if !caps.OverrideStatus {
		return errors.Wrapf(models.ErrForbidden, "role %s cannot override ticket status", caps.Role())
	}
	if !cmd.Status.IsValid() {
		return models.NewValidationError("status", "must be one of aberto, em andamento, resolvido")
	}
	if cmd.AssignTo != nil {
		if !cmd.AssignTo.IsOrganization() {
			return models.NewValidationError("assigned_company_id", "must reference an organization")
		}
		if !cmd.Status.RequiresAssignee() {
			return models.NewValidationError("assigned_company_id", "cannot be set on an open ticket")
		}
		id := cmd.AssignTo.ID
		t.AssignedCompanyID = &id
		t.AssignedCompanyName = cmd.AssignTo.Name
	}

	switch cmd.Status {
	case models.TicketStatusOpen:
		t.AssignedCompanyID = nil
		t.AssignedCompanyName = ""
	case models.TicketStatusInProgress, models.TicketStatusResolved:
		if t.AssignedCompanyID == nil {
			return errors.Wrapf(models.ErrConflict, "ticket %s needs an assigned organization to become %q", t.ID, cmd.Status)
		}
	}
	if cmd.Status != models.TicketStatusResolved {
		t.Feedback = ""
	}
	t.Status = cmd.Status
	return nil
}

// ActionForStatus translates a requested target status into the command the
// actor is entitled to: organizations assign or complete, admins override.
func ActionForStatus(actor *models.Principal, target models.TicketStatus) (Command, error) {
	if !target.IsValid() {
		return Command{}, models.NewValidationError("status", "must be one of aberto, em andamento, resolvido")
	}
	caps := authz.For(actor)
	switch {
	case !caps.Authenticated:
		return Command{}, errors.WithStack(models.ErrUnauthorized)
	case caps.OverrideStatus:
		return Command{Action: models.ActionAdminOverride, Status: target}, nil
	case caps.AssignTickets && target == models.TicketStatusInProgress:
		return Command{Action: models.ActionAssign}, nil
	case caps.CompleteTickets && target == models.TicketStatusResolved:
		return Command{Action: models.ActionComplete}, nil
	}
	return Command{}, errors.Wrapf(models.ErrForbidden, "role %s cannot move tickets to %q", caps.Role(), target)
}

// EventName is the routing key published after a successful action.
func EventName(a models.Action) string {
	switch a {
	case models.ActionAssign:
		return "ticket.assigned"
	case models.ActionComplete:
		return "ticket.completed"
	case models.ActionAddFeedback:
		return "ticket.feedback"
	case models.ActionAdminOverride:
		return "ticket.overridden"
	}
	return "ticket.updated"
}

// EventCreated is published when a ticket is filed.
const EventCreated = "ticket.created"
