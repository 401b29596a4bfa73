package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/example/civictickets/internal/authz"
	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/workflow"
)

// TicketView is a ticket with the actions the viewer can take on it.
type TicketView struct {
	models.Ticket
	Actions []models.Action `json:"actions"`
}

// Can reports whether action is offered on the ticket.
func (v TicketView) Can(action models.Action) bool {
	for _, a := range v.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// App is the view model of the front end: the current route, the flash
// message and the dashboard, all derived from the session.
type App struct {
	client    *Client
	flash     *Flash
	dashboard Latest[[]TicketView]
	available Latest[[]TicketView]
	assigned  Latest[[]TicketView]

	mu    sync.Mutex
	route string
}

// NewApp creates the view model on the landing page.
func NewApp(c *Client, clock clockwork.Clock) *App {
	return &App{client: c, flash: NewFlash(clock), route: authz.RouteHome}
}

// Navigate moves to path, or to wherever the route guard redirects. It
// returns the route now shown and whether it is the one requested.
// Navigation clears the flash message.
func (a *App) Navigate(path string) (string, bool) {
	dest, ok := a.client.Session().Snapshot().Capabilities.Route(path)
	a.flash.Clear()
	a.mu.Lock()
	a.route = dest
	a.mu.Unlock()
	return dest, ok
}

// Route returns the route currently shown.
func (a *App) Route() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.route
}

// Flash returns the message currently displayed, if any.
func (a *App) Flash() (FlashMessage, bool) {
	return a.flash.Current()
}

// Capabilities of the signed-in principal.
func (a *App) Capabilities() authz.Capabilities {
	return a.client.Session().Snapshot().Capabilities
}

// Login signs in and opens the dashboard.
func (a *App) Login(ctx context.Context, email, password string) (*models.Principal, error) {
	p, err := a.client.Login(ctx, email, password)
	if err != nil {
		a.flash.Error(message(err))
		return nil, err
	}
	a.Navigate(authz.RouteDashboard)
	return p, nil
}

// Logout signs out and returns to the login page.
func (a *App) Logout() error {
	if err := a.client.Logout(); err != nil {
		return err
	}
	a.Navigate(authz.RouteLogin)
	return nil
}

// Register creates an account and sends the user to the login page.
func (a *App) Register(ctx context.Context, req RegisterRequest) (*models.Principal, error) {
	p, err := a.client.Register(ctx, req)
	if err != nil {
		a.flash.Error(message(err))
		return nil, err
	}
	a.Navigate(authz.RouteLogin)
	a.flash.Success("Account created, you can sign in now")
	return p, nil
}

// Dashboard loads the tickets of the signed-in principal. A load overtaken
// by a newer one returns ErrSuperseded.
func (a *App) Dashboard(ctx context.Context, status *models.TicketStatus) ([]TicketView, error) {
	return a.dashboard.Fetch(ctx, func(ctx context.Context) ([]TicketView, error) {
		tickets, err := a.client.ListTickets(ctx, status)
		if err != nil {
			return nil, err
		}
		return a.views(tickets), nil
	})
}

// Available loads the open tickets an organization can claim. A load
// overtaken by a newer one returns ErrSuperseded.
func (a *App) Available(ctx context.Context) ([]TicketView, error) {
	return a.available.Fetch(ctx, func(ctx context.Context) ([]TicketView, error) {
		tickets, err := a.client.Available(ctx)
		if err != nil {
			return nil, err
		}
		return a.views(tickets), nil
	})
}

// Assigned loads the tickets held by the signed-in organization. A load
// overtaken by a newer one returns ErrSuperseded.
func (a *App) Assigned(ctx context.Context, status *models.TicketStatus) ([]TicketView, error) {
	return a.assigned.Fetch(ctx, func(ctx context.Context) ([]TicketView, error) {
		tickets, err := a.client.Assigned(ctx, status)
		if err != nil {
			return nil, err
		}
		return a.views(tickets), nil
	})
}

// Ticket loads the detail view of one ticket.
func (a *App) Ticket(ctx context.Context, id uuid.UUID) (TicketView, error) {
	t, err := a.client.GetTicket(ctx, id)
	if err != nil {
		return TicketView{}, err
	}
	return a.view(*t), nil
}

// History loads the recorded events of a ticket.
func (a *App) History(ctx context.Context, id uuid.UUID) ([]models.TicketEvent, error) {
	return a.client.History(ctx, id)
}

// Create files a report and returns to the dashboard.
func (a *App) Create(ctx context.Context, in workflow.CreateInput) (TicketView, error) {
	t, err := a.client.CreateTicket(ctx, in)
	if err != nil {
		a.flash.Error(message(err))
		return TicketView{}, err
	}
	a.Navigate(authz.RouteDashboard)
	a.flash.Success("Ticket created successfully")
	return a.view(*t), nil
}

// Assign claims a ticket for the signed-in organization.
func (a *App) Assign(ctx context.Context, id uuid.UUID) (TicketView, error) {
	return a.act(a.client.Assign(ctx, id))("Ticket assigned to you")
}

// Complete resolves a ticket.
func (a *App) Complete(ctx context.Context, id uuid.UUID) (TicketView, error) {
	return a.act(a.client.Complete(ctx, id))("Ticket marked as resolved")
}

// Feedback records the creator's feedback.
func (a *App) Feedback(ctx context.Context, id uuid.UUID, text string) (TicketView, error) {
	return a.act(a.client.AddFeedback(ctx, id, text))("Thank you for your feedback")
}

// Override forces a status as admin.
func (a *App) Override(ctx context.Context, id uuid.UUID, status models.TicketStatus, orgID *uuid.UUID) (TicketView, error) {
	return a.act(a.client.Override(ctx, id, status, orgID))("Status updated")
}

func (a *App) act(t *models.Ticket, err error) func(success string) (TicketView, error) {
	return func(success string) (TicketView, error) {
		if err != nil {
			a.flash.Error(message(err))
			return TicketView{}, err
		}
		a.flash.Success(success)
		return a.view(*t), nil
	}
}

func (a *App) views(tickets []models.Ticket) []TicketView {
	caps := a.Capabilities()
	out := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		out = append(out, TicketView{Ticket: tickets[i], Actions: caps.Actions(&tickets[i])})
	}
	return out
}

func (a *App) view(t models.Ticket) TicketView {
	return TicketView{Ticket: t, Actions: a.Capabilities().Actions(&t)}
}
