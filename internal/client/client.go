package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/workflow"
)

// RegisterRequest is the payload of a registration.
type RegisterRequest struct {
	Name            string              `json:"name"`
	Email           string              `json:"email"`
	Password        string              `json:"password"`
	ConfirmPassword string              `json:"confirm_password"`
	Document        string              `json:"document"`
	DocumentType    models.DocumentType `json:"document_type"`
}

// Client is the ticket gateway of the front end. Every call carries the
// session token; mutations on the same ticket that are already in flight
// are not sent twice.
type Client struct {
	transport Transport
	session   *Session
	inflight  singleflight.Group
	log       zerolog.Logger
}

// New builds a client over transport and session.
func New(transport Transport, session *Session, log zerolog.Logger) *Client {
	return &Client{transport: transport, session: session, log: log.With().Str("component", "client").Logger()}
}

// Session returns the session the client signs requests with.
func (c *Client) Session() *Session { return c.session }

// Login authenticates and starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Principal, error) {
	var missing []models.FieldError
	if strings.TrimSpace(email) == "" {
		missing = append(missing, models.FieldError{Field: "email", Message: "is required"})
	}
	if password == "" {
		missing = append(missing, models.FieldError{Field: "password", Message: "is required"})
	}
	if len(missing) > 0 {
		return nil, models.NewValidationErrors(missing)
	}

	var resp struct {
		Token string            `json:"token"`
		User  *models.Principal `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, "/auth/login", http.MethodPost, body, "", &resp); err != nil {
		return nil, err
	}
	if err := c.session.Begin(resp.Token, resp.User); err != nil {
		return nil, err
	}
	c.log.Info().Str("principal_id", resp.User.ID.String()).Str("role", resp.User.Role.String()).Msg("signed in")
	return resp.User, nil
}

// Logout ends the session.
func (c *Client) Logout() error {
	return c.session.End()
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*models.Principal, error) {
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return nil, models.NewValidationError("confirm_password", "does not match")
	}
	var resp struct {
		User *models.Principal `json:"user"`
	}
	if err := c.call(ctx, "/auth/register", http.MethodPost, req, "", &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// ListTickets returns the dashboard tickets of the signed-in principal.
func (c *Client) ListTickets(ctx context.Context, status *models.TicketStatus) ([]models.Ticket, error) {
	return c.tickets(ctx, "/tickets"+statusQuery(status))
}

// Available returns the open tickets nobody has claimed yet.
func (c *Client) Available(ctx context.Context) ([]models.Ticket, error) {
	return c.tickets(ctx, "/tickets/available")
}

// Assigned returns the tickets held by the signed-in organization.
func (c *Client) Assigned(ctx context.Context, status *models.TicketStatus) ([]models.Ticket, error) {
	return c.tickets(ctx, "/tickets/assigned"+statusQuery(status))
}

// GetTicket fetches one ticket.
func (c *Client) GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	snap, err := c.signedIn()
	if err != nil {
		return nil, err
	}
	var resp struct {
		Ticket *models.Ticket `json:"ticket"`
	}
	if err := c.call(ctx, "/tickets/"+id.String(), http.MethodGet, nil, snap.Token, &resp); err != nil {
		return nil, err
	}
	return resp.Ticket, nil
}

// History returns the recorded events of a ticket.
func (c *Client) History(ctx context.Context, id uuid.UUID) ([]models.TicketEvent, error) {
	snap, err := c.signedIn()
	if err != nil {
		return nil, err
	}
	var resp struct {
		Events []models.TicketEvent `json:"events"`
	}
	if err := c.call(ctx, "/tickets/"+id.String()+"/history", http.MethodGet, nil, snap.Token, &resp); err != nil {
		return nil, err
	}
	if resp.Events == nil {
		resp.Events = []models.TicketEvent{}
	}
	return resp.Events, nil
}

// CreateTicket files a report. Missing fields and a role without the
// create capability are rejected before anything is sent.
func (c *Client) CreateTicket(ctx context.Context, in workflow.CreateInput) (*models.Ticket, error) {
	snap, err := c.signedIn()
	if err != nil {
		return nil, err
	}
	if !snap.Capabilities.CreateTickets {
		return nil, errors.Wrapf(models.ErrForbidden, "role %s cannot create tickets", snap.Capabilities.Role())
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	body := map[string]string{
		"title":       in.Title,
		"description": in.Description,
		"address":     in.Address,
	}
	if in.ImageURL != nil {
		body["image_url"] = *in.ImageURL
	}
	var resp struct {
		Ticket *models.Ticket `json:"ticket"`
	}
	if err := c.call(ctx, "/tickets", http.MethodPost, body, snap.Token, &resp); err != nil {
		return nil, err
	}
	return resp.Ticket, nil
}

// Assign claims an open ticket for the signed-in organization.
func (c *Client) Assign(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return c.mutate(ctx, models.ActionAssign, id, "/assign", nil)
}

// Complete resolves an in-progress ticket.
func (c *Client) Complete(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	return c.mutate(ctx, models.ActionComplete, id, "/complete", nil)
}

// AddFeedback leaves the creator's feedback on a resolved ticket.
func (c *Client) AddFeedback(ctx context.Context, id uuid.UUID, feedback string) (*models.Ticket, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, models.NewValidationError("feedback", "is required")
	}
	return c.mutate(ctx, models.ActionAddFeedback, id, "/feedback", map[string]string{"feedback": feedback})
}

// Override forces a status as admin. orgID optionally names the
// organization to hold the ticket.
func (c *Client) Override(ctx context.Context, id uuid.UUID, status models.TicketStatus, orgID *uuid.UUID) (*models.Ticket, error) {
	if !status.IsValid() {
		return nil, models.NewValidationError("status", "must be one of aberto, em andamento, resolvido")
	}
	body := map[string]string{"status": status.String()}
	if orgID != nil {
		body["assigned_company_id"] = orgID.String()
	}
	return c.mutate(ctx, models.ActionAdminOverride, id, "/status", body)
}

func (c *Client) mutate(ctx context.Context, action models.Action, id uuid.UUID, suffix string, body any) (*models.Ticket, error) {
	snap, err := c.signedIn()
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%s", action, id)
	v, err, shared := c.inflight.Do(key, func() (any, error) {
		var resp struct {
			Ticket *models.Ticket `json:"ticket"`
		}
		if err := c.call(ctx, "/tickets/"+id.String()+suffix, http.MethodPatch, body, snap.Token, &resp); err != nil {
			return nil, err
		}
		if resp.Ticket == nil {
			return nil, errors.Wrap(models.ErrTransport, "response carries no ticket")
		}
		return resp.Ticket, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug().Str("key", key).Msg("joined in-flight request")
	}
	t := v.(*models.Ticket).Clone()
	return &t, nil
}

func (c *Client) tickets(ctx context.Context, endpoint string) ([]models.Ticket, error) {
	snap, err := c.signedIn()
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tickets []models.Ticket `json:"tickets"`
	}
	if err := c.call(ctx, endpoint, http.MethodGet, nil, snap.Token, &resp); err != nil {
		return nil, err
	}
	if resp.Tickets == nil {
		resp.Tickets = []models.Ticket{}
	}
	return resp.Tickets, nil
}

func (c *Client) signedIn() (Snapshot, error) {
	snap := c.session.Snapshot()
	if !snap.Capabilities.Authenticated || snap.Token == "" {
		return snap, errors.Wrap(models.ErrUnauthorized, "not signed in")
	}
	return snap, nil
}

func (c *Client) call(ctx context.Context, endpoint, method string, body any, token string, out any) error {
	raw, err := c.transport.Request(ctx, endpoint, method, body, token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(models.ErrTransport, "decode %s response: %v", endpoint, err)
	}
	return nil
}

func statusQuery(status *models.TicketStatus) string {
	if status == nil {
		return ""
	}
	return "?status=" + url.QueryEscape(status.String())
}
