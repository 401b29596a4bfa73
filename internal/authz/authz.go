// Package authz derives what a principal may see and do. Capabilities are
// computed from the principal on every call and are never stored.
package authz

import (
	"strings"

	"github.com/google/uuid"

	"github.com/example/civictickets/internal/models"
)

// Routes of the web front end.
const (
	RouteHome         = "/"
	RouteLogin        = "/login"
	RouteRegister     = "/register"
	RouteDashboard    = "/dashboard"
	RouteCreateTicket = "/create-ticket"
	RouteTicketPrefix = "/tickets/"
)

// Capabilities is an immutable snapshot of a principal's permissions.
type Capabilities struct {
	principalID uuid.UUID
	role        models.Role

	Authenticated   bool
	CreateTickets   bool
	ViewAllTickets  bool
	ViewOpenTickets bool
	AssignTickets   bool
	CompleteTickets bool
	SubmitFeedback  bool
	OverrideStatus  bool
}

// For derives the capabilities of p. A nil or malformed principal yields the
// anonymous capability set; For never fails.
func For(p *models.Principal) Capabilities {
	if p == nil || p.Validate() != nil {
		return Capabilities{}
	}
	c := Capabilities{principalID: p.ID, role: p.Role, Authenticated: true}
	switch p.Role {
	case models.RoleCitizen:
		c.CreateTickets = true
		c.SubmitFeedback = true
	case models.RoleOrganization:
		c.ViewOpenTickets = true
		c.AssignTickets = true
		c.CompleteTickets = true
	case models.RoleAdmin:
		c.ViewAllTickets = true
		c.ViewOpenTickets = true
		c.CompleteTickets = true
		c.OverrideStatus = true
	}
	return c
}

// PrincipalID returns the id the capabilities were derived for.
func (c Capabilities) PrincipalID() uuid.UUID { return c.principalID }

// Role returns the role the capabilities were derived for.
func (c Capabilities) Role() models.Role { return c.role }

// IsAdmin reports whether ownership checks are bypassed.
func (c Capabilities) IsAdmin() bool { return c.Authenticated && c.role == models.RoleAdmin }

// IsCreator reports whether the principal filed t.
func (c Capabilities) IsCreator(t *models.Ticket) bool {
	return c.Authenticated && t.UserID == c.principalID
}

// HoldsAssignment reports whether the principal is the organization assigned to t.
func (c Capabilities) HoldsAssignment(t *models.Ticket) bool {
	return c.Authenticated && t.IsAssignedTo(c.principalID)
}

// CanViewTicket reports whether t is visible to the principal.
func (c Capabilities) CanViewTicket(t *models.Ticket) bool {
	switch {
	case !c.Authenticated:
		return false
	case c.ViewAllTickets:
		return true
	case c.role == models.RoleOrganization:
		return t.Status == models.TicketStatusOpen || c.HoldsAssignment(t)
	default:
		return c.IsCreator(t)
	}
}

// CanComplete reports whether the principal may resolve t in its current state.
func (c Capabilities) CanComplete(t *models.Ticket) bool {
	if !c.CompleteTickets || t.Status != models.TicketStatusInProgress {
		return false
	}
	return c.IsAdmin() || c.HoldsAssignment(t)
}

// CanAssign reports whether the principal may claim t in its current state.
func (c Capabilities) CanAssign(t *models.Ticket) bool {
	return c.AssignTickets && t.IsAvailable()
}

// CanAddFeedback reports whether the principal may leave feedback on t now.
func (c Capabilities) CanAddFeedback(t *models.Ticket) bool {
	return c.SubmitFeedback && c.IsCreator(t) && t.Status == models.TicketStatusResolved && t.Feedback == ""
}

// Actions lists the transitions the principal can trigger on t right now.
func (c Capabilities) Actions(t *models.Ticket) []models.Action {
	var out []models.Action
	if c.CanAssign(t) {
		out = append(out, models.ActionAssign)
	}
	if c.CanComplete(t) {
		out = append(out, models.ActionComplete)
	}
	if c.CanAddFeedback(t) {
		out = append(out, models.ActionAddFeedback)
	}
	if c.OverrideStatus {
		out = append(out, models.ActionAdminOverride)
	}
	return out
}

// Scope narrows a requested filter to what the principal may list. Filters
// that cannot be expressed as a TicketFilter (organizations see open tickets
// plus their own) are finished with CanViewTicket.
func (c Capabilities) Scope(f models.TicketFilter) models.TicketFilter {
	if c.Authenticated && c.role == models.RoleCitizen {
		id := c.principalID
		f.OwnerID = &id
	}
	return f
}

// Route resolves a front-end path for the principal. It returns the path to
// render and whether that is the requested one or a redirect.
func (c Capabilities) Route(path string) (string, bool) {
	switch {
	case path == RouteHome:
		return path, true
	case path == RouteLogin || path == RouteRegister:
		if c.Authenticated {
			return RouteDashboard, false
		}
		return path, true
	case path == RouteDashboard:
		if !c.Authenticated {
			return RouteLogin, false
		}
		return path, true
	case path == RouteCreateTicket:
		if !c.Authenticated {
			return RouteLogin, false
		}
		if !c.CreateTickets {
			return RouteDashboard, false
		}
		return path, true
	case strings.HasPrefix(path, RouteTicketPrefix) && len(path) > len(RouteTicketPrefix):
		if !c.Authenticated {
			return RouteLogin, false
		}
		return path, true
	}
	return RouteHome, false
}
