package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/workflow"
)

func (s *Server) listTickets(c *gin.Context) {
	status, ok := s.statusQuery(c)
	if !ok {
		return
	}
	tickets, err := s.tickets.List(c.Request.Context(), principalFrom(c), models.TicketFilter{Status: status})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (s *Server) availableTickets(c *gin.Context) {
	tickets, err := s.tickets.Available(c.Request.Context(), principalFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (s *Server) assignedTickets(c *gin.Context) {
	status, ok := s.statusQuery(c)
	if !ok {
		return
	}
	tickets, err := s.tickets.Assigned(c.Request.Context(), principalFrom(c), status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (s *Server) getTicket(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	ticket, err := s.tickets.Get(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (s *Server) ticketHistory(c *gin.Context) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	events, err := s.tickets.History(c.Request.Context(), principalFrom(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// createTicket accepts JSON or a form post, as the report form sends either.
func (s *Server) createTicket(c *gin.Context) {
	var payload struct {
		Title       string `json:"title" form:"title"`
		Description string `json:"description" form:"description"`
		Address     string `json:"address" form:"address"`
		ImageURL    string `json:"image_url" form:"image_url"`
	}
	if err := c.ShouldBind(&payload); err != nil {
		s.writeError(c, models.NewValidationError("body", err.Error()))
		return
	}
	in := workflow.CreateInput{
		Title:       payload.Title,
		Description: payload.Description,
		Address:     payload.Address,
	}
	if payload.ImageURL != "" {
		in.ImageURL = &payload.ImageURL
	}
	ticket, err := s.tickets.Create(c.Request.Context(), principalFrom(c), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "ticket created", "ticket": ticket})
}

func (s *Server) assignTicket(c *gin.Context) {
	s.transition(c, workflow.Command{Action: models.ActionAssign}, "ticket assigned")
}

func (s *Server) completeTicket(c *gin.Context) {
	s.transition(c, workflow.Command{Action: models.ActionComplete}, "ticket completed")
}

func (s *Server) ticketFeedback(c *gin.Context) {
	var payload struct {
		Feedback string `json:"feedback" form:"feedback"`
	}
	if err := c.ShouldBind(&payload); err != nil {
		s.writeError(c, models.NewValidationError("body", err.Error()))
		return
	}
	s.transition(c, workflow.Command{Action: models.ActionAddFeedback, Feedback: payload.Feedback}, "feedback recorded")
}

// ticketStatus is the generic status endpoint: the requested status becomes
// whichever command the caller's role entitles it to.
func (s *Server) ticketStatus(c *gin.Context) {
	var payload struct {
		Status            string `json:"status" form:"status"`
		AssignedCompanyID string `json:"assigned_company_id" form:"assigned_company_id"`
	}
	if err := c.ShouldBind(&payload); err != nil {
		s.writeError(c, models.NewValidationError("body", err.Error()))
		return
	}
	status, err := models.ParseTicketStatus(payload.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	cmd, err := workflow.ActionForStatus(principalFrom(c), status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if raw := strings.TrimSpace(payload.AssignedCompanyID); raw != "" {
		if cmd.Action != models.ActionAdminOverride {
			s.writeError(c, models.NewValidationError("assigned_company_id", "can only be chosen by an admin"))
			return
		}
		orgID, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(c, models.NewValidationError("assigned_company_id", "must be a UUID"))
			return
		}
		cmd.AssignTo = &models.Principal{ID: orgID}
	}
	s.transition(c, cmd, "status updated")
}

func (s *Server) transition(c *gin.Context, cmd workflow.Command, message string) {
	id, ok := s.ticketID(c)
	if !ok {
		return
	}
	ticket, err := s.tickets.Transition(c.Request.Context(), id, cmd, principalFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "ticket": ticket})
}

func (s *Server) ticketID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.writeError(c, models.NewValidationError("id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// statusQuery reads ?status=, which only accepts the stored literals.
func (s *Server) statusQuery(c *gin.Context) (*models.TicketStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status := models.TicketStatus(raw)
	if !status.IsValid() {
		s.writeError(c, models.NewValidationError("status", "must be one of aberto, em andamento, resolvido"))
		return nil, false
	}
	return &status, true
}
