package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/service"
	"github.com/example/civictickets/internal/workflow"
)

type ticketService interface {
	Create(ctx context.Context, actor *models.Principal, in workflow.CreateInput) (*models.Ticket, error)
	List(ctx context.Context, actor *models.Principal, filter models.TicketFilter) ([]models.Ticket, error)
	Available(ctx context.Context, actor *models.Principal) ([]models.Ticket, error)
	Assigned(ctx context.Context, actor *models.Principal, status *models.TicketStatus) ([]models.Ticket, error)
	Get(ctx context.Context, actor *models.Principal, id uuid.UUID) (*models.Ticket, error)
	Transition(ctx context.Context, id uuid.UUID, cmd workflow.Command, actor *models.Principal) (*models.Ticket, error)
	History(ctx context.Context, actor *models.Principal, id uuid.UUID) ([]models.TicketEvent, error)
}

type authService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.Principal, error)
	Login(ctx context.Context, email, password string) (string, *models.Principal, error)
	Authenticate(ctx context.Context, token string) (*models.Principal, error)
}

// Options tunes the HTTP layer.
type Options struct {
	CORSOrigins []string
}

// Server wraps the gin engine and collaborators needed to handle API requests.
type Server struct {
	Engine  *gin.Engine
	tickets ticketService
	auth    authService
	log     zerolog.Logger
}

// NewServer constructs a new API server and registers routes.
func NewServer(tickets ticketService, auth authService, log zerolog.Logger, opts Options) *Server {
	router := gin.New()
	router.Use(requestID(), requestLogger(log), gin.Recovery())
	if len(opts.CORSOrigins) > 0 {
		router.Use(corsMiddleware(opts.CORSOrigins))
	}
	srv := &Server{Engine: router, tickets: tickets, auth: auth, log: log.With().Str("component", "http").Logger()}
	srv.registerRoutes()
	return srv
}

// ServeHTTP lets the server be mounted as a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	api := s.Engine.Group("/api")
	api.GET("/health", s.health)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	tickets := api.Group("/tickets", s.authenticate())
	tickets.GET("", s.listTickets)
	tickets.POST("", s.createTicket)
	tickets.GET("/available", s.availableTickets)
	tickets.GET("/assigned", s.assignedTickets)
	tickets.GET("/:id", s.getTicket)
	tickets.GET("/:id/history", s.ticketHistory)
	tickets.PATCH("/:id/assign", s.assignTicket)
	tickets.PATCH("/:id/assume", s.assignTicket)
	tickets.PATCH("/:id/complete", s.completeTicket)
	tickets.PATCH("/:id/feedback", s.ticketFeedback)
	tickets.PATCH("/:id/status", s.ticketStatus)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
