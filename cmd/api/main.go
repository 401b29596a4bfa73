package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/civictickets/internal/auth"
	"github.com/example/civictickets/internal/config"
	"github.com/example/civictickets/internal/db"
	httpserver "github.com/example/civictickets/internal/http"
	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/mq"
	"github.com/example/civictickets/internal/repository"
	"github.com/example/civictickets/internal/service"
	"github.com/example/civictickets/internal/worker"
	"github.com/example/civictickets/pkg/logger"
)

type ticketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(*models.Ticket) error) (*models.Ticket, error)
}

type userStore interface {
	Create(ctx context.Context, p *models.Principal) error
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
}

type eventStore interface {
	Append(ctx context.Context, event *models.TicketEvent) error
	ListByTicket(ctx context.Context, ticketID uuid.UUID) ([]models.TicketEvent, error)
}

type stores struct {
	tickets ticketStore
	users   userStore
	events  eventStore
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStores(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("open storage")
	}

	if cfg.SeedDemoData {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Msg("hash demo password")
		}
		if err := repository.Seed(ctx, st.users, st.tickets, string(hash)); err != nil {
			log.Fatal().Err(err).Msg("seed demo data")
		}
		log.Info().Msg("demo data loaded")
	}

	eventWorker, publisher := wireEvents(ctx, cfg, st.events, log)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	ticketService := service.NewTicketService(st.tickets, st.events, st.users, publisher, clockwork.NewRealClock(), log)
	authService := service.NewAuthService(st.users, tokens, log)
	apiServer := httpserver.NewServer(ticketService, authService, log, httpserver.Options{CORSOrigins: cfg.CORSOrigins})

	if eventWorker != nil {
		go func() {
			if err := eventWorker.Run(ctx); err != nil {
				log.Error().Err(err).Msg("event worker stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           apiServer.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPPort).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	if closer, ok := publisher.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	log.Info().Msg("bye")
}

// wireEvents connects ticket events to RabbitMQ. Without a broker, events
// go straight to the history store.
func wireEvents(ctx context.Context, cfg config.Config, events eventStore, log zerolog.Logger) (*worker.EventWorker, mq.Publisher) {
	if cfg.MQURL != "" {
		publisher, err := mq.NewRabbitPublisher(cfg.MQURL, cfg.MQTicketExchange, log)
		if err == nil {
			consumer, err := mq.NewRabbitConsumer(cfg.MQURL, cfg.MQTicketExchange, cfg.MQTicketQueue, "ticket.*", log)
			if err == nil {
				return worker.NewEventWorker(consumer, events, log), publisher
			}
			log.Warn().Err(err).Msg("rabbitmq consumer unavailable, recording history in process")
			_ = publisher.Close()
		} else {
			log.Warn().Err(err).Msg("rabbitmq unavailable, recording history in process")
		}
	}
	local := worker.NewEventWorker(nil, events, log)
	return nil, mq.NewLocalPublisher(local.Handle)
}

func openStores(cfg config.Config, log zerolog.Logger) (stores, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return stores{
			tickets: repository.NewMemoryTicketRepository(),
			users:   repository.NewMemoryUserRepository(),
			events:  repository.NewMemoryEventRepository(),
		}, nil
	}

	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}
	database, err := db.New(cfg.DatabaseURL, level)
	if err != nil {
		return stores{}, err
	}
	if err := db.Migrate(database); err != nil {
		return stores{}, err
	}
	return stores{
		tickets: repository.NewTicketRepository(database),
		users:   repository.NewUserRepository(database),
		events:  repository.NewEventRepository(database),
	}, nil
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
