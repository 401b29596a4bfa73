package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration values sourced from environment variables.
type Config struct {
	HTTPPort         string
	DatabaseURL      string
	StorageDriver    string
	SeedDemoData     bool
	DemoPassword     string
	MQURL            string
	MQTicketExchange string
	MQTicketQueue    string
	JWTSecret        string
	JWTIssuer        string
	JWTTTL           time.Duration
	CORSOrigins      []string
	LogLevel         string
	LogFormat        string
}

// Load reads a .env file when present, then environment variables, and
// produces a Config with sane defaults for local development.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}

	return Config{
		HTTPPort:         getEnv("API_HTTP_PORT", ":5000"),
		DatabaseURL:      getEnv("DATABASE_URL", "postgres://tickets:tickets@db:5432/tickets?sslmode=disable"),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", StoragePostgres)),
		SeedDemoData:     getBool("SEED_DEMO_DATA", false),
		DemoPassword:     getEnv("DEMO_PASSWORD", "demo1234"),
		MQURL:            getEnv("RABBITMQ_URL", ""),
		MQTicketExchange: getEnv("RABBITMQ_TICKET_EXCHANGE", "ticket.events"),
		MQTicketQueue:    getEnv("RABBITMQ_TICKET_QUEUE", "ticket.events.history"),
		JWTSecret:        getEnv("JWT_SECRET", "change-me-in-production-please-32b"),
		JWTIssuer:        getEnv("JWT_ISSUER", "civictickets"),
		JWTTTL:           getDuration("JWT_TTL", 24*time.Hour),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, using default")
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Dur("default", fallback).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
