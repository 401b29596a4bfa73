package client

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/example/civictickets/internal/models"
)

// HybridTransport prefers the primary backend and falls back to the
// secondary one when the primary cannot be reached. Answers from the
// primary, errors included, are returned as is.
//
// Sessions are not shared between the two backends: a token issued by one
// is rejected by the other.
type HybridTransport struct {
	primary  Transport
	fallback Transport
	log      zerolog.Logger
}

// NewHybridTransport combines primary and fallback.
func NewHybridTransport(primary, fallback Transport, log zerolog.Logger) *HybridTransport {
	return &HybridTransport{primary: primary, fallback: fallback, log: log.With().Str("component", "hybrid_transport").Logger()}
}

// Request implements Transport.
func (t *HybridTransport) Request(ctx context.Context, endpoint, method string, body any, token string) (json.RawMessage, error) {
	resp, err := t.primary.Request(ctx, endpoint, method, body, token)
	if err == nil || !errors.Is(err, models.ErrTransport) {
		return resp, err
	}
	if ctx.Err() != nil {
		return nil, err
	}
	t.log.Warn().Err(err).Str("endpoint", endpoint).Str("method", method).Msg("api unavailable, using mock data")
	resp, fallbackErr := t.fallback.Request(ctx, endpoint, method, body, token)
	if token != "" && errors.Is(fallbackErr, models.ErrUnauthorized) {
		// The fallback never issued this token; the outage is what the
		// caller needs to see.
		return nil, err
	}
	return resp, fallbackErr
}
