// Package client is the ticket front end as a library: it holds the signed-in
// session, guards routes by capability and reaches the ticket store through
// one Transport, whichever backend serves it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/example/civictickets/internal/models"
)

// Transport sends one request to the ticket API and returns the raw JSON
// response. Failures are reported with the models error sentinels; anything
// that never reached a decision of the backend is models.ErrTransport.
type Transport interface {
	Request(ctx context.Context, endpoint, method string, body any, token string) (json.RawMessage, error)
}

// HTTPTransport talks to the ticket API over HTTP.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport for the API rooted at baseURL
// (for example http://localhost:5000/api).
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Request implements Transport.
func (t *HTTPTransport) Request(ctx context.Context, endpoint, method string, body any, token string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(models.ErrTransport, "%s %s: %v", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(models.ErrTransport, "read response: %v", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, data)
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	return json.RawMessage(data), nil
}

type apiError struct {
	Error  string              `json:"error"`
	Fields []models.FieldError `json:"fields"`
}

// decodeError maps an error response back onto the error taxonomy.
func decodeError(status int, data []byte) error {
	var body apiError
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if len(body.Fields) > 0 {
			return models.NewValidationErrors(body.Fields)
		}
		return models.NewValidationError("request", body.Error)
	case http.StatusUnauthorized:
		return errors.Wrap(models.ErrUnauthorized, body.Error)
	case http.StatusForbidden:
		return errors.Wrap(models.ErrForbidden, body.Error)
	case http.StatusNotFound:
		return errors.Wrap(models.ErrNotFound, body.Error)
	case http.StatusConflict:
		return errors.Wrap(models.ErrConflict, body.Error)
	}
	return errors.Wrapf(models.ErrTransport, "status %d: %s", status, body.Error)
}
