package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/example/civictickets/internal/models"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []models.FieldError `json:"fields,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Error()
		resp.Fields = verr.Errors
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", c.GetString(ctxRequestID)).Msg("request failed")
		resp.Error = "internal server error"
	}
	c.JSON(status, resp)
}
