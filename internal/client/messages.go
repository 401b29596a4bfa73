package client

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/example/civictickets/internal/models"
)

// message turns an error into the text shown to the user.
func message(err error) string {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		parts := make([]string, 0, len(verr.Errors))
		for _, fe := range verr.Errors {
			parts = append(parts, fe.Field+" "+fe.Message)
		}
		return "Please check the form: " + strings.Join(parts, ", ")
	case errors.Is(err, models.ErrUnauthorized):
		return "Invalid credentials or expired session"
	case errors.Is(err, models.ErrForbidden):
		return "You are not allowed to do that"
	case errors.Is(err, models.ErrConflict):
		return "The ticket changed in the meantime, reload and try again"
	case errors.Is(err, models.ErrNotFound):
		return "Ticket not found"
	case errors.Is(err, models.ErrTransport):
		return "Could not reach the server, try again"
	}
	return "Something went wrong"
}
