package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/visibility/internal/domain"
)

// ErrorResponse is the JSON error body for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, message string, details ...string) {
	resp := ErrorResponse{Error: message}
	if len(details) > 0 {
		resp.Details = details[0]
	}
	c.JSON(status, resp)
}

// respondDomainError maps domain sentinel errors onto HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(c, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidDomain):
		respondError(c, http.StatusBadRequest, "invalid domain", err.Error())
	case errors.Is(err, domain.ErrNoIntents):
		respondError(c, http.StatusUnprocessableEntity, "no intents could be generated")
	case errors.Is(err, domain.ErrFeatureDisabled):
		respondError(c, http.StatusForbidden, domain.ErrFeatureDisabled.Error())
	case errors.Is(err, domain.ErrDomainMismatch):
		respondError(c, http.StatusBadRequest, "domain mismatch", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal error", err.Error())
	}
}
