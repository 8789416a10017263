// Package handler wires the HTTP surface: the websocket upgrade endpoint and
// the REST endpoints for message history and moderation.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatwire/backend/internal/auth"
	"chatwire/backend/internal/chathub"
	"chatwire/backend/internal/models"
	"chatwire/backend/internal/storage"
)

type Handler struct {
	Hub     *chathub.Hub
	Auth    *auth.Verifier
	Storage *storage.Service
}

func New(hub *chathub.Hub, verifier *auth.Verifier, store *storage.Service) *Handler {
	return &Handler{Hub: hub, Auth: verifier, Storage: store}
}

// bearerToken extracts the token from the Authorization header or, for
// websocket clients that cannot set headers, from the token query parameter.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return c.Query("token")
}

// requireIdentity verifies the request's token, writing a 401 on failure.
func (h *Handler) requireIdentity(c *gin.Context) (models.Identity, bool) {
	identity, err := h.Auth.VerifyToken(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return models.Identity{}, false
	}
	return identity, true
}

// renderError maps the error taxonomy onto HTTP status codes.
func renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
