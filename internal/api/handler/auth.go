package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatwire/backend/internal/models"
)

type tokenRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required"`
}

// IssueToken mints a token for development and test clients. A real frontend
// would obtain one from the identity provider instead.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	identity := models.Identity{
		ID:       uuid.NewString(),
		Email:    req.Email,
		Username: req.Username,
	}
	token, err := h.Auth.IssueToken(identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": identity})
}
