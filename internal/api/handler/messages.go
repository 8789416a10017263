package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetRoomMessages returns a page of a room's history, oldest first.
func (h *Handler) GetRoomMessages(c *gin.Context) {
	identity, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	roomID := c.Param("id")

	if err := h.Storage.Authorize(c.Request.Context(), roomID, identity.ID); err != nil {
		renderError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.Storage.ListRoomMessages(c.Request.Context(), roomID, limit, offset)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type updateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// UpdateMessage edits a message's content. Only the sender may edit, and the
// edited message is re-broadcast to the room.
func (h *Handler) UpdateMessage(c *gin.Context) {
	identity, ok := h.requireIdentity(c)
	if !ok {
		return
	}

	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	msg, err := h.Hub.Pipeline.Edit(c.Request.Context(), c.Param("id"), identity, req.Content)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes a message and its attachments. Sender only.
func (h *Handler) DeleteMessage(c *gin.Context) {
	identity, ok := h.requireIdentity(c)
	if !ok {
		return
	}

	if err := h.Hub.Pipeline.Delete(c.Request.Context(), c.Param("id"), identity); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
