package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"lock-sync-backend/internal/lock"
)

// maxWebhookBody bounds push event bodies.
const maxWebhookBody = 64 << 10

// PostWebhook handles a push event delivered by the vendor webhook.
func (h *Handler) PostWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if err := validatePayload(h.schema, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var payload lock.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.locks.HandlePayload(c.Request.Context(), payload); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PostPinWebhook handles the asynchronous result of a PIN load or delete.
func (h *Handler) PostPinWebhook(c *gin.Context) {
	var report lock.PinSyncReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notified := h.locks.HandlePinSync(report)
	c.JSON(http.StatusOK, gin.H{"notified": notified})
}
