package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Poll queues a manual ingestion cycle
func (h *Handlers) Poll(c *gin.Context) {
	if !h.scheduler.TriggerManualPoll() {
		c.JSON(http.StatusAccepted, gin.H{
			"queued":  false,
			"message": "A manual poll is already queued",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"queued":  true,
		"message": "Manual poll queued",
	})
}

// GetStatus returns the latest cycle status
func (h *Handlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Latest())
}
