package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mail-sticky-go/internal/logging"
)

const (
	defaultLogLines = 80
	maxLogLines     = 1000
)

// GetLastError returns the most recent recorded failure
func (h *Handlers) GetLastError(c *gin.Context) {
	last, ok := h.diagnostics.Last()
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"message": "No errors recorded.",
		})
		return
	}
	c.JSON(http.StatusOK, last)
}

// GetErrors returns the recent failures, oldest first
func (h *Handlers) GetErrors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"errors": h.diagnostics.Entries(),
	})
}

// AISelfTest summarizes a sample message and reports how it went
func (h *Handlers) AISelfTest(c *gin.Context) {
	if !h.adapter.Enabled() {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "ai_disabled",
			Message: "AI is disabled in config (ai.enabled=false)",
			Code:    http.StatusConflict,
		})
		return
	}

	result := h.adapter.SelfTest(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// GetLogTail returns the last lines of the log file
func (h *Handlers) GetLogTail(c *gin.Context) {
	lines, err := strconv.Atoi(c.DefaultQuery("lines", strconv.Itoa(defaultLogLines)))
	if err != nil || lines < 1 {
		lines = defaultLogLines
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}

	if h.logFile == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "No log file configured",
			Code:    http.StatusNotFound,
		})
		return
	}

	tail, err := logging.Tail(h.logFile, lines)
	if err != nil {
		logrus.Errorf("Failed to read log file: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "log_error",
			Message: "Failed to read log file",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file":  h.logFile,
		"lines": tail,
	})
}
