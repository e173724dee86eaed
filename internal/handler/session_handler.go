package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	sessionPrefix    = "session."
	maxSessionKeyLen = 100
)

// GetSessionValue returns a stored session value such as window geometry
func (h *Handlers) GetSessionValue(c *gin.Context) {
	key, ok := sessionKey(c)
	if !ok {
		return
	}

	value, found, err := h.repo.GetMetadata(c.Request.Context(), key)
	if err != nil {
		logrus.Errorf("Failed to read session value: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch session value",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Session value not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":   c.Param("key"),
		"value": value,
	})
}

// PutSessionValue stores a session value
func (h *Handlers) PutSessionValue(c *gin.Context) {
	key, ok := sessionKey(c)
	if !ok {
		return
	}

	var req SessionValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if err := h.repo.SaveMetadata(c.Request.Context(), key, *req.Value); err != nil {
		logrus.Errorf("Failed to save session value: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to save session value",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":   c.Param("key"),
		"value": *req.Value,
	})
}

// sessionKey namespaces the path key so clients cannot touch internal metadata
func sessionKey(c *gin.Context) (string, bool) {
	key := c.Param("key")
	if key == "" || len(key) > maxSessionKeyLen {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_key",
			Message: "Invalid session key",
			Code:    http.StatusBadRequest,
		})
		return "", false
	}
	return sessionPrefix + key, true
}
