package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mail-sticky-go/internal/lifecycle"
	"mail-sticky-go/internal/repository"
)

// ListNotes returns the active notes, archiving those past retention first
func (h *Handlers) ListNotes(c *gin.Context) {
	retention := h.retention
	if raw := c.Query("retention"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "Invalid retention duration",
				Code:    http.StatusBadRequest,
			})
			return
		}
		retention = d
	}

	view, err := h.lifecycle.ListActive(c.Request.Context(), retention)
	if err != nil {
		logrus.Errorf("Failed to list notes: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch notes",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	response := NotesResponse{
		Notes:          make([]NoteResponse, 0, len(view.Records)),
		ActiveCount:    view.ActiveCount,
		CompletedCount: view.CompletedCount,
	}
	for i := range view.Records {
		response.Notes = append(response.Notes, toNoteResponse(&view.Records[i]))
	}

	c.JSON(http.StatusOK, response)
}

// CreateNote adds a note by hand
func (h *Handlers) CreateNote(c *gin.Context) {
	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	rec, err := h.lifecycle.AddManualRecord(c.Request.Context(), req.Text, req.Subject, req.Snippet)
	if errors.Is(err, lifecycle.ErrEmptyText) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Note text must not be blank",
			Code:    http.StatusBadRequest,
		})
		return
	}
	if err != nil {
		logrus.Errorf("Failed to create note: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to create note",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusCreated, toNoteResponse(rec))
}

// CompleteNote marks a note done or reopens it
func (h *Handlers) CompleteNote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req CompleteNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	if err := h.lifecycle.ToggleCompleted(c.Request.Context(), id, *req.Done); err != nil {
		writeStoreError(c, err, "Failed to update note")
		return
	}

	rec, err := h.repo.GetRecord(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err, "Failed to fetch note")
		return
	}

	c.JSON(http.StatusOK, toNoteResponse(rec))
}

// DeleteNote removes a note permanently
func (h *Handlers) DeleteNote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.Delete(c.Request.Context(), id); err != nil {
		writeStoreError(c, err, "Failed to delete note")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Note deleted successfully",
	})
}

// ArchiveCompleted archives every completed note now
func (h *Handlers) ArchiveCompleted(c *gin.Context) {
	archived, err := h.lifecycle.ArchiveAllCompletedNow(c.Request.Context())
	if err != nil {
		logrus.Errorf("Failed to archive completed notes: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to archive completed notes",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"archived": archived,
	})
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid note ID",
			Code:    http.StatusBadRequest,
		})
		return 0, false
	}
	return uint(id), true
}

func writeStoreError(c *gin.Context, err error, message string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Note not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	logrus.Errorf("%s: %v", message, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "database_error",
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}
