package handler

import (
	"time"

	"mail-sticky-go/internal/model"
)

// CreateNoteRequest represents the request structure for adding a note by hand
type CreateNoteRequest struct {
	Text    string `json:"text" binding:"required"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
}

// CompleteNoteRequest represents the request structure for toggling completion
type CompleteNoteRequest struct {
	Done *bool `json:"done" binding:"required"`
}

// SessionValueRequest represents the request structure for storing a session value
type SessionValueRequest struct {
	Value *string `json:"value" binding:"required"`
}

// NoteResponse represents the response structure for a note
type NoteResponse struct {
	ID              uint       `json:"id"`
	Text            string     `json:"text"`
	Sender          string     `json:"sender,omitempty"`
	Received        string     `json:"received,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	Subject         string     `json:"subject"`
	Snippet         string     `json:"snippet"`
	SourceMessageID *string    `json:"source_message_id,omitempty"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NotesResponse represents the active note list with its counts
type NotesResponse struct {
	Notes          []NoteResponse `json:"notes"`
	ActiveCount    int64          `json:"active_count"`
	CompletedCount int64          `json:"completed_count"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func toNoteResponse(rec *model.Record) NoteResponse {
	return NoteResponse{
		ID:              rec.ID,
		Text:            rec.DisplayText(),
		Sender:          rec.Sender,
		Received:        rec.Received,
		Summary:         rec.Summary,
		Subject:         rec.Subject,
		Snippet:         rec.Snippet,
		SourceMessageID: rec.SourceMessageID,
		Completed:       rec.Completed,
		CompletedAt:     rec.CompletedAt,
		CreatedAt:       rec.CreatedAt,
	}
}
