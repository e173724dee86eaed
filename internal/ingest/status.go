package ingest

import (
	"sync"
	"time"
)

const (
	StatusIMAPOff = "IMAP OFF"
	StatusIMAPErr = "IMAP ERR"
	StatusNoNew   = "OK (no new)"
	StatusIdle    = "Idle"
)

// Status is the most recent cycle outcome
type Status struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusBoard keeps only the latest status; readers never see a backlog.
type StatusBoard struct {
	mu      sync.RWMutex
	current Status
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{current: Status{Text: StatusIdle, UpdatedAt: time.Now()}}
}

func (b *StatusBoard) Set(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = Status{Text: text, UpdatedAt: time.Now()}
}

func (b *StatusBoard) Latest() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}
