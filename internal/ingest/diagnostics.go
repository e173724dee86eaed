package ingest

import (
	"sync"
	"time"
)

const DefaultDiagnosticsSize = 50

// Diagnostic is one recorded failure
type Diagnostic struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

// Diagnostics is a bounded ring of recent failures, oldest entries overwritten first
type Diagnostics struct {
	mu      sync.Mutex
	entries []Diagnostic
	next    int
	full    bool
}

func NewDiagnostics(size int) *Diagnostics {
	if size <= 0 {
		size = DefaultDiagnosticsSize
	}
	return &Diagnostics{entries: make([]Diagnostic, size)}
}

func (d *Diagnostics) Record(source string, err error) {
	if err == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[d.next] = Diagnostic{Time: time.Now(), Source: source, Message: err.Error()}
	d.next = (d.next + 1) % len(d.entries)
	if d.next == 0 {
		d.full = true
	}
}

// Last returns the most recent failure, if any
func (d *Diagnostics) Last() (Diagnostic, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.full && d.next == 0 {
		return Diagnostic{}, false
	}
	i := (d.next - 1 + len(d.entries)) % len(d.entries)
	return d.entries[i], true
}

// Entries returns the recorded failures, oldest first
func (d *Diagnostics) Entries() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.full {
		return append([]Diagnostic(nil), d.entries[:d.next]...)
	}
	out := make([]Diagnostic, 0, len(d.entries))
	out = append(out, d.entries[d.next:]...)
	return append(out, d.entries[:d.next]...)
}
