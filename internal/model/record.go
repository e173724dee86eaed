package model

import (
	"fmt"
	"time"
)

// Record is a note derived from a mailbox message or added by hand
type Record struct {
	ID              uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	SourceMessageID *string    `json:"source_message_id,omitempty" gorm:"type:varchar(64);uniqueIndex"`
	Subject         string     `json:"subject" gorm:"type:text"`
	Snippet         string     `json:"snippet" gorm:"type:text"`
	Sender          string     `json:"sender" gorm:"type:varchar(255)"`
	Received        string     `json:"received" gorm:"type:varchar(32)"`
	Summary         string     `json:"summary" gorm:"type:text"`
	Text            string     `json:"text" gorm:"type:text;not null"`
	CreatedAt       time.Time  `json:"created_at"`
	Completed       bool       `json:"completed" gorm:"not null;default:false;index"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for Record
func (Record) TableName() string {
	return "records"
}

// ComposeText renders the note line shown for an ingested message.
func ComposeText(sender, received, summary string) string {
	return fmt.Sprintf("From: %s | Received: %s | Summary: %s", sender, received, summary)
}

// DisplayText returns the note body composed from its parts, or the stored text for
// records that were added by hand.
func (r *Record) DisplayText() string {
	if r.SourceMessageID == nil || r.Summary == "" {
		return r.Text
	}
	return ComposeText(r.Sender, r.Received, r.Summary)
}
