package model

import "time"

// Outcomes recorded for a processed message
const (
	OutcomeStored  = "stored"
	OutcomeDropped = "dropped"
)

// ProcessedMessage marks a mailbox UID as handled. Rows are never removed.
type ProcessedMessage struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UID         string    `json:"uid" gorm:"type:varchar(64);not null;uniqueIndex"`
	Outcome     string    `json:"outcome" gorm:"type:varchar(16);not null"`
	Label       string    `json:"label" gorm:"type:varchar(32)"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TableName specifies the table name for ProcessedMessage
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}
