package model

import "time"

// PendingMessage is a UID whose fetch or store failed and will be retried
type PendingMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UID       uint32    `json:"uid" gorm:"not null;uniqueIndex"`
	Attempts  int       `json:"attempts" gorm:"not null;default:0"`
	LastError string    `json:"last_error" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for PendingMessage
func (PendingMessage) TableName() string {
	return "pending_messages"
}
