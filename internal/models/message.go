package models

import "time"

// Message is one conversation turn for an agent. Rows are append-only and
// ordered by CreatedAt; the most recent window is re-read chronologically to
// rebuild dialogue context. ResponseTime is set on assistant turns only and
// holds wall-clock seconds from query receipt to answer.
type Message struct {
	ID           string    `gorm:"primaryKey;size:36"`
	AgentID      string    `gorm:"size:36;not null;index"`
	UserID       string    `gorm:"size:36;not null"`
	Content      string    `gorm:"type:text"`
	IsUser       bool      `gorm:"not null"`
	ResponseTime *float64
	CreatedAt    time.Time `gorm:"index"`
}
