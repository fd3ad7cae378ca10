package models

import "time"

// Document records one successfully ingested upload. The row is immutable
// after creation; its ID doubles as the document_id tag on every vector
// entry derived from it, so deletion can purge the index without re-deriving
// associations.
type Document struct {
	ID          string    `gorm:"primaryKey;size:36"`
	AgentID     string    `gorm:"size:36;not null;index"`
	Filename    string    `gorm:"size:512;not null"`
	ContentType string    `gorm:"size:128;not null"`
	UploadedAt  time.Time
}
