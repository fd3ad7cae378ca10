package models

import "time"

// Default persona text applied when an agent is created without explicit
// description or instructions.
const (
	DefaultAgentDescription = "A specialized AI assistant focused on provided documents"

	DefaultAgentInstructions = "You are a helpful AI assistant that answers questions strictly based on " +
		"the provided documents. If a question is unrelated to the documents, respond with: " +
		`"I'm sorry, I can only answer questions related to the documents I was trained on." ` +
		"Never make up answers or speculate beyond the document content. " +
		"When answering, always cite which document the information came from."
)

// Agent is a tenant-scoped assistant bound to one owner and one document set.
// Every document and message belongs to exactly one agent; retrieval never
// crosses agent boundaries.
type Agent struct {
	ID           string    `gorm:"primaryKey;size:36"`
	OwnerID      string    `gorm:"size:36;not null;index"`
	Name         string    `gorm:"size:256;not null"`
	Description  string    `gorm:"type:text"`
	Instructions string    `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
