package answer

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelworks/docent/internal/models"
)

// AppendTurn records one conversation turn. responseTime is nil for user
// turns and wall-clock seconds for assistant turns.
func (e *Engine) AppendTurn(agentID, userID, content string, isUser bool, responseTime *float64) error {
	msg := models.Message{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		UserID:       userID,
		Content:      content,
		IsUser:       isUser,
		ResponseTime: responseTime,
		CreatedAt:    time.Now(),
	}
	if err := e.db.Create(&msg).Error; err != nil {
		return fmt.Errorf("answer: append turn for agent %s: %w", agentID, err)
	}
	return nil
}

// RecentHistory returns the agent's latest n turns in chronological order.
func (e *Engine) RecentHistory(agentID string, n int) ([]models.Message, error) {
	var msgs []models.Message
	err := e.db.Where("agent_id = ?", agentID).
		Order("created_at DESC").
		Limit(n).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("answer: load history for agent %s: %w", agentID, err)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}
