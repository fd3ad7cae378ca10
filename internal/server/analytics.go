package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kestrelworks/docent/internal/models"
	"gorm.io/gorm"
)

// OverviewStats is the account-wide analytics rollup.
type OverviewStats struct {
	TotalAgents    int64 `json:"total_agents"`
	ActiveAgents7d int64 `json:"active_agents_7d"`
	QueriesToday   int64 `json:"queries_today"`
	TotalDocuments int64 `json:"total_documents"`
	ActiveSessions int   `json:"active_sessions"`
}

// AgentStats is the per-agent analytics rollup.
type AgentStats struct {
	AgentID         string   `json:"agent_id"`
	MessageCount    int64    `json:"message_count"`
	QueryCount      int64    `json:"query_count"`
	DocumentCount   int64    `json:"document_count"`
	AvgResponseTime *float64 `json:"avg_response_time"`
}

// overviewStats aggregates account-wide counters for one owner.
func overviewStats(db *gorm.DB, ownerID string) (*OverviewStats, error) {
	var stats OverviewStats

	if err := db.Model(&models.Agent{}).
		Where("owner_id = ?", ownerID).
		Count(&stats.TotalAgents).Error; err != nil {
		return nil, err
	}

	weekAgo := time.Now().AddDate(0, 0, -7)
	if err := db.Model(&models.Message{}).
		Joins("JOIN agents ON agents.id = messages.agent_id").
		Where("agents.owner_id = ? AND messages.created_at > ?", ownerID, weekAgo).
		Distinct("messages.agent_id").
		Count(&stats.ActiveAgents7d).Error; err != nil {
		return nil, err
	}

	// Local midnight, the same day boundary the nightly usage rollup uses.
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.Message{}).
		Joins("JOIN agents ON agents.id = messages.agent_id").
		Where("agents.owner_id = ? AND messages.is_user = ? AND messages.created_at >= ?",
			ownerID, true, midnight).
		Count(&stats.QueriesToday).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Document{}).
		Joins("JOIN agents ON agents.id = documents.agent_id").
		Where("agents.owner_id = ?", ownerID).
		Count(&stats.TotalDocuments).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}

// agentStats aggregates per-agent counters.
func agentStats(db *gorm.DB, agentID string) (*AgentStats, error) {
	stats := AgentStats{AgentID: agentID}

	if err := db.Model(&models.Message{}).
		Where("agent_id = ?", agentID).
		Count(&stats.MessageCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Message{}).
		Where("agent_id = ? AND is_user = ?", agentID, true).
		Count(&stats.QueryCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Document{}).
		Where("agent_id = ?", agentID).
		Count(&stats.DocumentCount).Error; err != nil {
		return nil, err
	}

	var avg *float64
	err := db.Model(&models.Message{}).
		Where("agent_id = ? AND response_time IS NOT NULL", agentID).
		Select("AVG(response_time)").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	stats.AvgResponseTime = avg

	return &stats, nil
}

func (s *Server) handleAnalyticsOverview(c *gin.Context) {
	user := currentUser(c)
	stats, err := overviewStats(s.db, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	stats.ActiveSessions = s.sessions.Active()
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleAnalyticsAgent(c *gin.Context) {
	user := currentUser(c)
	agentID := c.Param("agent_id")
	if _, err := s.ownedAgent(user.ID, agentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "agent not found"})
			return
		}
		fail(c, err)
		return
	}
	stats, err := agentStats(s.db, agentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
