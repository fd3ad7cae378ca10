package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kestrelworks/docent/internal/auth"
	"github.com/kestrelworks/docent/internal/models"
	"gorm.io/gorm"
)

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	user, err := s.auth.Register(req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	token, user, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid email or password"})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"user_id":      user.ID,
	})
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

type agentRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
}

type agentResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
}

func toAgentResponse(a *models.Agent) agentResponse {
	return agentResponse{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		Instructions: a.Instructions,
		CreatedAt:    a.CreatedAt,
	}
}

func (s *Server) handleAgentList(c *gin.Context) {
	user := currentUser(c)
	var agents []models.Agent
	if err := s.db.Where("owner_id = ?", user.ID).Order("created_at ASC").Find(&agents).Error; err != nil {
		fail(c, err)
		return
	}
	out := make([]agentResponse, len(agents))
	for i := range agents {
		out[i] = toAgentResponse(&agents[i])
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAgentCreate(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	user := currentUser(c)
	agent := models.Agent{
		ID:           uuid.NewString(),
		OwnerID:      user.ID,
		Name:         req.Name,
		Description:  req.Description,
		Instructions: req.Instructions,
	}
	if agent.Description == "" {
		agent.Description = models.DefaultAgentDescription
	}
	if agent.Instructions == "" {
		agent.Instructions = models.DefaultAgentInstructions
	}
	if err := s.db.Create(&agent).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAgentResponse(&agent))
}

// ownedAgent loads an agent scoped to the requesting user.
func (s *Server) ownedAgent(ownerID, agentID string) (*models.Agent, error) {
	var agent models.Agent
	err := s.db.Where("id = ? AND owner_id = ?", agentID, ownerID).First(&agent).Error
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func (s *Server) handleAgentGet(c *gin.Context) {
	agent, err := s.ownedAgent(currentUser(c).ID, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "agent not found"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAgentResponse(agent))
}

func (s *Server) handleAgentUpdate(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	agent, err := s.ownedAgent(currentUser(c).ID, c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "agent not found"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	agent.Name = req.Name
	if req.Description != "" {
		agent.Description = req.Description
	}
	if req.Instructions != "" {
		agent.Instructions = req.Instructions
	}
	if err := s.db.Save(agent).Error; err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toAgentResponse(agent))
}

func (s *Server) handleAgentDelete(c *gin.Context) {
	user := currentUser(c)
	if err := s.ingestor.PurgeAgent(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

type documentResponse struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func (s *Server) handleDocumentUpload(c *gin.Context) {
	agentID := c.PostForm("agent_id")
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "agent_id is required"})
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	user := currentUser(c)
	doc, err := s.ingestor.Ingest(c.Request.Context(), user.ID, agentID,
		fileHeader.Filename, contentType, f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, documentResponse{
		ID:          doc.ID,
		AgentID:     doc.AgentID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		UploadedAt:  doc.UploadedAt,
	})
}

func (s *Server) handleDocumentList(c *gin.Context) {
	agentID := c.Query("agent_id")
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "agent_id is required"})
		return
	}
	_, err := s.ownedAgent(currentUser(c).ID, agentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "agent not found"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}

	var docs []models.Document
	if err := s.db.Where("agent_id = ?", agentID).Order("uploaded_at ASC").Find(&docs).Error; err != nil {
		fail(c, err)
		return
	}
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = documentResponse{
			ID:          d.ID,
			AgentID:     d.AgentID,
			Filename:    d.Filename,
			ContentType: d.ContentType,
			UploadedAt:  d.UploadedAt,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleDocumentDelete(c *gin.Context) {
	user := currentUser(c)
	if err := s.ingestor.DeleteDocument(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
