package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kestrelworks/docent/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token auth happens after the upgrade; origin enforcement is the
	// deployment proxy's job.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleChatSocket upgrades the connection, authenticates the query token,
// and runs the session loop until the client disconnects. Auth and ownership
// failures close the socket with a policy-violation code; the upgrade itself
// is never refused with an HTTP status once the handshake has started.
func (s *Server) handleChatSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("server: ws upgrade: %v", err)
		return
	}

	user, err := s.auth.UserFromToken(c.Query("token"))
	if err != nil {
		policyClose(conn, "invalid or expired token")
		return
	}

	agent, err := s.ownedAgent(user.ID, c.Param("agent_id"))
	if err != nil {
		policyClose(conn, "agent not found")
		return
	}

	sessionID, err := s.sessions.Register(user.ID)
	if err != nil {
		policyClose(conn, "session limit reached")
		return
	}

	session, err := chat.NewSession(chat.SessionOpts{
		ID:          sessionID,
		UserID:      user.ID,
		Agent:       agent,
		Conn:        conn,
		Engine:      s.engine,
		Manager:     s.sessions,
		IdleTimeout: s.idleTimeout,
	})
	if err != nil {
		s.sessions.Release(user.ID, sessionID)
		conn.Close()
		log.Printf("server: ws session setup: %v", err)
		return
	}

	// Blocks for the lifetime of the connection; Run releases the slot and
	// closes the socket on exit.
	session.Run(c.Request.Context())
}

// policyClose sends a 1008 close frame and drops the connection.
func policyClose(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	conn.WriteMessage(websocket.CloseMessage, msg)
	conn.Close()
}
