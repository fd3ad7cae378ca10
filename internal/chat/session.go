package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kestrelworks/docent/internal/models"
)

// DefaultIdleTimeout is how long the connection may stay quiet before the
// server sends a keepalive "ping". Idle periods do not end the session; only
// a failed write or a client disconnect does.
const DefaultIdleTimeout = 30 * time.Second

// Conn is the subset of *websocket.Conn the session loop needs, abstracted
// for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Answerer runs one chat query to completion.
type Answerer interface {
	Answer(ctx context.Context, agent *models.Agent, userID, query string) (string, error)
}

// Session is one live WebSocket conversation between a user and an agent.
// Queries are serialized: the loop does not pick up the next frame until
// the current answer has been written.
type Session struct {
	id      string
	userID  string
	agent   *models.Agent
	conn    Conn
	engine  Answerer
	manager *SessionManager

	idleTimeout time.Duration
}

// SessionOpts holds parameters for creating a Session. The session id must
// come from SessionManager.Register.
type SessionOpts struct {
	ID          string
	UserID      string
	Agent       *models.Agent
	Conn        Conn
	Engine      Answerer
	Manager     *SessionManager
	IdleTimeout time.Duration // defaults to DefaultIdleTimeout
}

// NewSession creates a Session.
func NewSession(opts SessionOpts) (*Session, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("chat: session: id is required")
	}
	if opts.Agent == nil {
		return nil, fmt.Errorf("chat: session: agent is required")
	}
	if opts.Conn == nil {
		return nil, fmt.Errorf("chat: session: conn is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("chat: session: engine is required")
	}
	if opts.Manager == nil {
		return nil, fmt.Errorf("chat: session: manager is required")
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Session{
		id:          opts.ID,
		userID:      opts.UserID,
		agent:       opts.Agent,
		conn:        opts.Conn,
		engine:      opts.Engine,
		manager:     opts.Manager,
		idleTimeout: idle,
	}, nil
}

// Run drives the session until the client disconnects, the context ends, or
// a write fails. Idle periods do not end the session: each idleTimeout of
// silence sends a keepalive "ping" and the loop keeps waiting. The session
// slot is always released on exit.
func (s *Session) Run(ctx context.Context) {
	defer s.manager.Release(s.userID, s.id)
	defer s.conn.Close()

	// A dedicated reader feeds frames to the loop so idle keepalives work
	// on a timer instead of read deadlines. The unbuffered channel keeps
	// frame handling serialized: the reader cannot run ahead while an
	// answer is in flight.
	frames := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- string(data):
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("chat: session %s started [user=%s agent=%s]", s.id, s.userID, s.agent.ID)

	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErr:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("chat: session %s read: %v", s.id, err)
			}
			return

		case <-idle.C:
			if err := s.write("ping"); err != nil {
				log.Printf("chat: session %s keepalive write: %v", s.id, err)
				return
			}
			idle.Reset(s.idleTimeout)

		case text := <-frames:
			if !s.handleFrame(ctx, text) {
				return
			}
			resetTimer(idle, s.idleTimeout)
		}
	}
}

// handleFrame processes one inbound frame. Keepalive traffic, whether a
// client "ping" or the reply to a server "ping", never reaches the engine.
// Returns false when the session should end.
func (s *Session) handleFrame(ctx context.Context, text string) bool {
	switch text {
	case "ping":
		return s.write("pong") == nil
	case "pong":
		// Reply to a server keepalive. Receiving it already refreshed the
		// idle timer; nothing to answer.
		return true
	}

	answer, err := s.engine.Answer(ctx, s.agent, s.userID, text)
	if err != nil {
		// The turn record already carries the failure detail; the session
		// stays up for the next query.
		log.Printf("chat: session %s query failed: %v", s.id, err)
		return s.write(fmt.Sprintf("Error: %v", err)) == nil
	}
	return s.write(answer) == nil
}

func (s *Session) write(text string) error {
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// resetTimer restarts a timer that may have fired while a frame was being
// handled.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
