// Package chat manages live WebSocket conversations: a per-user session
// registry with a hard cap, and the session loop that serializes queries
// through the answer engine.
package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxPerUser caps concurrent sessions per user.
const DefaultMaxPerUser = 5

// ErrSessionLimit is returned when a user already holds the maximum number
// of concurrent sessions. The caller rejects the connection; registrations
// are never queued.
var ErrSessionLimit = errors.New("chat: session limit reached")

// SessionManager tracks active chat sessions per user. All session
// registration and eviction goes through it.
type SessionManager struct {
	mu         sync.Mutex
	sessions   map[string]map[string]struct{} // userID -> session ids
	maxPerUser int
}

// SessionManagerOpts holds parameters for creating a SessionManager.
type SessionManagerOpts struct {
	MaxPerUser int // defaults to DefaultMaxPerUser
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(opts SessionManagerOpts) *SessionManager {
	max := opts.MaxPerUser
	if max <= 0 {
		max = DefaultMaxPerUser
	}
	return &SessionManager{
		sessions:   make(map[string]map[string]struct{}),
		maxPerUser: max,
	}
}

// Register reserves a session slot for the user and returns its id.
// Returns ErrSessionLimit when the user is at capacity.
func (sm *SessionManager) Register(userID string) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	set := sm.sessions[userID]
	if len(set) >= sm.maxPerUser {
		return "", fmt.Errorf("%w: user %s has %d active sessions", ErrSessionLimit, userID, len(set))
	}
	if set == nil {
		set = make(map[string]struct{})
		sm.sessions[userID] = set
	}
	id := uuid.NewString()
	set[id] = struct{}{}
	return id, nil
}

// Release frees a session slot. Releasing an unknown session is a no-op.
func (sm *SessionManager) Release(userID, sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	set, ok := sm.sessions[userID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(sm.sessions, userID)
	}
}

// Count returns the user's active session count.
func (sm *SessionManager) Count(userID string) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions[userID])
}

// Active returns the total number of active sessions across all users.
func (sm *SessionManager) Active() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := 0
	for _, set := range sm.sessions {
		n += len(set)
	}
	return n
}
