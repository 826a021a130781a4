package session

import (
	"fmt"
	"sync"
)

// PlayerSession tracks a connected player's state.
type PlayerSession struct {
	// UID is the unique session identifier.
	UID string
	// Name is the display name shown in-game.
	Name string
	// ActorID is the combat actor this session controls.
	ActorID string
	// Outbox is the bridge for pushing encoded events to the player.
	Outbox *Outbox
}

// Manager tracks all active player sessions.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	players map[string]*PlayerSession // uid → session
	byActor map[string]string         // actorID → uid
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{
		players: make(map[string]*PlayerSession),
		byActor: make(map[string]string),
	}
}

// AddPlayer registers a new player session.
//
// Precondition: uid, name, and actorID must be non-empty; bufferSize <= 0 uses a default.
// Postcondition: Returns the created PlayerSession, or an error if the UID or actor is already registered.
func (m *Manager) AddPlayer(uid, name, actorID string, bufferSize int) (*PlayerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[uid]; exists {
		return nil, fmt.Errorf("player %q already connected", uid)
	}
	if _, exists := m.byActor[actorID]; exists {
		return nil, fmt.Errorf("actor %q already controlled", actorID)
	}

	sess := &PlayerSession{
		UID:     uid,
		Name:    name,
		ActorID: actorID,
		Outbox:  NewOutbox(uid, bufferSize),
	}

	m.players[uid] = sess
	m.byActor[actorID] = uid
	return sess, nil
}

// RemovePlayer removes a player session and closes its outbox.
//
// Precondition: uid must be non-empty.
// Postcondition: The player is removed from all tracking. Returns an error if not found.
func (m *Manager) RemovePlayer(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.players[uid]
	if !exists {
		return fmt.Errorf("player %q not found", uid)
	}

	_ = sess.Outbox.Close()
	delete(m.byActor, sess.ActorID)
	delete(m.players, uid)
	return nil
}

// Get returns the session for the given UID.
func (m *Manager) Get(uid string) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.players[uid]
	return sess, ok
}

// ByActor returns the session controlling the given actor, if any.
func (m *Manager) ByActor(actorID string) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.byActor[actorID]
	if !ok {
		return nil, false
	}
	sess, ok := m.players[uid]
	return sess, ok
}

// All returns a snapshot of every active session.
//
// Postcondition: Returns a slice safe to iterate without holding the lock.
func (m *Manager) All() []*PlayerSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PlayerSession, 0, len(m.players))
	for _, sess := range m.players {
		out = append(out, sess)
	}
	return out
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
