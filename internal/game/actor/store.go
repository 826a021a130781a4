package actor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hexfray/hexfray/internal/game/hex"
)

// Store tracks every actor in one arena, keyed by id.
// All methods are safe for concurrent use, but the combat pass itself is
// single-threaded per arena: handlers read a consistent pre-tick snapshot
// and publish cross-actor mutations through the tick command buffer.
type Store struct {
	mu     sync.RWMutex
	actors map[string]*Actor
}

// NewStore creates an empty actor Store.
func NewStore() *Store {
	return &Store{actors: make(map[string]*Actor)}
}

// Add registers an actor.
//
// Precondition: a must be non-nil with a non-empty ID.
// Postcondition: Returns an error if the id is already registered.
func (s *Store) Add(a *Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.actors[a.ID]; exists {
		return fmt.Errorf("actor %q already registered", a.ID)
	}
	s.actors[a.ID] = a
	return nil
}

// Get returns the actor with the given id.
func (s *Store) Get(id string) (*Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actors[id]
	return a, ok
}

// Remove deletes the actor record for id.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actors, id)
}

// All returns a snapshot of every actor sorted by id. The fixed order
// keeps the tick pass deterministic across runs.
func (s *Store) All() []*Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Actor, 0, len(s.actors))
	for _, a := range s.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AtHex returns every living actor occupying loc, sorted by id.
func (s *Store) AtHex(loc hex.Hex) []*Actor {
	var out []*Actor
	for _, a := range s.All() {
		if !a.Dead && a.Loc == loc {
			out = append(out, a)
		}
	}
	return out
}

// OpposingAtHex returns every living actor on loc whose faction differs
// from f, sorted by id. This is the AutoAttack area-target query.
func (s *Store) OpposingAtHex(loc hex.Hex, f Faction) []*Actor {
	var out []*Actor
	for _, a := range s.AtHex(loc) {
		if a.Faction != f {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of registered actors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actors)
}
