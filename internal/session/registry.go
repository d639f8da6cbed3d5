package session

import (
	"sync"

	"roomchat-service/internal/models"
)

type state struct {
	identity models.Identity
	rooms    map[int]struct{}
}

// Registry tracks live sessions: which identity each session is bound to and
// which rooms it has joined. It is the in-memory counterpart of the room
// participant tables and the only source for fan-out targeting.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*state
	byRoom   map[int]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*state),
		byRoom:   make(map[int]map[string]struct{}),
	}
}

// Bind records a successful authentication for the session. Re-binding as
// the same user refreshes the identity and keeps joined rooms; re-binding as
// a different user drops every joined room, since the old joins were
// authorized for the old identity only.
func (r *Registry) Bind(sessionID string, identity models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		if s.identity.UserID != identity.UserID {
			r.leaveAllLocked(sessionID, s)
		}
		s.identity = identity
		return
	}
	r.sessions[sessionID] = &state{identity: identity, rooms: make(map[int]struct{})}
}

// IdentityOf returns the identity bound to the session, if any.
func (r *Registry) IdentityOf(sessionID string) (models.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return models.Identity{}, false
	}
	return s.identity, true
}

// MarkJoined records that the session has joined the room. Unknown sessions
// are ignored: joining requires a prior Bind.
func (r *Registry) MarkJoined(sessionID string, roomID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	s.rooms[roomID] = struct{}{}
	if _, ok := r.byRoom[roomID]; !ok {
		r.byRoom[roomID] = make(map[string]struct{})
	}
	r.byRoom[roomID][sessionID] = struct{}{}
}

// HasJoined reports whether the session has joined the room.
func (r *Registry) HasJoined(sessionID string, roomID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	_, joined := s.rooms[roomID]
	return joined
}

// JoinedRooms returns the ids of the rooms the session has joined.
func (r *Registry) JoinedRooms(sessionID string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	rooms := make([]int, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	return rooms
}

// SessionsJoinedTo returns a snapshot of the sessions joined to the room.
// The returned slice is safe to iterate while the registry mutates.
func (r *Registry) SessionsJoinedTo(roomID int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byRoom[roomID]))
	for sessionID := range r.byRoom[roomID] {
		ids = append(ids, sessionID)
	}
	return ids
}

// Sessions returns a snapshot of every bound session id. Used by the
// broadcast fan-out policy.
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for sessionID := range r.sessions {
		ids = append(ids, sessionID)
	}
	return ids
}

// Unbind removes the session and all of its room memberships under a single
// lock, so a concurrent fan-out snapshot either sees the session everywhere
// or nowhere.
func (r *Registry) Unbind(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	r.leaveAllLocked(sessionID, s)
	delete(r.sessions, sessionID)
}

// leaveAllLocked removes the session from every room index. Callers hold r.mu.
func (r *Registry) leaveAllLocked(sessionID string, s *state) {
	for roomID := range s.rooms {
		if members, ok := r.byRoom[roomID]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(r.byRoom, roomID)
			}
		}
	}
	s.rooms = make(map[int]struct{})
}
