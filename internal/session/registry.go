package session

import (
	"errors"
	"sync"
)

// ErrSessionNotFound is returned when no live session exists for a user.
var ErrSessionNotFound = errors.New("session not found")

// Registry maps user identifiers to the input queue of their live session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Queue
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Queue),
	}
}

// Register binds queue to userID, replacing any existing binding. The
// replaced queue, if any, is returned so the caller can close it.
func (r *Registry) Register(userID string, queue *Queue) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.sessions[userID]
	r.sessions[userID] = queue
	if !exists || prev == queue {
		return nil
	}
	return prev
}

// Lookup returns the queue currently bound to userID.
func (r *Registry) Lookup(userID string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queue, ok := r.sessions[userID]
	return queue, ok
}

// Unregister removes any binding for userID.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, userID)
}

// Release removes the binding for userID only while it still points at
// queue, so an evicted session cannot drop its replacement.
func (r *Registry) Release(userID string, queue *Queue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[userID]; ok && current == queue {
		delete(r.sessions, userID)
		return true
	}
	return false
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every registered queue and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, queue := range r.sessions {
		queue.Close()
		delete(r.sessions, userID)
	}
}
