/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyLength is the number of characters in a session key.
const KeyLength = 8

// Registry maps session keys to sessions. It only creates, finds and deletes
// sessions; their contents are changed through Service.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	newKey func() string
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		newKey:   newSessionKey,
		now:      time.Now,
	}
}

func newSessionKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:KeyLength]
}

// Create stores a fresh session and returns its key. Keys are regenerated
// until one is unused.
func (r *Registry) Create(facilitatorName string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		key := r.newKey()
		if _, exists := r.sessions[key]; exists {
			continue
		}

		r.sessions[key] = newSession(key, facilitatorName, r.now())

		return key
	}
}

func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[key]
	return s, ok
}

// Delete removes key. Deleting an unknown key does nothing.
func (r *Registry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, key)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
