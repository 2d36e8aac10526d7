/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidName     = errors.New("name is required")
)

// Member is what the transport remembers about a connection after a
// successful join. Facilitator is asserted by the client and trusted.
type Member struct {
	ConnID      string
	SessionKey  string
	Name        string
	Facilitator bool
}

type Options struct {
	// DefaultTimer is used when a round is started without a positive
	// duration. Zero means DefaultTimerDuration.
	DefaultTimer int

	// Logf receives one line per session event. Nil discards them.
	Logf func(format string, args ...any)
}

// Service applies inbound events to the sessions in a Registry and hands the
// results to a Transport.
type Service struct {
	registry     *Registry
	gw           gateway
	defaultTimer int
	logf         func(format string, args ...any)
	now          func() time.Time
}

func NewService(registry *Registry, transport Transport, opts Options) *Service {
	s := &Service{
		registry:     registry,
		gw:           gateway{t: transport},
		defaultTimer: opts.DefaultTimer,
		logf:         opts.Logf,
		now:          time.Now,
	}

	if s.defaultTimer <= 0 {
		s.defaultTimer = DefaultTimerDuration
	}
	if s.logf == nil {
		s.logf = func(string, ...any) {}
	}

	return s
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// CreateSession registers a new session owned by facilitatorName.
func (s *Service) CreateSession(facilitatorName string) (string, error) {
	name := strings.TrimSpace(facilitatorName)
	if name == "" {
		return "", fmt.Errorf("facilitator: %w", ErrInvalidName)
	}

	key := s.registry.Create(name)

	s.logf("SESSION: Created %s for %q", key, name)

	return key, nil
}

// lock returns the live session the member joined, locked. key must match
// the session the member joined.
func (s *Service) lock(m *Member, key string) (*Session, bool) {
	if m == nil || key != m.SessionKey {
		return nil, false
	}

	session, ok := s.registry.Get(key)
	if !ok {
		return nil, false
	}

	session.mu.Lock()
	if session.ended {
		session.mu.Unlock()
		return nil, false
	}

	return session, true
}

// Active reports whether the session m joined is still open.
func (s *Service) Active(m *Member) bool {
	session, ok := s.lock(m, keyOf(m))
	if !ok {
		return false
	}
	session.mu.Unlock()

	return true
}
