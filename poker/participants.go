/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

import (
	"fmt"
	"strings"
)

const (
	sessionNotFoundText = "Session not found"
	nameRequiredText    = "Name is required to join the session"
	sessionEndedText    = "The facilitator has left the session"
)

// Join adds connID to the session room. Facilitators join the room but are
// never listed as participants. On failure the connection is told privately
// and nothing else happens.
func (s *Service) Join(connID, key, userName string, facilitator bool) (*Member, error) {
	session, ok := s.registry.Get(key)
	if !ok {
		s.gw.private(connID, ErrorMessage{Type: EventError, Message: sessionNotFoundText})
		return nil, fmt.Errorf("join %q: %w", key, ErrSessionNotFound)
	}

	name := strings.TrimSpace(userName)
	if name == "" {
		s.gw.private(connID, ErrorMessage{Type: EventError, Message: nameRequiredText})
		return nil, fmt.Errorf("join %q: %w", key, ErrInvalidName)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.ended {
		s.gw.private(connID, ErrorMessage{Type: EventError, Message: sessionNotFoundText})
		return nil, fmt.Errorf("join %q: %w", key, ErrSessionNotFound)
	}

	s.gw.subscribe(key, connID)

	if !facilitator {
		session.addParticipantLocked(Participant{
			ID:        connID,
			Name:      name,
			Connected: true,
		})
	}

	participants := session.participantsLocked()

	s.gw.private(connID, SessionStateMessage{
		Type:          EventSessionState,
		SessionID:     session.key,
		Facilitator:   session.facilitator,
		Participants:  participants,
		CurrentStory:  session.currentStory,
		VotingActive:  session.votingActive,
		IsFacilitator: facilitator,
		History:       session.historyLocked(),
	})

	s.gw.room(key, ParticipantsMessage{
		Type:         EventParticipantJoined,
		Participants: participants,
	})

	if facilitator {
		s.logf("SESSION: Facilitator %q joined %s", name, key)
	} else {
		s.logf("SESSION: Participant %q joined %s", name, key)
	}

	return &Member{
		ConnID:      connID,
		SessionKey:  key,
		Name:        name,
		Facilitator: facilitator,
	}, nil
}

// Leave handles a disconnect. The member's vote is dropped but auto-reveal is
// not re-evaluated. A departing facilitator ends the session.
func (s *Service) Leave(m *Member) {
	session, ok := s.lock(m, keyOf(m))
	if !ok {
		return
	}
	defer session.mu.Unlock()

	session.removeParticipantLocked(m.ConnID)
	session.deleteVoteLocked(m.ConnID)

	s.gw.room(session.key, ParticipantsMessage{
		Type:         EventParticipantLeft,
		Participants: session.participantsLocked(),
	})

	if !m.Facilitator {
		s.logf("SESSION: Participant %q left %s", m.Name, session.key)
		return
	}

	session.ended = true
	s.registry.Delete(session.key)

	s.gw.room(session.key, SessionEndedMessage{
		Type:    EventSessionEnded,
		Message: sessionEndedText,
	})
	s.gw.close(session.key)

	s.logf("SESSION: Facilitator %q left, ended %s after %d rounds", m.Name, session.key, len(session.history))
}

func keyOf(m *Member) string {
	if m == nil {
		return ""
	}
	return m.SessionKey
}
