/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

import (
	"slices"
	"sync"
	"time"
)

// DefaultTimerDuration is the advisory round length, in seconds, used when no
// positive duration is given.
const DefaultTimerDuration = 15

type vote struct {
	name        string
	value       Value
	submittedAt time.Time
}

// Session is one planning poker room. All fields are guarded by mu, and every
// operation holds mu from its first read until its last broadcast, so rooms
// see transitions in the order they were applied.
type Session struct {
	mu sync.Mutex

	key         string
	facilitator string
	createdAt   time.Time

	participants []Participant
	currentStory *string

	votes     map[string]vote // connection id -> vote
	voteOrder []string        // first-submission order

	votingActive  bool
	timerDuration int
	timerStart    time.Time

	history []HistoryEntry

	// ended is set once the facilitator leaves; a stale *Session held by an
	// in-flight operation must not be mutated afterwards.
	ended bool
}

func newSession(key, facilitator string, now time.Time) *Session {
	return &Session{
		key:           key,
		facilitator:   facilitator,
		createdAt:     now,
		participants:  []Participant{},
		votes:         make(map[string]vote),
		timerDuration: DefaultTimerDuration,
		history:       []HistoryEntry{},
	}
}

// Key returns the session identifier.
func (s *Session) Key() string {
	return s.key
}

// State is a point-in-time copy of a Session.
type State struct {
	Key           string
	Facilitator   string
	CreatedAt     time.Time
	Participants  []Participant
	CurrentStory  *string
	Votes         map[string]RevealedVote
	VotingActive  bool
	TimerDuration int
	TimerStart    time.Time
	History       []HistoryEntry
	Ended         bool
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes := make(map[string]RevealedVote, len(s.votes))
	for id, v := range s.votes {
		votes[id] = RevealedVote{UserName: v.name, Vote: v.value}
	}

	var story *string
	if s.currentStory != nil {
		name := *s.currentStory
		story = &name
	}

	return State{
		Key:           s.key,
		Facilitator:   s.facilitator,
		CreatedAt:     s.createdAt,
		Participants:  s.participantsLocked(),
		CurrentStory:  story,
		Votes:         votes,
		VotingActive:  s.votingActive,
		TimerDuration: s.timerDuration,
		TimerStart:    s.timerStart,
		History:       s.historyLocked(),
		Ended:         s.ended,
	}
}

func (s *Session) participantsLocked() []Participant {
	return slices.Clone(s.participants)
}

// historyLocked copies the history slice. Entries themselves are immutable
// and are shared.
func (s *Session) historyLocked() []HistoryEntry {
	return slices.Clone(s.history)
}

func (s *Session) addParticipantLocked(p Participant) {
	s.participants = append(s.participants, p)
}

func (s *Session) removeParticipantLocked(connID string) bool {
	before := len(s.participants)
	s.participants = slices.DeleteFunc(s.participants, func(p Participant) bool {
		return p.ID == connID
	})
	return len(s.participants) != before
}

// upsertVoteLocked records a vote. A resubmission replaces the earlier value
// and keeps its position.
func (s *Session) upsertVoteLocked(connID string, v vote) {
	if _, ok := s.votes[connID]; !ok {
		s.voteOrder = append(s.voteOrder, connID)
	}
	s.votes[connID] = v
}

func (s *Session) deleteVoteLocked(connID string) {
	if _, ok := s.votes[connID]; !ok {
		return
	}
	delete(s.votes, connID)
	s.voteOrder = slices.DeleteFunc(s.voteOrder, func(id string) bool {
		return id == connID
	})
}

func (s *Session) clearVotesLocked() {
	clear(s.votes)
	s.voteOrder = nil
}

func (s *Session) maskedVotesLocked() []MaskedVote {
	out := make([]MaskedVote, 0, len(s.voteOrder))
	for _, id := range s.voteOrder {
		out = append(out, MaskedVote{UserName: s.votes[id].name, Voted: true})
	}
	return out
}

func (s *Session) revealedVotesLocked() []RevealedVote {
	out := make([]RevealedVote, 0, len(s.voteOrder))
	for _, id := range s.voteOrder {
		v := s.votes[id]
		out = append(out, RevealedVote{UserName: v.name, Vote: v.value})
	}
	return out
}

// everyoneVotedLocked is the auto-reveal condition. It compares all recorded
// votes, facilitator votes included, against the participant count.
func (s *Session) everyoneVotedLocked() bool {
	return len(s.participants) > 0 && len(s.votes) == len(s.participants)
}
