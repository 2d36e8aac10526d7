/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

import (
	"strings"
	"time"
)

// StartVoting opens a round on storyName. Only the facilitator may start a
// round; anyone else is ignored. Starting over a revealed round discards its
// votes without archiving them.
func (s *Service) StartVoting(m *Member, key, storyName string, timerDuration int) {
	if m == nil || !m.Facilitator {
		return
	}

	story := strings.TrimSpace(storyName)
	if story == "" {
		return
	}

	session, ok := s.lock(m, key)
	if !ok {
		return
	}
	defer session.mu.Unlock()

	if timerDuration <= 0 {
		timerDuration = s.defaultTimer
	}

	session.currentStory = &story
	session.clearVotesLocked()
	session.votingActive = true
	session.timerDuration = timerDuration
	session.timerStart = s.now()

	s.gw.room(key, VotingStartedMessage{
		Type:          EventVotingStarted,
		StoryName:     story,
		TimerDuration: session.timerDuration,
		TimerStart:    session.timerStart.UnixMilli(),
	})

	s.logf("VOTING: Started %q in %s (%ds)", story, key, timerDuration)
}

// SubmitVote records or replaces the member's vote while voting is active.
// When every participant has voted the round is revealed in the same call.
func (s *Service) SubmitVote(m *Member, key string, value Value) {
	if len(value) == 0 {
		return
	}

	session, ok := s.lock(m, key)
	if !ok {
		return
	}
	defer session.mu.Unlock()

	if !session.votingActive {
		return
	}

	session.upsertVoteLocked(m.ConnID, vote{
		name:        m.Name,
		value:       value,
		submittedAt: s.now(),
	})

	s.gw.room(key, VotesUpdateMessage{
		Type:              EventVotesUpdate,
		Votes:             session.maskedVotesLocked(),
		TotalParticipants: len(session.participants),
		VotedCount:        len(session.votes),
	})

	if !session.everyoneVotedLocked() {
		return
	}

	session.votingActive = false

	s.gw.room(key, VotesRevealedMessage{
		Type:         EventVotesRevealed,
		Votes:        session.revealedVotesLocked(),
		AutoRevealed: true,
	})

	s.logf("VOTING: Auto-revealed %d votes in %s", len(session.votes), key)
}

// RevealVotes shows the current round's votes whether or not everyone has
// voted. It does nothing when no round exists.
func (s *Service) RevealVotes(m *Member, key string) {
	if m == nil || !m.Facilitator {
		return
	}

	session, ok := s.lock(m, key)
	if !ok {
		return
	}
	defer session.mu.Unlock()

	if session.currentStory == nil {
		return
	}

	session.votingActive = false

	s.gw.room(key, VotesRevealedMessage{
		Type:  EventVotesRevealed,
		Votes: session.revealedVotesLocked(),
	})

	s.logf("VOTING: Revealed %d votes in %s", len(session.votes), key)
}

// EndVoting archives the current round, if it has a story and at least one
// vote, then returns the session to idle. It is valid from any state.
func (s *Service) EndVoting(m *Member, key string) {
	if m == nil || !m.Facilitator {
		return
	}

	session, ok := s.lock(m, key)
	if !ok {
		return
	}
	defer session.mu.Unlock()

	if session.currentStory != nil && len(session.votes) > 0 {
		votes := session.revealedVotesLocked()
		now := s.now()

		entry := HistoryEntry{
			StoryName:   *session.currentStory,
			Votes:       votes,
			Statistics:  Calculate(votes),
			Timestamp:   now.UnixMilli(),
			CompletedAt: now.UTC().Format(time.RFC3339),
		}

		session.history = append(session.history, entry)

		s.logf("VOTING: Archived %q in %s with %d votes", entry.StoryName, key, len(votes))
	}

	session.votingActive = false
	session.currentStory = nil
	session.clearVotesLocked()

	s.gw.room(key, VotingEndedMessage{
		Type:    EventVotingEnded,
		History: session.historyLocked(),
	})
}
