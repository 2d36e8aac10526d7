package poker

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartVoting(t *testing.T) {
	r, _ := newRoom(t, "Ana")

	pos := r.transport.mark()
	r.svc.StartVoting(r.facilitator, r.key, " Story 1 ", 30)

	got := r.transport.since(pos)
	require.Len(t, got, 1)
	assert.Equal(t, r.key, got[0].room)
	assert.Equal(t, VotingStartedMessage{
		Type:          EventVotingStarted,
		StoryName:     "Story 1",
		TimerDuration: 30,
		TimerStart:    r.clock.UnixMilli(),
	}, got[0].msg)

	state := r.state()
	require.NotNil(t, state.CurrentStory)
	assert.Equal(t, "Story 1", *state.CurrentStory)
	assert.True(t, state.VotingActive)
	assert.Equal(t, 30, state.TimerDuration)
	assert.Equal(t, r.clock, state.TimerStart)
}

func TestStartVotingDefaultTimer(t *testing.T) {
	r, _ := newRoom(t, "Ana")

	r.svc.StartVoting(r.facilitator, r.key, "Story", 0)
	assert.Equal(t, DefaultTimerDuration, r.state().TimerDuration)

	r.svc.defaultTimer = 45
	r.svc.StartVoting(r.facilitator, r.key, "Story", -3)
	assert.Equal(t, 45, r.state().TimerDuration)
}

func TestStartVotingClearsPreviousVotes(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)
	r.svc.SubmitVote(m[0], r.key, NumberValue(3))
	r.svc.RevealVotes(r.facilitator, r.key)

	r.svc.StartVoting(r.facilitator, r.key, "Story 2", 0)

	state := r.state()
	assert.Empty(t, state.Votes)
	assert.True(t, state.VotingActive)
	assert.Equal(t, "Story 2", *state.CurrentStory)
	assert.Empty(t, state.History)
}

func TestStartVotingIgnoresBlankStory(t *testing.T) {
	r, _ := newRoom(t, "Ana")

	pos := r.transport.mark()
	r.svc.StartVoting(r.facilitator, r.key, "  ", 15)

	assert.Empty(t, r.transport.since(pos))
	assert.False(t, r.state().VotingActive)
}

// Vote values never reach the room before a reveal.
func TestSubmitVoteIsMasked(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo", "Cy")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)

	pos := r.transport.mark()
	r.svc.SubmitVote(m[0], r.key, NumberValue(5))
	r.svc.SubmitVote(m[1], r.key, StringValue("?"))

	got := r.transport.since(pos)
	require.Len(t, got, 2)

	for _, d := range got {
		update, ok := d.msg.(VotesUpdateMessage)
		require.True(t, ok, "unexpected %T", d.msg)

		raw, err := json.Marshal(update)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), `"vote"`)
		assert.NotContains(t, string(raw), `5`)
	}

	last := got[1].msg.(VotesUpdateMessage)
	assert.Equal(t, VotesUpdateMessage{
		Type: EventVotesUpdate,
		Votes: []MaskedVote{
			{UserName: "Ana", Voted: true},
			{UserName: "Bo", Voted: true},
		},
		TotalParticipants: 3,
		VotedCount:        2,
	}, last)
	assert.True(t, r.state().VotingActive)
}

func TestSubmitVoteResubmissionOverwrites(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)

	for _, v := range []float64{1, 2, 3, 13} {
		r.svc.SubmitVote(m[0], r.key, NumberValue(v))
	}

	state := r.state()
	require.Len(t, state.Votes, 1)
	assert.Equal(t, NumberValue(13), state.Votes["p1"].Vote)

	update := lastOf[VotesUpdateMessage](t, r.transport.since(0))
	assert.Equal(t, 1, update.VotedCount)
	assert.Len(t, update.Votes, 1)
}

func TestSubmitVoteIgnoredOutsideVoting(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	pos := r.transport.mark()
	r.svc.SubmitVote(m[0], r.key, NumberValue(5))
	assert.Empty(t, r.transport.since(pos))

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)
	r.svc.RevealVotes(r.facilitator, r.key)

	pos = r.transport.mark()
	r.svc.SubmitVote(m[0], r.key, NumberValue(5))
	r.svc.SubmitVote(m[1], r.key, nil)
	r.svc.SubmitVote(m[1], "other", NumberValue(5))
	assert.Empty(t, r.transport.since(pos))
	assert.Empty(t, r.state().Votes)
}

func TestSubmitVoteRequiresJoinedSession(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")
	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)

	otherKey, err := r.svc.CreateSession("Gil")
	require.NoError(t, err)

	pos := r.transport.mark()
	r.svc.SubmitVote(m[0], otherKey, NumberValue(5))
	r.svc.SubmitVote(nil, r.key, NumberValue(5))

	assert.Empty(t, r.transport.since(pos))
	assert.Empty(t, r.state().Votes)
}

func TestAutoReveal(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo", "Cy")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)
	r.svc.SubmitVote(m[0], r.key, NumberValue(1))
	r.svc.SubmitVote(m[1], r.key, NumberValue(2))
	assert.True(t, r.state().VotingActive)

	pos := r.transport.mark()
	r.svc.SubmitVote(m[2], r.key, NumberValue(3))

	got := r.transport.since(pos)
	require.Len(t, got, 2)
	assert.IsType(t, VotesUpdateMessage{}, got[0].msg)

	revealed, ok := got[1].msg.(VotesRevealedMessage)
	require.True(t, ok)
	assert.True(t, revealed.AutoRevealed)
	assert.Len(t, revealed.Votes, 3)
	assert.False(t, r.state().VotingActive)
}

// The facilitator's vote is stored and counted, but the facilitator is not a
// participant.
func TestFacilitatorVoteCountsTowardsTally(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)
	r.svc.SubmitVote(r.facilitator, r.key, NumberValue(8))

	update := lastOf[VotesUpdateMessage](t, r.transport.since(0))
	assert.Equal(t, 2, update.TotalParticipants)
	assert.Equal(t, 1, update.VotedCount)
	assert.Equal(t, []MaskedVote{{UserName: "Fran", Voted: true}}, update.Votes)

	r.svc.SubmitVote(m[0], r.key, NumberValue(5))

	state := r.state()
	assert.False(t, state.VotingActive)
	assert.Contains(t, state.Votes, "fac")
}

func TestRevealVotes(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)
	r.svc.SubmitVote(m[1], r.key, StringValue("8"))

	pos := r.transport.mark()
	r.svc.RevealVotes(r.facilitator, r.key)

	got := r.transport.since(pos)
	require.Len(t, got, 1)
	assert.Equal(t, VotesRevealedMessage{
		Type:  EventVotesRevealed,
		Votes: []RevealedVote{{UserName: "Bo", Vote: StringValue("8")}},
	}, got[0].msg)

	raw, err := json.Marshal(got[0].msg)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "autoRevealed")
	assert.False(t, r.state().VotingActive)
}

func TestRevealVotesWithoutRound(t *testing.T) {
	r, _ := newRoom(t, "Ana")

	pos := r.transport.mark()
	r.svc.RevealVotes(r.facilitator, r.key)
	assert.Empty(t, r.transport.since(pos))
}

func TestEndVotingArchivesRound(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo", "Cy")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)
	r.svc.SubmitVote(m[0], r.key, NumberValue(3))
	r.svc.SubmitVote(m[1], r.key, NumberValue(5))
	r.svc.SubmitVote(m[2], r.key, NumberValue(8))

	r.clock = r.clock.Add(time.Minute)

	pos := r.transport.mark()
	r.svc.EndVoting(r.facilitator, r.key)

	want := HistoryEntry{
		StoryName: "Story 1",
		Votes: []RevealedVote{
			{UserName: "Ana", Vote: NumberValue(3)},
			{UserName: "Bo", Vote: NumberValue(5)},
			{UserName: "Cy", Vote: NumberValue(8)},
		},
		Statistics:  &Statistics{Average: 5.3, Min: 3, Max: 8},
		Timestamp:   r.clock.UnixMilli(),
		CompletedAt: "2026-10-14T09:01:00Z",
	}

	got := r.transport.since(pos)
	require.Len(t, got, 1)
	assert.Equal(t, VotingEndedMessage{Type: EventVotingEnded, History: []HistoryEntry{want}}, got[0].msg)

	state := r.state()
	assert.Equal(t, []HistoryEntry{want}, state.History)
	assert.Nil(t, state.CurrentStory)
	assert.False(t, state.VotingActive)
	assert.Empty(t, state.Votes)
}

func TestEndVotingWithoutVotesKeepsHistory(t *testing.T) {
	r, _ := newRoom(t, "Ana")

	r.svc.EndVoting(r.facilitator, r.key)
	assert.Empty(t, r.state().History)

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)
	r.svc.EndVoting(r.facilitator, r.key)

	state := r.state()
	assert.Empty(t, state.History)
	assert.Nil(t, state.CurrentStory)

	ended := lastOf[VotingEndedMessage](t, r.transport.since(0))
	assert.NotNil(t, ended.History)
	assert.Empty(t, ended.History)
}

func TestHistoryOnlyGrows(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	var lengths []int
	record := func() { lengths = append(lengths, len(r.state().History)) }

	for i, story := range []string{"A", "B", "C"} {
		r.svc.StartVoting(r.facilitator, r.key, story, 0)
		record()
		if i != 1 {
			r.svc.SubmitVote(m[0], r.key, NumberValue(float64(i)))
		}
		record()
		r.svc.EndVoting(r.facilitator, r.key)
		record()
		r.svc.EndVoting(r.facilitator, r.key)
		record()
	}

	for i := 1; i < len(lengths); i++ {
		assert.GreaterOrEqual(t, lengths[i], lengths[i-1])
	}

	history := r.state().History
	require.Len(t, history, 2)
	assert.Equal(t, "A", history[0].StoryName)
	assert.Equal(t, "C", history[1].StoryName)
}

func TestFacilitatorOnlyOperationsIgnoreParticipants(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)
	r.svc.SubmitVote(m[0], r.key, NumberValue(5))

	before := r.state()
	pos := r.transport.mark()

	r.svc.StartVoting(m[0], r.key, "Hijack", 99)
	r.svc.RevealVotes(m[0], r.key)
	r.svc.EndVoting(m[1], r.key)

	assert.Empty(t, r.transport.since(pos))
	assert.Equal(t, before, r.state())
}

func TestFacilitatorOfAnotherSessionIsIgnored(t *testing.T) {
	r, _ := newRoom(t, "Ana")
	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)

	otherKey, err := r.svc.CreateSession("Gil")
	require.NoError(t, err)
	other, err := r.svc.Join("gil", otherKey, "Gil", true)
	require.NoError(t, err)

	pos := r.transport.mark()
	r.svc.RevealVotes(other, r.key)
	r.svc.EndVoting(other, r.key)

	assert.Empty(t, r.transport.since(pos))
	assert.True(t, r.state().VotingActive)
}

func TestScenarioAutoReveal(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 15)
	r.svc.SubmitVote(m[0], r.key, NumberValue(5))
	r.svc.SubmitVote(m[1], r.key, NumberValue(8))

	revealed := lastOf[VotesRevealedMessage](t, r.transport.since(0))
	assert.Equal(t, VotesRevealedMessage{
		Type: EventVotesRevealed,
		Votes: []RevealedVote{
			{UserName: "Ana", Vote: NumberValue(5)},
			{UserName: "Bo", Vote: NumberValue(8)},
		},
		AutoRevealed: true,
	}, revealed)
}

func TestScenarioManualRevealThenEnd(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 15)
	r.svc.SubmitVote(m[0], r.key, NumberValue(5))
	r.svc.RevealVotes(r.facilitator, r.key)

	revealed := lastOf[VotesRevealedMessage](t, r.transport.since(0))
	assert.False(t, revealed.AutoRevealed)
	assert.Equal(t, []RevealedVote{{UserName: "Ana", Vote: NumberValue(5)}}, revealed.Votes)
	assert.False(t, r.state().VotingActive)

	r.svc.EndVoting(r.facilitator, r.key)

	state := r.state()
	require.Len(t, state.History, 1)
	assert.Equal(t, "Story 1", state.History[0].StoryName)
	assert.Equal(t, []RevealedVote{{UserName: "Ana", Vote: NumberValue(5)}}, state.History[0].Votes)
	assert.Equal(t, &Statistics{Average: 5, Min: 5, Max: 5}, state.History[0].Statistics)
	assert.Nil(t, state.CurrentStory)
}

// Removing the only non-voter leaves every remaining participant voted, but
// auto-reveal only runs on submit.
func TestScenarioLeaveDoesNotAutoReveal(t *testing.T) {
	r, m := newRoom(t, "Ana", "Bo")

	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 15)
	r.svc.SubmitVote(m[0], r.key, NumberValue(5))

	pos := r.transport.mark()
	r.svc.Leave(m[1])

	state := r.state()
	assert.Equal(t, []Participant{{ID: "p1", Name: "Ana", Connected: true}}, state.Participants)
	assert.NotContains(t, state.Votes, "p2")
	assert.Len(t, state.Votes, 1)
	assert.True(t, state.VotingActive)

	for _, d := range r.transport.since(pos) {
		assert.NotEqual(t, EventVotesRevealed, messageType(d.msg))
	}

	// A voter leaving also drops their vote.
	r.svc.Leave(m[0])
	state = r.state()
	assert.Empty(t, state.Participants)
	assert.Empty(t, state.Votes)
	assert.True(t, state.VotingActive)
}

func messageType(msg any) string {
	raw, _ := json.Marshal(msg)

	var envelope struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &envelope)

	return envelope.Type
}

func TestConcurrentSubmitAndLeave(t *testing.T) {
	names := make([]string, 8)
	for i := range names {
		names[i] = fmt.Sprintf("user %d", i)
	}

	r, m := newRoom(t, names...)
	r.svc.StartVoting(r.facilitator, r.key, "Story 1", 0)

	var wg sync.WaitGroup
	for i, member := range m {
		i, member := i, member
		wg.Add(1)
		go func() {
			defer wg.Done()

			r.svc.SubmitVote(member, r.key, NumberValue(float64(i)))
			if i%3 == 0 {
				r.svc.Leave(member)
			}
		}()
	}
	wg.Wait()

	state := r.state()

	participants := make(map[string]bool, len(state.Participants))
	for _, p := range state.Participants {
		participants[p.ID] = true
	}
	for id := range state.Votes {
		assert.True(t, participants[id], "vote from %s who is not a participant", id)
	}
	assert.Len(t, state.Participants, 5)

	autoReveals := 0
	for _, msg := range r.transport.roomMessages(r.key) {
		if revealed, ok := msg.(VotesRevealedMessage); ok && revealed.AutoRevealed {
			autoReveals++
		}
	}
	assert.LessOrEqual(t, autoReveals, 1)

	if autoReveals == 0 {
		assert.True(t, state.VotingActive)
	} else {
		assert.False(t, state.VotingActive)
	}
}
