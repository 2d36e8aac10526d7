/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package poker

// Outbound event names.
const (
	EventSessionState      = "session-state"
	EventParticipantJoined = "participant-joined"
	EventParticipantLeft   = "participant-left"
	EventVotingStarted     = "voting-started"
	EventVotesUpdate       = "votes-update"
	EventVotesRevealed     = "votes-revealed"
	EventVotingEnded       = "voting-ended"
	EventSessionEnded      = "session-ended"
	EventError             = "error"
)

// Participant is a non-facilitator member of a session, in join order.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// MaskedVote is what the room sees while voting is active.
type MaskedVote struct {
	UserName string `json:"userName"`
	Voted    bool   `json:"voted"`
}

// RevealedVote is a vote with its value, shown once a round is revealed.
type RevealedVote struct {
	UserName string `json:"userName"`
	Vote     Value  `json:"vote"`
}

// HistoryEntry is one archived round. Entries are never modified after they
// are appended.
type HistoryEntry struct {
	StoryName   string         `json:"storyName"`
	Votes       []RevealedVote `json:"votes"`
	Statistics  *Statistics    `json:"statistics"`
	Timestamp   int64          `json:"timestamp"`   // unix millis
	CompletedAt string         `json:"completedAt"` // RFC 3339
}

// SessionStateMessage is sent only to a connection that just joined.
type SessionStateMessage struct {
	Type          string         `json:"type"` // "session-state"
	SessionID     string         `json:"sessionId"`
	Facilitator   string         `json:"facilitator"`
	Participants  []Participant  `json:"participants"`
	CurrentStory  *string        `json:"currentStory"`
	VotingActive  bool           `json:"votingActive"`
	IsFacilitator bool           `json:"isFacilitator"`
	History       []HistoryEntry `json:"history"`
}

// ParticipantsMessage announces a changed participant list.
type ParticipantsMessage struct {
	Type         string        `json:"type"` // "participant-joined" or "participant-left"
	Participants []Participant `json:"participants"`
}

type VotingStartedMessage struct {
	Type          string `json:"type"` // "voting-started"
	StoryName     string `json:"storyName"`
	TimerDuration int    `json:"timerDuration"` // seconds
	TimerStart    int64  `json:"timerStart"`    // unix millis
}

// VotesUpdateMessage never carries vote values.
type VotesUpdateMessage struct {
	Type              string       `json:"type"` // "votes-update"
	Votes             []MaskedVote `json:"votes"`
	TotalParticipants int          `json:"totalParticipants"`
	VotedCount        int          `json:"votedCount"`
}

type VotesRevealedMessage struct {
	Type         string         `json:"type"` // "votes-revealed"
	Votes        []RevealedVote `json:"votes"`
	AutoRevealed bool           `json:"autoRevealed,omitempty"`
}

type VotingEndedMessage struct {
	Type    string         `json:"type"` // "voting-ended"
	History []HistoryEntry `json:"history"`
}

type SessionEndedMessage struct {
	Type    string `json:"type"` // "session-ended"
	Message string `json:"message"`
}

// ErrorMessage is sent privately when a join is refused.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
