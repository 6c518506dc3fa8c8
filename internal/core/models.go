package core

import (
	"time"
)

type PollStatus string

const (
	PollStatusActive    PollStatus = "ACTIVE"
	PollStatusCompleted PollStatus = "COMPLETED"
)

type Poll struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Options   []string   `json:"options"`
	Duration  int        `json:"duration"` // seconds
	StartedAt time.Time  `json:"startedAt"`
	Status    PollStatus `json:"status"`
}

// RemainingSeconds returns how long the poll has left at the given
// instant. Never negative.
func (p Poll) RemainingSeconds(now time.Time) int {
	elapsed := int(now.Sub(p.StartedAt) / time.Second)

	return max(p.Duration-elapsed, 0)
}

// RemainingDuration is RemainingSeconds at millisecond precision, used
// when arming the auto-close timer.
func (p Poll) RemainingDuration(now time.Time) time.Duration {
	return time.Duration(p.Duration)*time.Second - now.Sub(p.StartedAt)
}

// Student identity is durable across reconnects: ConnID is cleared on
// disconnect, the row is deleted only on kick.
type Student struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	ConnID string `json:"-"`
}

func (s Student) Connected() bool {
	return s.ConnID != ""
}

type Vote struct {
	ID          string
	PollID      string
	StudentID   string
	OptionIndex int
}

// OptionResult is one tally entry, parallel to the poll's option list.
type OptionResult struct {
	Option     string `json:"option"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

// ActivePollState is the payload for poll:started and poll:resume.
type ActivePollState struct {
	Poll          Poll           `json:"poll"`
	RemainingTime int            `json:"remainingTime"`
	Results       []OptionResult `json:"results"`
}

type ChatMessage struct {
	SenderRole string    `json:"senderRole"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	At         time.Time `json:"at"`
}

// HistoryEntry is one completed poll in the GET /polls/history projection.
type HistoryEntry struct {
	Question   string         `json:"question"`
	Results    []OptionResult `json:"results"`
	TotalVotes int            `json:"totalVotes"`
	StartedAt  time.Time      `json:"startedAt"`
}
