package core

import (
	"context"

	"github.com/samber/do"
)

type ServiceDependency interface {
	do.Healthcheckable
	do.Shutdownable
}

type Config interface {
	HTTPPort() int
	DatabasePath() string
	LogLevel() string
}

// Storage is the persistent record store for polls, votes and students.
// Implementations must enforce vote uniqueness per (poll, student).
type Storage interface { //nolint:interfacebloat
	ServiceDependency

	CreatePoll(ctx context.Context, poll Poll) error
	GetPoll(ctx context.Context, id string) (Poll, error)
	// GetActivePoll returns the most recently started ACTIVE poll, or
	// ErrPollNotFound when none exists.
	GetActivePoll(ctx context.Context) (Poll, error)
	// CompletePoll transitions a poll to COMPLETED. A no-op for missing
	// or already completed polls.
	CompletePoll(ctx context.Context, id string) error
	CompletedPolls(ctx context.Context) ([]Poll, error)

	// CreateVote returns ErrAlreadyVoted when a vote for the same
	// (poll, student) pair already exists.
	CreateVote(ctx context.Context, vote Vote) error
	HasVote(ctx context.Context, pollID, studentID string) (bool, error)
	VoteCounts(ctx context.Context, pollID string) (map[int]int, error)
	DistinctVoterCount(ctx context.Context, pollID string) (int, error)

	CreateStudent(ctx context.Context, student Student) error
	GetStudent(ctx context.Context, id string) (Student, error)
	UpdateStudentConn(ctx context.Context, id, connID string) error
	ClearStudentConn(ctx context.Context, connID string) error
	DeleteStudent(ctx context.Context, id string) error
	ConnectedStudents(ctx context.Context) ([]Student, error)
	CountStudents(ctx context.Context) (int, error)
}

// Broadcaster fans events out to connected clients. The lifecycle
// manager only talks to this interface, never to the transport.
type Broadcaster interface {
	Broadcast(event string, data any)
	// Send delivers to a single connection. Returns
	// ErrConnectionNotFound when the connection is gone.
	Send(connID string, event string, data any) error
}
