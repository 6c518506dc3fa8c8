// Package lifecycle owns the poll state machine: at most one ACTIVE
// poll at a time, one vote per student, one auto-close timer per
// active poll.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"github.com/zhulik/livepoll/internal/core"
	"github.com/zhulik/livepoll/internal/tally"
)

type Manager struct {
	storage     core.Storage
	broadcaster core.Broadcaster

	logger logrus.FieldLogger

	// mu serializes every poll-affecting mutation, including timer
	// fires, so that the close-if-stale-then-create decision is atomic.
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewManager(injector *do.Injector) (*Manager, error) {
	logger, err := do.Invoke[logrus.FieldLogger](injector)
	if err != nil {
		return nil, err
	}

	storage, err := do.Invoke[core.Storage](injector)
	if err != nil {
		return nil, err
	}

	broadcaster, err := do.Invoke[core.Broadcaster](injector)
	if err != nil {
		return nil, err
	}

	return &Manager{
		storage:     storage,
		broadcaster: broadcaster,
		logger:      logger.WithField("component", "lifecycle.Manager"),
		timers:      map[string]*time.Timer{},
	}, nil
}

// CreatePoll admits a new poll. A still-live prior poll blocks it with
// ErrPollInProgress; a prior poll that is effectively finished (time
// elapsed or everyone voted) is force-closed first, broadcasting its
// final tally before the new poll starts.
func (m *Manager) CreatePoll(ctx context.Context, question string, options []string, duration int) (core.ActivePollState, error) {
	if strings.TrimSpace(question) == "" {
		return core.ActivePollState{}, fmt.Errorf("%w: question must not be empty", core.ErrValidation)
	}

	if len(options) < core.MinPollOptions {
		return core.ActivePollState{}, fmt.Errorf("%w: at least %d options required", core.ErrValidation, core.MinPollOptions)
	}

	for _, option := range options {
		if strings.TrimSpace(option) == "" {
			return core.ActivePollState{}, fmt.Errorf("%w: options must not be blank", core.ErrValidation)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.storage.GetActivePoll(ctx)

	switch {
	case err == nil:
		finished, err := m.finishedLocked(ctx, active)
		if err != nil {
			return core.ActivePollState{}, err
		}

		if !finished {
			return core.ActivePollState{}, core.ErrPollInProgress
		}

		if err := m.closeLocked(ctx, active); err != nil {
			return core.ActivePollState{}, err
		}
	case !errors.Is(err, core.ErrPollNotFound):
		return core.ActivePollState{}, err
	}

	poll := core.Poll{
		ID:        uuid.NewString(),
		Question:  question,
		Options:   options,
		Duration:  duration,
		StartedAt: time.Now(),
		Status:    core.PollStatusActive,
	}

	if err := m.storage.CreatePoll(ctx, poll); err != nil {
		return core.ActivePollState{}, err
	}

	m.scheduleLocked(poll)

	m.logger.WithFields(logrus.Fields{
		"pollID":   poll.ID,
		"duration": poll.Duration,
	}).Info("Poll started")

	return core.ActivePollState{
		Poll:          poll,
		RemainingTime: poll.Duration,
		Results:       tally.Compute(poll.Options, nil),
	}, nil
}

// SubmitVote records one vote. Rejects votes against non-ACTIVE or
// unknown polls, duplicates, and out-of-range option indexes.
func (m *Manager) SubmitVote(ctx context.Context, pollID, studentID string, optionIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	poll, err := m.storage.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, core.ErrPollNotFound) {
			return core.ErrPollEnded
		}

		return err
	}

	if poll.Status != core.PollStatusActive {
		return core.ErrPollEnded
	}

	voted, err := m.storage.HasVote(ctx, pollID, studentID)
	if err != nil {
		return err
	}

	if voted {
		return core.ErrAlreadyVoted
	}

	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return core.ErrInvalidOption
	}

	return m.storage.CreateVote(ctx, core.Vote{
		ID:          uuid.NewString(),
		PollID:      pollID,
		StudentID:   studentID,
		OptionIndex: optionIndex,
	})
}

// ActiveState returns the current poll with its remaining time and
// tally, or nil when no poll is ACTIVE. Side-effect-free, used both for
// fresh queries and resuming reconnecting clients.
func (m *Manager) ActiveState(ctx context.Context) (*core.ActivePollState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	poll, err := m.storage.GetActivePoll(ctx)
	if err != nil {
		if errors.Is(err, core.ErrPollNotFound) {
			return nil, nil //nolint:nilnil
		}

		return nil, err
	}

	results, err := m.resultsLocked(ctx, poll)
	if err != nil {
		return nil, err
	}

	return &core.ActivePollState{
		Poll:          poll,
		RemainingTime: poll.RemainingSeconds(time.Now()),
		Results:       results,
	}, nil
}

// Results computes the current tally for a poll.
func (m *Manager) Results(ctx context.Context, pollID string) ([]core.OptionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	poll, err := m.storage.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	return m.resultsLocked(ctx, poll)
}

// EndPoll transitions a poll to COMPLETED and broadcasts its final
// tally. A no-op for unknown or already completed polls.
func (m *Manager) EndPoll(ctx context.Context, pollID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	poll, err := m.storage.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, core.ErrPollNotFound) {
			return nil
		}

		return err
	}

	if poll.Status != core.PollStatusActive {
		return nil
	}

	return m.closeLocked(ctx, poll)
}

// AllAnswered reports whether every registered student has voted on the
// poll. True when no students are registered.
func (m *Manager) AllAnswered(ctx context.Context, pollID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.allAnsweredLocked(ctx, pollID)
}

// RestoreSchedule re-arms the auto-close timer for a poll left ACTIVE
// by a previous process, closing it immediately if its time already
// elapsed. Called once on startup.
func (m *Manager) RestoreSchedule(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	poll, err := m.storage.GetActivePoll(ctx)
	if err != nil {
		if errors.Is(err, core.ErrPollNotFound) {
			return nil
		}

		return err
	}

	m.scheduleLocked(poll)

	return nil
}

func (m *Manager) HealthCheck() error {
	m.logger.Debug("Manager health check.")

	return nil
}

// Shutdown stops all pending timers.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pollID, timer := range m.timers {
		timer.Stop()
		delete(m.timers, pollID)
	}

	return nil
}

// scheduleLocked arms the one-shot auto-close timer for an ACTIVE poll.
// A poll whose time already elapsed is closed synchronously.
func (m *Manager) scheduleLocked(poll core.Poll) {
	remaining := poll.RemainingDuration(time.Now())

	if remaining <= 0 {
		if err := m.closeLocked(context.Background(), poll); err != nil {
			m.logger.WithError(err).Error("Failed to close elapsed poll")
		}

		return
	}

	m.timers[poll.ID] = time.AfterFunc(remaining, func() {
		m.autoClose(poll.ID)
	})
}

func (m *Manager) autoClose(pollID string) {
	ctx := context.Background()

	m.mu.Lock()
	defer m.mu.Unlock()

	// The timer was stopped by another close path after this fire was
	// already in flight.
	if _, ok := m.timers[pollID]; !ok {
		return
	}

	delete(m.timers, pollID)

	poll, err := m.storage.GetPoll(ctx, pollID)
	if err != nil || poll.Status != core.PollStatusActive {
		return
	}

	if err := m.closeLocked(ctx, poll); err != nil {
		m.logger.WithError(err).WithField("pollID", pollID).Error("Failed to auto-close poll")
	}
}

// closeLocked completes the poll, cancels its timer and broadcasts the
// final tally.
func (m *Manager) closeLocked(ctx context.Context, poll core.Poll) error {
	if timer, ok := m.timers[poll.ID]; ok {
		timer.Stop()
		delete(m.timers, poll.ID)
	}

	if err := m.storage.CompletePoll(ctx, poll.ID); err != nil {
		return err
	}

	results, err := m.resultsLocked(ctx, poll)
	if err != nil {
		return err
	}

	m.broadcaster.Broadcast(core.EventPollEnded, results)

	m.logger.WithField("pollID", poll.ID).Info("Poll ended")

	return nil
}

// finishedLocked reports whether an ACTIVE poll is effectively over:
// its time ran out or every registered student voted.
func (m *Manager) finishedLocked(ctx context.Context, poll core.Poll) (bool, error) {
	if poll.RemainingDuration(time.Now()) <= 0 {
		return true, nil
	}

	return m.allAnsweredLocked(ctx, poll.ID)
}

func (m *Manager) allAnsweredLocked(ctx context.Context, pollID string) (bool, error) {
	students, err := m.storage.CountStudents(ctx)
	if err != nil {
		return false, err
	}

	if students == 0 {
		return true, nil
	}

	voters, err := m.storage.DistinctVoterCount(ctx, pollID)
	if err != nil {
		return false, err
	}

	return voters >= students, nil
}

func (m *Manager) resultsLocked(ctx context.Context, poll core.Poll) ([]core.OptionResult, error) {
	counts, err := m.storage.VoteCounts(ctx, poll.ID)
	if err != nil {
		return nil, err
	}

	return tally.Compute(poll.Options, counts), nil
}
