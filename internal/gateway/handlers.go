package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhulik/livepoll/internal/core"
	"github.com/zhulik/livepoll/internal/hub"
	"github.com/zhulik/livepoll/pkg/json"
)

// dispatch routes one inbound event. Client-facing failures are
// translated to targeted error events inside each handler; a returned
// error means something the client cannot help with.
func (s *Server) dispatch(ctx context.Context, conn *hub.Connection, envelope hub.Envelope) error {
	switch envelope.Event {
	case core.EventCreatePoll:
		return s.handleCreatePoll(ctx, conn, envelope.Data)
	case core.EventVote:
		return s.handleVote(ctx, conn, envelope.Data)
	case core.EventJoin:
		return s.handleJoin(ctx, conn, envelope.Data)
	case core.EventGetActivePoll:
		return s.handleGetActivePoll(ctx, conn)
	case core.EventGetStudents:
		return s.handleGetStudents(ctx, conn)
	case core.EventKickStudent:
		return s.handleKick(ctx, conn, envelope.Data)
	case core.EventChatMessage:
		return s.handleChat(envelope.Data)
	default:
		s.Logger.WithField("event", envelope.Event).Warn("Unknown event")

		return nil
	}
}

func (s *Server) handleCreatePoll(ctx context.Context, conn *hub.Connection, data json.RawMessage) error {
	req, err := json.Unmarshal[CreatePollRequest](data)
	if err != nil {
		return s.sendError(conn, core.EventPollError, fmt.Errorf("%w: %s", core.ErrValidation, err))
	}

	// A stale prior poll is force-closed inside CreatePoll, so its
	// final poll:ended broadcast goes out before poll:started.
	state, err := s.manager.CreatePoll(ctx, req.Question, req.Options, req.Duration)
	if err != nil {
		return s.sendError(conn, core.EventPollError, err)
	}

	s.hub.Broadcast(core.EventPollStarted, state)

	return nil
}

func (s *Server) handleVote(ctx context.Context, conn *hub.Connection, data json.RawMessage) error {
	req, err := json.Unmarshal[VoteRequest](data)
	if err != nil {
		return s.sendError(conn, core.EventVoteError, fmt.Errorf("%w: %s", core.ErrValidation, err))
	}

	if err := s.manager.SubmitVote(ctx, req.PollID, req.StudentID, req.OptionIndex); err != nil {
		return s.sendError(conn, core.EventVoteError, err)
	}

	results, err := s.manager.Results(ctx, req.PollID)
	if err != nil {
		return err
	}

	s.hub.Broadcast(core.EventPollResults, results)

	return nil
}

func (s *Server) handleJoin(ctx context.Context, conn *hub.Connection, data json.RawMessage) error {
	req, err := json.Unmarshal[JoinRequest](data)
	if err != nil {
		return s.sendError(conn, core.EventPollError, fmt.Errorf("%w: %s", core.ErrValidation, err))
	}

	student, err := s.registry.Join(ctx, req.Name, conn.ID())
	if err != nil {
		return s.sendError(conn, core.EventPollError, err)
	}

	err = conn.WriteEvent(core.EventStudentRegistered, StudentResponse{ID: student.ID, Name: student.Name})
	if err != nil {
		return err
	}

	s.broadcastRoster(ctx)

	return nil
}

func (s *Server) handleGetActivePoll(ctx context.Context, conn *hub.Connection) error {
	state, err := s.manager.ActiveState(ctx)
	if err != nil {
		return s.sendError(conn, core.EventPollError, err)
	}

	// state is null when no poll is active; the client treats that as
	// "nothing to resume".
	return conn.WriteEvent(core.EventPollResume, state)
}

func (s *Server) handleGetStudents(ctx context.Context, conn *hub.Connection) error {
	students, err := s.registry.ListConnected(ctx)
	if err != nil {
		return err
	}

	return conn.WriteEvent(core.EventStudents, roster(students))
}

// handleKick notifies the kicked student directly when still connected,
// and always broadcasts a generic removal notice: after a reconnect the
// stored connection handle may lag behind the live one.
func (s *Server) handleKick(ctx context.Context, _ *hub.Connection, data json.RawMessage) error {
	req, err := json.Unmarshal[KickRequest](data)
	if err != nil {
		return err
	}

	student, err := s.registry.Find(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, core.ErrStudentNotFound) {
			return nil
		}

		return err
	}

	if student.Connected() {
		err := s.hub.Send(student.ConnID, core.EventStudentKicked, KickNotice{StudentID: student.ID})
		if err != nil && !errors.Is(err, core.ErrConnectionNotFound) {
			s.Logger.WithError(err).Warn("Failed to notify kicked student")
		}
	}

	s.hub.Broadcast(core.EventStudentKicked, KickNotice{StudentID: student.ID})

	if err := s.registry.Remove(ctx, student.ID); err != nil {
		return err
	}

	s.broadcastRoster(ctx)

	return nil
}

func (s *Server) handleChat(data json.RawMessage) error {
	message, err := json.Unmarshal[core.ChatMessage](data)
	if err != nil {
		return err
	}

	message.At = time.Now()

	s.hub.Broadcast(core.EventChatMessage, message)

	return nil
}

func (s *Server) broadcastRoster(ctx context.Context) {
	students, err := s.registry.ListConnected(ctx)
	if err != nil {
		s.Logger.WithError(err).Error("Failed to list students")

		return
	}

	s.hub.Broadcast(core.EventStudents, roster(students))
}

func (s *Server) sendError(conn *hub.Connection, event string, err error) error {
	s.Logger.WithError(err).WithField("event", event).Debug("Rejecting client event")

	return conn.WriteEvent(event, ErrorResponse{
		Kind:    core.ErrorKind(err),
		Message: err.Error(),
	})
}

func roster(students []core.Student) []StudentResponse {
	result := make([]StudentResponse, len(students))

	for i, student := range students {
		result[i] = StudentResponse{ID: student.ID, Name: student.Name}
	}

	return result
}
