package core

import (
	"errors"
)

var (
	// Poll errors.
	ErrPollNotFound   = errors.New("poll not found")
	ErrPollInProgress = errors.New("a poll is already in progress")
	ErrPollEnded      = errors.New("poll ended or not found")
	ErrAlreadyVoted   = errors.New("student has already voted")
	ErrInvalidOption  = errors.New("option index out of range")

	// Student errors.
	ErrStudentNotFound = errors.New("student not found")

	// Transport errors.
	ErrConnectionNotFound = errors.New("connection not found")

	// Input errors.
	ErrValidation = errors.New("validation failed")
)

// ErrorKind returns the stable wire code for err, used in poll:error and
// vote:error payloads. Unknown errors map to INTERNAL_ERROR.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrPollInProgress):
		return "POLL_IN_PROGRESS"
	case errors.Is(err, ErrPollEnded):
		return "POLL_ENDED"
	case errors.Is(err, ErrAlreadyVoted):
		return "ALREADY_VOTED"
	case errors.Is(err, ErrInvalidOption):
		return "INVALID_OPTION"
	case errors.Is(err, ErrStudentNotFound):
		return "STUDENT_NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}
