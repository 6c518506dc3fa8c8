// Package registry tracks known students and their live connections.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"github.com/zhulik/livepoll/internal/core"
)

type Registry struct {
	storage core.Storage

	logger logrus.FieldLogger
}

func NewRegistry(injector *do.Injector) (*Registry, error) {
	logger, err := do.Invoke[logrus.FieldLogger](injector)
	if err != nil {
		return nil, err
	}

	storage, err := do.Invoke[core.Storage](injector)
	if err != nil {
		return nil, err
	}

	return &Registry{
		storage: storage,
		logger:  logger.WithField("component", "registry.Registry"),
	}, nil
}

// Join registers a new student identity bound to the given connection.
// A rejoin with the same name is a brand-new identity: continuity across
// reconnects relies on the client presenting its previously issued id.
func (r *Registry) Join(ctx context.Context, name, connID string) (core.Student, error) {
	if strings.TrimSpace(name) == "" {
		return core.Student{}, fmt.Errorf("%w: name must not be blank", core.ErrValidation)
	}

	student := core.Student{
		ID:     uuid.NewString(),
		Name:   name,
		ConnID: connID,
	}

	if err := r.storage.CreateStudent(ctx, student); err != nil {
		return core.Student{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"studentID": student.ID,
		"name":      student.Name,
	}).Info("Student joined")

	return student, nil
}

// ClearConnection nulls the connection handle of whichever student owns
// it. The identity and its votes survive for reconnection.
func (r *Registry) ClearConnection(ctx context.Context, connID string) error {
	return r.storage.ClearStudentConn(ctx, connID)
}

// Remove hard-deletes a student. Their recorded votes still count.
func (r *Registry) Remove(ctx context.Context, studentID string) error {
	if err := r.storage.DeleteStudent(ctx, studentID); err != nil {
		return err
	}

	r.logger.WithField("studentID", studentID).Info("Student removed")

	return nil
}

func (r *Registry) Find(ctx context.Context, studentID string) (core.Student, error) {
	return r.storage.GetStudent(ctx, studentID)
}

// ListConnected returns currently connected students ordered by name.
func (r *Registry) ListConnected(ctx context.Context) ([]core.Student, error) {
	return r.storage.ConnectedStudents(ctx)
}

// CountRegistered counts every student ever joined, connected or not.
// A student who joined then disconnected still owes a vote.
func (r *Registry) CountRegistered(ctx context.Context) (int, error) {
	return r.storage.CountStudents(ctx)
}
