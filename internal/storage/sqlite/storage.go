package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/do"
	"github.com/sirupsen/logrus"
	"github.com/zhulik/livepoll/internal/core"
	"github.com/zhulik/livepoll/pkg/json"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Storage struct {
	db *sql.DB

	logger logrus.FieldLogger
}

// NewStorage opens the sqlite database and applies the schema.
func NewStorage(injector *do.Injector) (*Storage, error) {
	logger, err := do.Invoke[logrus.FieldLogger](injector)
	if err != nil {
		return nil, err
	}

	logger = logger.WithField("component", "storage.sqlite")

	config, err := do.Invoke[core.Config](injector)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", config.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps in-memory databases coherent and suits
	// the engine's serialized write path.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		return nil, err
	}

	logger.Info("Storage created.")

	return &Storage{db: db, logger: logger}, nil
}

func (s *Storage) HealthCheck() error {
	s.logger.Debug("Storage health check.")

	return s.db.Ping()
}

func (s *Storage) Shutdown() error {
	s.logger.Debug("Storage shutting down...")

	return s.db.Close()
}

func (s *Storage) CreatePoll(ctx context.Context, poll core.Poll) error {
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO polls (id, question, options, duration, started_at, status) VALUES (?, ?, ?, ?, ?, ?)`,
		poll.ID, poll.Question, string(options), poll.Duration, poll.StartedAt.UnixMilli(), string(poll.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", err)
	}

	return nil
}

func (s *Storage) GetPoll(ctx context.Context, id string) (core.Poll, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question, options, duration, started_at, status FROM polls WHERE id = ?`, id,
	)

	return scanPoll(row)
}

func (s *Storage) GetActivePoll(ctx context.Context) (core.Poll, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question, options, duration, started_at, status
		 FROM polls WHERE status = 'ACTIVE' ORDER BY started_at DESC LIMIT 1`,
	)

	return scanPoll(row)
}

func (s *Storage) CompletePoll(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE polls SET status = 'COMPLETED' WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete poll: %w", err)
	}

	return nil
}

func (s *Storage) CompletedPolls(ctx context.Context) ([]core.Poll, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, options, duration, started_at, status
		 FROM polls WHERE status = 'COMPLETED' ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed polls: %w", err)
	}
	defer rows.Close()

	var polls []core.Poll

	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}

		polls = append(polls, poll)
	}

	return polls, rows.Err()
}

func (s *Storage) CreateVote(ctx context.Context, vote core.Vote) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO votes (id, poll_id, student_id, option_index) VALUES (?, ?, ?, ?)`,
		vote.ID, vote.PollID, vote.StudentID, vote.OptionIndex,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrAlreadyVoted
		}

		return fmt.Errorf("failed to insert vote: %w", err)
	}

	return nil
}

func (s *Storage) HasVote(ctx context.Context, pollID, studentID string) (bool, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE poll_id = ? AND student_id = ?`, pollID, studentID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query vote: %w", err)
	}

	return count > 0, nil
}

func (s *Storage) VoteCounts(ctx context.Context, pollID string) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT option_index, COUNT(*) FROM votes WHERE poll_id = ? GROUP BY option_index`, pollID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vote counts: %w", err)
	}
	defer rows.Close()

	counts := map[int]int{}

	for rows.Next() {
		var index, count int

		if err := rows.Scan(&index, &count); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}

		counts[index] = count
	}

	return counts, rows.Err()
}

func (s *Storage) DistinctVoterCount(ctx context.Context, pollID string) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT student_id) FROM votes WHERE poll_id = ?`, pollID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query voter count: %w", err)
	}

	return count, nil
}

func (s *Storage) CreateStudent(ctx context.Context, student core.Student) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO students (id, name, conn_id) VALUES (?, ?, ?)`,
		student.ID, student.Name, nullable(student.ConnID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}

	return nil
}

func (s *Storage) GetStudent(ctx context.Context, id string) (core.Student, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, conn_id FROM students WHERE id = ?`, id,
	)

	return scanStudent(row)
}

func (s *Storage) UpdateStudentConn(ctx context.Context, id, connID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE students SET conn_id = ? WHERE id = ?`, nullable(connID), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update student connection: %w", err)
	}

	return nil
}

func (s *Storage) ClearStudentConn(ctx context.Context, connID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE students SET conn_id = NULL WHERE conn_id = ?`, connID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear student connection: %w", err)
	}

	return nil
}

func (s *Storage) DeleteStudent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM students WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	return nil
}

func (s *Storage) ConnectedStudents(ctx context.Context) ([]core.Student, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, conn_id FROM students WHERE conn_id IS NOT NULL ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query connected students: %w", err)
	}
	defer rows.Close()

	var students []core.Student

	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}

		students = append(students, student)
	}

	return students, rows.Err()
}

func (s *Storage) CountStudents(ctx context.Context) (int, error) {
	var count int

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}

	return count, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPoll(row scannable) (core.Poll, error) {
	var (
		poll      core.Poll
		options   string
		startedAt int64
		status    string
	)

	err := row.Scan(&poll.ID, &poll.Question, &options, &poll.Duration, &startedAt, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Poll{}, core.ErrPollNotFound
		}

		return core.Poll{}, fmt.Errorf("failed to scan poll: %w", err)
	}

	poll.Options, err = json.Unmarshal[[]string]([]byte(options))
	if err != nil {
		return core.Poll{}, err
	}

	poll.StartedAt = time.UnixMilli(startedAt)
	poll.Status = core.PollStatus(status)

	return poll, nil
}

func scanStudent(row scannable) (core.Student, error) {
	var (
		student core.Student
		connID  sql.NullString
	)

	err := row.Scan(&student.ID, &student.Name, &connID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Student{}, core.ErrStudentNotFound
		}

		return core.Student{}, fmt.Errorf("failed to scan student: %w", err)
	}

	student.ConnID = connID.String

	return student, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error

	if !errors.As(err, &sqliteErr) {
		return false
	}

	code := sqliteErr.Code()

	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
