// Package sqlstore implements storage.Store on top of sqlx. SQLite
// (modernc.org/sqlite) and PostgreSQL (lib/pq) share one schema; queries
// are written with '?' and rebound for the driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/michaelbrown/skillforge/internal/storage"
)

// timeLayout is fixed width so text timestamps order correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const defaultLimit = 50

// Store implements storage.Store.
type Store struct {
	db *sqlx.DB
}

// Open connects to the database and runs migrations. driver is "sqlite"
// or "postgres". For SQLite, dsn is a file path or ":memory:".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite":
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("creating db directory: %w", err)
			}
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == "sqlite" {
		// One connection: keeps ":memory:" a single database and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	if err := runMigrations(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

type taskRow struct {
	ID             string `db:"id"`
	Title          string `db:"title"`
	Description    string `db:"description"`
	CodeTemplate   string `db:"code_template"`
	TestCases      string `db:"test_cases"`
	Difficulty     string `db:"difficulty"`
	MaxOutputChars int    `db:"max_output_chars"`
	Published      bool   `db:"published"`
	CreatedAt      string `db:"created_at"`
	UpdatedAt      string `db:"updated_at"`
}

func (r taskRow) task() storage.Task {
	return storage.Task{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		CodeTemplate:   r.CodeTemplate,
		TestCases:      r.TestCases,
		Difficulty:     storage.Difficulty(r.Difficulty),
		MaxOutputChars: r.MaxOutputChars,
		Published:      r.Published,
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
	}
}

type submissionRow struct {
	ID           string `db:"id"`
	TaskID       string `db:"task_id"`
	Code         string `db:"code"`
	Status       string `db:"status"`
	TestResults  string `db:"test_results"`
	ErrorMessage string `db:"error_message"`
	TestsPassed  int    `db:"tests_passed"`
	TestsTotal   int    `db:"tests_total"`
	Resubmission bool   `db:"resubmission"`
	CreatedAt    string `db:"created_at"`
}

func (r submissionRow) submission() storage.Submission {
	return storage.Submission{
		ID:           r.ID,
		TaskID:       r.TaskID,
		Code:         r.Code,
		Status:       storage.SubmissionStatus(r.Status),
		TestResults:  r.TestResults,
		ErrorMessage: r.ErrorMessage,
		TestsPassed:  r.TestsPassed,
		TestsTotal:   r.TestsTotal,
		Resubmission: r.Resubmission,
		CreatedAt:    parseTime(r.CreatedAt),
	}
}

const taskColumns = `id, title, description, code_template, test_cases, difficulty,
	max_output_chars, published, created_at, updated_at`

const submissionColumns = `id, task_id, code, status, test_results, error_message,
	tests_passed, tests_total, resubmission, created_at`

func (s *Store) CreateTask(ctx context.Context, t *storage.Task) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Difficulty == "" {
		t.Difficulty = storage.DifficultyEasy
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.Title, t.Description, t.CodeTemplate, t.TestCases, string(t.Difficulty),
		t.MaxOutputChars, t.Published, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (s *Store) UpsertTask(ctx context.Context, t *storage.Task) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Difficulty == "" {
		t.Difficulty = storage.DifficultyEasy
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			code_template = excluded.code_template,
			test_cases = excluded.test_cases,
			difficulty = excluded.difficulty,
			max_output_chars = excluded.max_output_chars,
			published = excluded.published,
			updated_at = excluded.updated_at`),
		t.ID, t.Title, t.Description, t.CodeTemplate, t.TestCases, string(t.Difficulty),
		t.MaxOutputChars, t.Published, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	t := row.task()
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, opts storage.TaskListOptions) ([]storage.Task, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if opts.PublishedOnly {
		query += ` WHERE published = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	tasks := make([]storage.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

func (s *Store) CreateSubmission(ctx context.Context, sub *storage.Submission) error {
	sub.CreatedAt = time.Now().UTC()
	if sub.Status == "" {
		sub.Status = storage.StatusPending
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		sub.ID, sub.TaskID, sub.Code, string(sub.Status), sub.TestResults, sub.ErrorMessage,
		sub.TestsPassed, sub.TestsTotal, sub.Resubmission, formatTime(sub.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*storage.Submission, error) {
	// Try exact match first, then prefix match
	var rows []submissionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("querying submission: %w", err)
	}
	if len(rows) == 0 {
		err = s.db.SelectContext(ctx, &rows, s.db.Rebind(`
			SELECT `+submissionColumns+` FROM submissions WHERE id LIKE ? || '%' LIMIT 2`), id)
		if err != nil {
			return nil, fmt.Errorf("querying submission: %w", err)
		}
	}

	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("submission %s: %w", id, storage.ErrNotFound)
	case 1:
		sub := rows[0].submission()
		return &sub, nil
	default:
		return nil, fmt.Errorf("ambiguous submission prefix %q", id)
	}
}

func (s *Store) ListSubmissions(ctx context.Context, opts storage.SubmissionListOptions) ([]storage.Submission, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1 = 1`
	var args []any
	if opts.TaskID != "" {
		query += ` AND task_id = ?`
		args = append(args, opts.TaskID)
	}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	var rows []submissionRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}

	subs := make([]storage.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}

func (s *Store) LatestSubmission(ctx context.Context, taskID string) (*storage.Submission, error) {
	var row submissionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT `+submissionColumns+` FROM submissions
		WHERE task_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`), taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest submission for %s: %w", taskID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest submission: %w", err)
	}
	sub := row.submission()
	return &sub, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
