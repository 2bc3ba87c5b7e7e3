package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a task or submission does not exist.
var ErrNotFound = errors.New("not found")

// SubmissionStatus mirrors the checker's overall status, plus PENDING for
// submissions that have not been checked yet.
type SubmissionStatus string

const (
	StatusPending SubmissionStatus = "PENDING"
	StatusPassed  SubmissionStatus = "PASSED"
	StatusFailed  SubmissionStatus = "FAILED"
	StatusError   SubmissionStatus = "ERROR"
)

// Difficulty grades a task.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyExpert Difficulty = "EXPERT"
)

// Task is a programming exercise with its test specification.
type Task struct {
	ID           string     `json:"id" db:"id" yaml:"id"`
	Title        string     `json:"title" db:"title" yaml:"title"`
	Description  string     `json:"description" db:"description" yaml:"description"`
	CodeTemplate string     `json:"code_template" db:"code_template" yaml:"code_template"`
	TestCases    string     `json:"test_cases" db:"test_cases" yaml:"-"` // raw {"tests":[...]} JSON
	Difficulty   Difficulty `json:"difficulty" db:"difficulty" yaml:"difficulty"`
	// MaxOutputChars overrides the checker's stdout cap when > 0.
	MaxOutputChars int       `json:"max_output_chars" db:"max_output_chars" yaml:"max_output_chars"`
	Published      bool      `json:"published" db:"published" yaml:"published"`
	CreatedAt      time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// Submission is one checked attempt at a task.
type Submission struct {
	ID           string           `json:"id" db:"id"`
	TaskID       string           `json:"task_id" db:"task_id"`
	Code         string           `json:"code" db:"code"`
	Status       SubmissionStatus `json:"status" db:"status"`
	TestResults  string           `json:"test_results,omitempty" db:"test_results"` // report JSON
	ErrorMessage string           `json:"error_message,omitempty" db:"error_message"`
	TestsPassed  int              `json:"tests_passed" db:"tests_passed"`
	TestsTotal   int              `json:"tests_total" db:"tests_total"`
	// Resubmission is set when the task had already been passed before.
	Resubmission bool      `json:"resubmission" db:"resubmission"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TaskListOptions controls filtering and pagination for ListTasks.
type TaskListOptions struct {
	PublishedOnly bool
	Limit         int
	Offset        int
}

// SubmissionListOptions controls filtering and pagination for ListSubmissions.
type SubmissionListOptions struct {
	TaskID string
	Status SubmissionStatus
	Limit  int
	Offset int
}

// Store is the persistence interface for tasks and submissions.
type Store interface {
	// CreateTask inserts a new task. The ID field must be set by the caller.
	CreateTask(ctx context.Context, t *Task) error

	// UpsertTask inserts or replaces a task by ID.
	UpsertTask(ctx context.Context, t *Task) error

	// GetTask returns a task by ID.
	GetTask(ctx context.Context, id string) (*Task, error)

	// ListTasks returns tasks ordered by creation time.
	ListTasks(ctx context.Context, opts TaskListOptions) ([]Task, error)

	// CreateSubmission inserts a checked submission.
	CreateSubmission(ctx context.Context, s *Submission) error

	// GetSubmission returns a submission by ID or unique ID prefix.
	GetSubmission(ctx context.Context, id string) (*Submission, error)

	// ListSubmissions returns submissions newest first.
	ListSubmissions(ctx context.Context, opts SubmissionListOptions) ([]Submission, error)

	// LatestSubmission returns the newest submission for a task, or ErrNotFound.
	LatestSubmission(ctx context.Context, taskID string) (*Submission, error)

	// Close releases resources.
	Close() error
}
