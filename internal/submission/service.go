// Package submission turns checker verdicts into stored submissions: it
// resolves the task, derives the overall status and report, and records
// whether the task had already been solved.
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/michaelbrown/skillforge/internal/cache"
	"github.com/michaelbrown/skillforge/internal/checker"
	"github.com/michaelbrown/skillforge/internal/sandbox"
	"github.com/michaelbrown/skillforge/internal/storage"
)

// Checker is the part of *checker.Checker the service needs.
type Checker interface {
	Check(ctx context.Context, req checker.Request, progress *checker.Progress) checker.Verdict
	CompilerPath() string
}

// ErrInterrupted is returned when a submission's check was cut short by
// its context. Nothing is stored in that case.
var ErrInterrupted = errors.New("check interrupted")

// Service runs and records submissions.
type Service struct {
	store   storage.Store
	checker Checker
	cache   cache.Cache
	policy  sandbox.Policy
	logger  *zap.SugaredLogger
}

// NewService wires a service. A nil cache disables caching.
func NewService(store storage.Store, chk Checker, c cache.Cache, policy sandbox.Policy, logger *zap.SugaredLogger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, checker: chk, cache: c, policy: policy, logger: logger}
}

// Check runs an ad-hoc check, consulting the verdict cache first. On a
// cache hit the progress callbacks are replayed from the cached verdict.
func (s *Service) Check(ctx context.Context, req checker.Request, progress *checker.Progress) checker.Verdict {
	key := cache.Key(req, s.checker.CompilerPath(), s.policy)
	if v, ok := s.cache.Get(ctx, key); ok {
		s.logger.Debugw("Verdict cache hit", "key", key)
		replay(*v, progress)
		return *v
	}

	v := s.checker.Check(ctx, req, progress)
	if cache.Cacheable(v) {
		if err := s.cache.Set(ctx, key, v); err != nil {
			s.logger.Warnw("Failed to cache verdict", "error", err)
		}
	}
	return v
}

// Submit checks code against a task's tests and stores the result.
func (s *Service) Submit(ctx context.Context, taskID, code string) (*storage.Submission, error) {
	return s.SubmitStream(ctx, taskID, code, nil)
}

// SubmitStream is Submit with progress callbacks.
func (s *Service) SubmitStream(ctx context.Context, taskID, code string, progress *checker.Progress) (*storage.Submission, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	solved, err := s.AlreadySolved(ctx, taskID)
	if err != nil {
		return nil, err
	}

	v := s.Check(ctx, checker.Request{
		Source:         code,
		TestsJSON:      task.TestCases,
		MaxOutputChars: task.MaxOutputChars,
	}, progress)
	if v.Interrupted {
		s.logger.Infow("Submission interrupted", "task", task.ID)
		if cause := context.Cause(ctx); cause != nil {
			return nil, fmt.Errorf("%w: %w", ErrInterrupted, cause)
		}
		return nil, ErrInterrupted
	}

	sub, err := Record(v, task.TestCases)
	if err != nil {
		return nil, err
	}
	sub.ID = uuid.New().String()
	sub.TaskID = task.ID
	sub.Code = code
	sub.Resubmission = solved

	// The check finished; store it even if the caller went away meanwhile.
	if err := s.store.CreateSubmission(context.WithoutCancel(ctx), sub); err != nil {
		return nil, fmt.Errorf("saving submission: %w", err)
	}

	s.logger.Infow("Submission checked",
		"submission", sub.ID,
		"task", task.ID,
		"status", sub.Status,
		"passed", sub.TestsPassed,
		"total", sub.TestsTotal,
		"resubmission", sub.Resubmission,
	)
	return sub, nil
}

// AlreadySolved reports whether the newest submission for the task passed.
func (s *Service) AlreadySolved(ctx context.Context, taskID string) (bool, error) {
	latest, err := s.store.LatestSubmission(ctx, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return latest.Status == storage.StatusPassed, nil
}

// Record converts a verdict into the stored submission fields. For ERROR
// verdicts with no test results, the first parseable test case is
// reported as failed with the error text.
func Record(v checker.Verdict, testsJSON string) (*storage.Submission, error) {
	sub := &storage.Submission{
		Status:       storage.SubmissionStatus(v.Status),
		ErrorMessage: v.Message,
		TestsPassed:  v.TestsPassed,
		TestsTotal:   v.TestsTotal,
	}

	report := checker.NewReport(v.TestResults)
	if v.Status == checker.StatusError && len(v.TestResults) == 0 {
		if tests := checker.ParseTestCases(testsJSON); len(tests) > 0 {
			report = checker.Report{Tests: []checker.ReportEntry{{
				TestNumber: 1,
				Input:      tests[0].Input,
				Expected:   tests[0].ExpectedOutput,
				Error:      v.Message,
			}}}
			sub.TestsTotal = 1
		}
	}

	data, err := report.JSON()
	if err != nil {
		return nil, err
	}
	sub.TestResults = data
	return sub, nil
}

func replay(v checker.Verdict, progress *checker.Progress) {
	if progress == nil {
		return
	}
	if progress.Compiled != nil && (v.CompilationSuccess || v.CompilationError != "") {
		progress.Compiled(checker.CompilationOutcome{Success: v.CompilationSuccess, Diagnostic: v.CompilationError})
	}
	if progress.TestDone != nil {
		for i, r := range v.TestResults {
			progress.TestDone(i+1, len(v.TestResults), r)
		}
	}
}
