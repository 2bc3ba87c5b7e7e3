package checker

import (
	"encoding/json"
	"fmt"
)

// Status is the overall result of a check.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
	StatusError  Status = "ERROR"
)

// MsgNoTestCases is the verdict message when the test spec yields nothing to run.
const MsgNoTestCases = "no test cases found"

// Verdict is the structured outcome of checking one submission.
// TestsPassed and TestsTotal always agree with TestResults.
type Verdict struct {
	Status             Status                `json:"status"`
	Message            string                `json:"message,omitempty"`
	CompilationSuccess bool                  `json:"compilationSuccess"`
	CompilationError   string                `json:"compilationError,omitempty"`
	TestResults        []TestExecutionResult `json:"testResults"`
	TestsPassed        int                   `json:"testsPassed"`
	TestsTotal         int                   `json:"testsTotal"`

	// Interrupted marks a check cut short by the caller; it says nothing
	// about the submission.
	Interrupted bool `json:"interrupted,omitempty"`
}

// Aggregate folds a compilation outcome and the per-test results into a
// verdict. A failed compile or an empty result set is an ERROR; otherwise
// the verdict is PASSED only when every test passed.
func Aggregate(outcome CompilationOutcome, results []TestExecutionResult) Verdict {
	if !outcome.Success {
		return Verdict{
			Status:           StatusError,
			Message:          "compilation error:\n" + outcome.Diagnostic,
			CompilationError: outcome.Diagnostic,
			TestResults:      []TestExecutionResult{},
		}
	}

	if len(results) == 0 {
		return Verdict{
			Status:             StatusError,
			Message:            MsgNoTestCases,
			CompilationSuccess: true,
			TestResults:        []TestExecutionResult{},
		}
	}

	v := Verdict{
		CompilationSuccess: true,
		TestResults:        results,
		TestsTotal:         len(results),
	}
	for _, r := range results {
		if r.Passed {
			v.TestsPassed++
		}
	}

	if v.TestsPassed == v.TestsTotal {
		v.Status = StatusPassed
	} else {
		v.Status = StatusFailed
		v.Message = fmt.Sprintf("passed %d of %d tests", v.TestsPassed, v.TestsTotal)
	}
	return v
}

// ErrorVerdict is an ERROR verdict raised before any test ran.
func ErrorVerdict(msg string) Verdict {
	return Verdict{
		Status:      StatusError,
		Message:     msg,
		TestResults: []TestExecutionResult{},
	}
}

// InterruptedVerdict is the ERROR verdict for a cancelled check.
func InterruptedVerdict() Verdict {
	v := ErrorVerdict(MsgInterrupted)
	v.Interrupted = true
	return v
}

// HasTimeout reports whether any test hit the wall-clock limit.
func (v Verdict) HasTimeout() bool {
	for _, r := range v.TestResults {
		if r.TimedOut {
			return true
		}
	}
	return false
}

// ReportEntry is one test in the serialized report.
type ReportEntry struct {
	TestNumber int    `json:"testNumber"`
	Passed     bool   `json:"passed"`
	Input      string `json:"input"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
	Error      string `json:"error,omitempty"`
}

// Report is the per-test detail stored with a submission:
//
//	{"tests": [{"testNumber": 1, "passed": true, ...}]}
type Report struct {
	Tests []ReportEntry `json:"tests"`
}

// NewReport numbers results from 1 in execution order.
func NewReport(results []TestExecutionResult) Report {
	r := Report{Tests: make([]ReportEntry, 0, len(results))}
	for i, tr := range results {
		r.Tests = append(r.Tests, ReportEntry{
			TestNumber: i + 1,
			Passed:     tr.Passed,
			Input:      tr.Input,
			Expected:   tr.ExpectedOutput,
			Actual:     tr.ActualOutput,
			Error:      tr.ErrorMessage,
		})
	}
	return r
}

// JSON encodes the report.
func (r Report) JSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	return string(data), nil
}

// ParseReport decodes a stored report.
func ParseReport(data string) (Report, error) {
	var r Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return Report{}, fmt.Errorf("decoding report: %w", err)
	}
	return r, nil
}
