package sandbox

import (
	"context"
	"time"
)

// ExecOpts describes one process invocation.
type ExecOpts struct {
	Command []string // argv; Command[0] is the program
	Dir     string   // working directory, usually a checker workspace
	Stdin   string   // written verbatim, then closed
	Timeout time.Duration

	// Output caps. Zero means "use the policy value".
	MaxStdoutLines int
	MaxOutputChars int
}

// ExecResult is the output of a sandboxed execution.
type ExecResult struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	Signal          string // set when the process was killed by a signal
	TimedOut        bool
	StdoutTruncated bool
	Duration        time.Duration
}

// Sandbox runs a command under the limits of its Policy.
//
// Exec returns an error only when the process could not be run at all
// (launch failure, caller cancellation). A non-zero exit status or a
// timeout is reported through ExecResult.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error)
}

// New returns the sandbox named by driver ("local" or "docker").
func New(driver string, policy Policy) (Sandbox, error) {
	switch driver {
	case "", "local":
		return NewLocalSandbox(policy), nil
	case "docker":
		return NewDockerSandbox(policy), nil
	default:
		return nil, &UnknownDriverError{Driver: driver}
	}
}

// UnknownDriverError is returned by New for an unsupported driver name.
type UnknownDriverError struct {
	Driver string
}

func (e *UnknownDriverError) Error() string {
	return "unknown sandbox driver: " + e.Driver
}
