package sandbox

import "time"

// TruncationMarker is appended to stdout cut at MaxOutputChars.
const TruncationMarker = "... (truncated)"

// Policy defines resource limits for compiling and running submissions.
type Policy struct {
	CompileTimeout time.Duration // Compiler wall-clock limit
	RunTimeout     time.Duration // Per-test wall-clock limit
	MaxOutputLines int           // Stdout lines kept; the rest is discarded
	MaxOutputChars int           // Stdout/stderr characters kept

	// Docker driver only.
	Image     string // image providing the C toolchain (e.g. "gcc:13")
	MaxMemory string // Docker memory limit (e.g. "256m")
	Network   bool   // Whether network access is allowed
}

// DefaultPolicy returns the limits used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		CompileTimeout: 10 * time.Second,
		RunTimeout:     5 * time.Second,
		MaxOutputLines: 100,
		MaxOutputChars: 10000,
		Image:          "gcc:13",
		MaxMemory:      "256m",
		Network:        false,
	}
}

// WithDefaults fills every zero limit from DefaultPolicy. Network keeps
// its value since false is both the zero value and the default.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.CompileTimeout <= 0 {
		p.CompileTimeout = d.CompileTimeout
	}
	if p.RunTimeout <= 0 {
		p.RunTimeout = d.RunTimeout
	}
	if p.MaxOutputLines <= 0 {
		p.MaxOutputLines = d.MaxOutputLines
	}
	if p.MaxOutputChars <= 0 {
		p.MaxOutputChars = d.MaxOutputChars
	}
	if p.Image == "" {
		p.Image = d.Image
	}
	if p.MaxMemory == "" {
		p.MaxMemory = d.MaxMemory
	}
	return p
}

func (p Policy) limits(opts ExecOpts) (timeout time.Duration, lines, chars int) {
	timeout = opts.Timeout
	if timeout <= 0 {
		timeout = p.RunTimeout
	}
	lines = opts.MaxStdoutLines
	if lines <= 0 {
		lines = p.MaxOutputLines
	}
	chars = opts.MaxOutputChars
	if chars <= 0 {
		chars = p.MaxOutputChars
	}
	return timeout, lines, chars
}
