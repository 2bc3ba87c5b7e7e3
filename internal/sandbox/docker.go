package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	containerWorkdir = "/workspace"
	containerPrefix  = "skillforge-"
	killTimeout      = 10 * time.Second
)

// DockerSandbox runs commands inside a throwaway container. The working
// directory is bind-mounted at /workspace so the compiler and the compiled
// binary see the same files they would on the host.
type DockerSandbox struct {
	Policy Policy
	Binary string // docker CLI, default "docker"
}

// NewDockerSandbox creates a sandbox with the given policy. Zero limits
// take their DefaultPolicy values.
func NewDockerSandbox(policy Policy) *DockerSandbox {
	return &DockerSandbox{Policy: policy.WithDefaults(), Binary: "docker"}
}

func (d *DockerSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	name := containerPrefix + uuid.NewString()

	inner := opts
	inner.Command = d.dockerArgs(opts, name)
	inner.Dir = ""
	res, err := run(ctx, d.Policy, inner)

	// Killing the docker client leaves the container running; the daemon
	// has to stop it.
	if ctx.Err() != nil || (res != nil && res.TimedOut) {
		d.kill(name)
	}
	return res, err
}

// kill force-stops a container. A container that already exited is fine.
func (d *DockerSandbox) kill(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()
	_ = exec.CommandContext(ctx, d.binary(), "kill", name).Run()
}

func (d *DockerSandbox) binary() string {
	if d.Binary == "" {
		return "docker"
	}
	return d.Binary
}

func (d *DockerSandbox) dockerArgs(opts ExecOpts, name string) []string {
	args := []string{
		d.binary(), "run", "--rm", "-i",
		"--name", name,
		"--memory", d.Policy.MaxMemory,
	}
	if !d.Policy.Network {
		args = append(args, "--network=none")
	}
	if opts.Dir != "" {
		args = append(args, "-v", opts.Dir+":"+containerWorkdir, "-w", containerWorkdir)
	}
	args = append(args, d.Policy.Image)

	for _, a := range opts.Command {
		args = append(args, containerPath(opts.Dir, a))
	}
	return args
}

// containerPath maps a host path inside dir to its location under the mount.
func containerPath(dir, arg string) string {
	if dir == "" || !filepath.IsAbs(arg) {
		return arg
	}
	rel, err := filepath.Rel(dir, arg)
	if err != nil || strings.HasPrefix(rel, "..") {
		return arg
	}
	return filepath.ToSlash(filepath.Join(containerWorkdir, rel))
}
