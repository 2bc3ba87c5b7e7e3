package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDockerArgs(t *testing.T) {
	p := DefaultPolicy()
	p.RunTimeout = 5 * time.Second
	d := NewDockerSandbox(p)

	args := d.dockerArgs(ExecOpts{
		Command: []string{"/tmp/code_exec_1/solution"},
		Dir:     "/tmp/code_exec_1",
	}, "skillforge-abc")
	got := strings.Join(args, " ")

	for _, want := range []string{
		"docker run --rm -i",
		"--name skillforge-abc",
		"--memory 256m",
		"--network=none",
		"-v /tmp/code_exec_1:/workspace -w /workspace",
		"gcc:13 /workspace/solution",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("args %q missing %q", got, want)
		}
	}
}

func TestDockerArgsNetworkAllowed(t *testing.T) {
	p := DefaultPolicy()
	p.Network = true
	d := NewDockerSandbox(p)

	got := strings.Join(d.dockerArgs(ExecOpts{Command: []string{"gcc", "--version"}}, "skillforge-abc"), " ")
	if strings.Contains(got, "--network=none") {
		t.Errorf("network should be allowed: %q", got)
	}
	if strings.Contains(got, " -v ") {
		t.Errorf("no mount expected without Dir: %q", got)
	}
}

func TestContainerPath(t *testing.T) {
	tests := []struct {
		dir, arg, want string
	}{
		{"/w", "/w/solution", "/workspace/solution"},
		{"/w", "/other/file", "/other/file"},
		{"/w", "-O2", "-O2"},
		{"", "/w/solution", "/w/solution"},
	}
	for _, tt := range tests {
		if got := containerPath(tt.dir, tt.arg); got != tt.want {
			t.Errorf("containerPath(%q, %q) = %q, want %q", tt.dir, tt.arg, got, tt.want)
		}
	}
}

func TestDockerArgsZeroPolicy(t *testing.T) {
	d := NewDockerSandbox(Policy{})

	got := strings.Join(d.dockerArgs(ExecOpts{Command: []string{"gcc", "--version"}}, "c1"), " ")
	if !strings.Contains(got, "--memory 256m") || !strings.Contains(got, "gcc:13 gcc --version") {
		t.Errorf("zero policy args = %q, want default memory and image", got)
	}
}

// fakeDocker writes a stand-in docker CLI that records its arguments.
// "run" hangs; "kill" logs the container name.
func fakeDocker(t *testing.T) (bin, runLog, killLog string) {
	t.Helper()
	dir := t.TempDir()
	bin = filepath.Join(dir, "docker")
	runLog = filepath.Join(dir, "run.log")
	killLog = filepath.Join(dir, "kill.log")
	body := "#!/bin/sh\n" +
		"if [ \"$1\" = kill ]; then echo \"$2\" >> " + killLog + "; exit 0; fi\n" +
		"echo \"$@\" > " + runLog + "\n" +
		"exec sleep 30\n"
	if err := os.WriteFile(bin, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, runLog, killLog
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return strings.TrimSpace(string(data))
}

// containerName extracts the --name value from a logged docker run line.
func containerName(t *testing.T, runLine string) string {
	t.Helper()
	fields := strings.Fields(runLine)
	for i, f := range fields {
		if f == "--name" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	t.Fatalf("no --name in %q", runLine)
	return ""
}

func TestDockerTimeoutKillsContainer(t *testing.T) {
	bin, runLog, killLog := fakeDocker(t)
	d := NewDockerSandbox(DefaultPolicy())
	d.Binary = bin

	res, err := d.Exec(context.Background(), ExecOpts{
		Command: []string{"/w/solution"},
		Timeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected timeout")
	}

	name := containerName(t, readLog(t, runLog))
	if !strings.HasPrefix(name, containerPrefix) {
		t.Errorf("container name = %q, want prefix %q", name, containerPrefix)
	}
	if got := readLog(t, killLog); got != name {
		t.Errorf("killed %q, want %q", got, name)
	}
}

func TestDockerCancelKillsContainer(t *testing.T) {
	bin, runLog, killLog := fakeDocker(t)
	d := NewDockerSandbox(DefaultPolicy())
	d.Binary = bin

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := d.Exec(ctx, ExecOpts{Command: []string{"/w/solution"}, Timeout: 10 * time.Second})
	if err == nil {
		t.Fatal("expected error for cancelled run")
	}

	name := containerName(t, readLog(t, runLog))
	if got := readLog(t, killLog); got != name {
		t.Errorf("killed %q, want %q", got, name)
	}
}

func TestDockerCleanExitSkipsKill(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "docker")
	killLog := filepath.Join(dir, "kill.log")
	body := "#!/bin/sh\nif [ \"$1\" = kill ]; then echo \"$2\" >> " + killLog + "; fi\nexit 0\n"
	if err := os.WriteFile(bin, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	d := NewDockerSandbox(DefaultPolicy())
	d.Binary = bin

	if _, err := d.Exec(context.Background(), ExecOpts{Command: []string{"true"}}); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if _, err := os.Stat(killLog); err == nil {
		t.Error("kill issued for a container that exited on its own")
	}
}
