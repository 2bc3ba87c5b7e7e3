package checker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWorkspaceUnique(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")

	a, err := NewWorkspace(root, nil)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	b, err := NewWorkspace(root, nil)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	if a.Dir == b.Dir {
		t.Fatalf("workspaces share dir %q", a.Dir)
	}
	for _, ws := range []*Workspace{a, b} {
		if !strings.HasPrefix(filepath.Base(ws.Dir), workspacePrefix) {
			t.Errorf("dir %q missing prefix %q", ws.Dir, workspacePrefix)
		}
		if fi, err := os.Stat(ws.Dir); err != nil || !fi.IsDir() {
			t.Errorf("workspace %q not created: %v", ws.Dir, err)
		}
	}
}

func TestWorkspaceCloseRemovesTree(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	deep := filepath.Join(ws.Dir, "a", "b", "c")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{ws.Path(SourceName), filepath.Join(deep, "f"), filepath.Join(ws.Dir, "a", "g")} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace still exists: %v", err)
	}
}

func TestWorkspaceCloseTwice(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWithWorkspaceCleansUp(t *testing.T) {
	root := t.TempDir()

	var seen string
	got, err := WithWorkspace(root, nil, func(ws *Workspace) int {
		seen = ws.Dir
		os.WriteFile(ws.Path("out"), []byte("x"), 0o644)
		return 42
	})
	if err != nil {
		t.Fatalf("WithWorkspace: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Errorf("workspace %q not removed", seen)
	}
}

func TestWithWorkspaceCleansUpOnPanic(t *testing.T) {
	root := t.TempDir()

	var seen string
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		WithWorkspace(root, nil, func(ws *Workspace) int {
			seen = ws.Dir
			panic("boom")
		})
	}()

	if seen == "" {
		t.Fatal("fn never ran")
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Errorf("workspace %q not removed after panic", seen)
	}
}

func TestWithWorkspaceCreateFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	called := false
	_, err := WithWorkspace(file, nil, func(ws *Workspace) bool {
		called = true
		return true
	})
	if err == nil {
		t.Fatal("expected error when root is a regular file")
	}
	if called {
		t.Error("fn should not run without a workspace")
	}
}
