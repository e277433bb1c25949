package gitsync_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ghmirror/ghmirror/internal/gitsync"
	"github.com/ghmirror/ghmirror/internal/logging"
)

func testLogger(t *testing.T, buf *bytes.Buffer) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.Config{Level: "debug", Format: logging.FormatJSON})
	if err != nil {
		t.Fatal(err)
	}
	return logger.Output(buf)
}

func initUpstream(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("failed to init upstream: %v", err)
	}
	commitFile(t, dir, "one.txt", "first")
	return dir
}

func commitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("failed to open repo %s: %v", dir, err)
	}
	w, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Add(name); err != nil {
		t.Fatal(err)
	}
	_, err = w.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestExecuteClonesThenPulls(t *testing.T) {
	upstream := initUpstream(t)
	target := filepath.Join(t.TempDir(), "alpha")

	var buf bytes.Buffer
	s := gitsync.New(target, "alpha", upstream, testLogger(t, &buf))

	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("expected no error on first run, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "one.txt")); err != nil {
		t.Fatalf("expected cloned file, got %v", err)
	}
	if !strings.Contains(buf.String(), `cloned \"alpha\"`) {
		t.Fatalf("expected clone log line, got %q", buf.String())
	}

	// A marker that a re-clone would destroy.
	if err := os.WriteFile(filepath.Join(target, ".marker"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	commitFile(t, upstream, "two.txt", "second")

	buf.Reset()
	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("expected no error on second run, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "two.txt")); err != nil {
		t.Fatalf("expected pulled file, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, ".marker")); err != nil {
		t.Fatalf("expected marker to survive, got %v", err)
	}
	if !strings.Contains(buf.String(), `updated \"alpha\"`) {
		t.Fatalf("expected update log line, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "cloned") {
		t.Fatalf("expected no clone on second run, got %q", buf.String())
	}
}

func TestExecuteUpdateWhenUpToDate(t *testing.T) {
	upstream := initUpstream(t)
	target := filepath.Join(t.TempDir(), "alpha")

	var buf bytes.Buffer
	s := gitsync.New(target, "alpha", upstream, testLogger(t, &buf))

	if err := s.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Nothing new upstream: the pull reports up to date, which counts
	// as success.
	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestExecuteFetchFallbackOnDivergence(t *testing.T) {
	upstream := initUpstream(t)
	target := filepath.Join(t.TempDir(), "alpha")

	var buf bytes.Buffer
	s := gitsync.New(target, "alpha", upstream, testLogger(t, &buf))

	if err := s.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Diverge the histories: the pull cannot fast-forward anymore.
	commitFile(t, target, "local.txt", "local work")
	commitFile(t, upstream, "remote.txt", "remote work")

	buf.Reset()
	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("expected fetch fallback to succeed, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "retrying with fetch") {
		t.Fatalf("expected pull failure log line, got %q", out)
	}
	if !strings.Contains(out, `fetched \"alpha\"`) {
		t.Fatalf("expected fetch success log line, got %q", out)
	}

	// The fetch updates remote-tracking state only: the diverged
	// working tree stays as it is.
	if _, err := os.Stat(filepath.Join(target, "local.txt")); err != nil {
		t.Fatalf("expected local work to survive, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "remote.txt")); err == nil {
		t.Fatal("expected remote work to stay out of the working tree")
	}
}

func TestExecuteCloneFailure(t *testing.T) {
	target := filepath.Join(t.TempDir(), "alpha")

	var buf bytes.Buffer
	s := gitsync.New(target, "alpha", filepath.Join(t.TempDir(), "nonexistent"), testLogger(t, &buf))

	err := s.Execute(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var opErr *gitsync.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OpError, got %T", err)
	}
	if opErr.Op != gitsync.OpClone {
		t.Fatalf("expected clone failure, got %q", opErr.Op)
	}
	if !strings.Contains(err.Error(), `clone "alpha"`) {
		t.Fatalf("expected error naming the item, got %q", err.Error())
	}
}

func TestExecuteNeverClonesOverExistingDirectory(t *testing.T) {
	upstream := initUpstream(t)

	// The target exists but is not a repository. The synchronizer must
	// treat it as present and go down the update path, however broken.
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, "keep.txt"), []byte("precious"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	s := gitsync.New(target, "alpha", upstream, testLogger(t, &buf))

	err := s.Execute(context.Background())
	if err == nil {
		t.Fatal("expected error for corrupt target, got nil")
	}

	var opErr *gitsync.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OpError, got %T", err)
	}
	if opErr.Op != gitsync.OpFetch {
		t.Fatalf("expected the fetch fallback to fail last, got %q", opErr.Op)
	}
	if !strings.Contains(buf.String(), "retrying with fetch") {
		t.Fatalf("expected pull failure log line, got %q", buf.String())
	}

	if _, err := os.Stat(filepath.Join(target, "keep.txt")); err != nil {
		t.Fatalf("expected directory contents to survive, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, ".git")); err == nil {
		t.Fatal("expected no clone over the existing directory")
	}
}

func TestDryRunLeavesAbsentTargetAbsent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "alpha")

	var buf bytes.Buffer
	s := gitsync.New(target, "alpha", "https://github.invalid/nowhere.git", testLogger(t, &buf)).
		WithGate(gitsync.NewGate(true))

	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("expected no error in dry-run, got %v", err)
	}

	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected target to stay absent, got %v", err)
	}

	// The success line matches what a live clone would have logged.
	if !strings.Contains(buf.String(), `cloned \"alpha\"`) {
		t.Fatalf("expected clone log line in dry-run, got %q", buf.String())
	}
}

func TestDryRunLeavesPresentTargetUntouched(t *testing.T) {
	// Not even a repository: in dry-run nothing ever inspects it.
	target := t.TempDir()
	if err := os.WriteFile(filepath.Join(target, "keep.txt"), []byte("precious"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	s := gitsync.New(target, "alpha", "https://github.invalid/nowhere.git", testLogger(t, &buf)).
		WithGate(gitsync.NewGate(true))

	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("expected no error in dry-run, got %v", err)
	}
	if !strings.Contains(buf.String(), `updated \"alpha\"`) {
		t.Fatalf("expected update log line in dry-run, got %q", buf.String())
	}
}

func TestNewGate(t *testing.T) {
	var ran bool
	fn := func(context.Context) error {
		ran = true
		return nil
	}

	if err := gitsync.NewGate(false).Run(context.Background(), fn); err != nil || !ran {
		t.Fatalf("expected live gate to run fn, ran=%v err=%v", ran, err)
	}

	ran = false
	if err := gitsync.NewGate(true).Run(context.Background(), fn); err != nil || ran {
		t.Fatalf("expected dry-run gate to skip fn, ran=%v err=%v", ran, err)
	}
}
