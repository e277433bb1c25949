// gitsync package maintains the local working copy of a single
// mirrored item. It implements no threadpooling, it is expected that
// the caller will handle ordering and concurrency. The Synchronizer is
// not thread-safe.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/ghmirror/ghmirror/internal/logging"
)

// Op names the git operation an OpError belongs to.
type Op string

const (
	OpClone Op = "clone"
	OpPull  Op = "pull"
	OpFetch Op = "fetch"
)

// OpError wraps a git failure with the operation and the item it
// belongs to. The caller decides whether it is fatal; during a batch
// run it is reported and the batch moves on.
type OpError struct {
	Op   Op
	Name string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Gate runs the side-effecting git operations. The live gate invokes
// them; the dry-run gate reports success without invoking anything, so
// a dry run takes the same branches and emits the same success lines
// as a live run while leaving the filesystem untouched.
type Gate interface {
	Run(ctx context.Context, fn func(context.Context) error) error
}

// NewGate returns the dry-run gate when dryRun is set and the live
// gate otherwise.
func NewGate(dryRun bool) Gate {
	if dryRun {
		return dryRunGate{}
	}
	return liveGate{}
}

type liveGate struct{}

func (liveGate) Run(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type dryRunGate struct{}

func (dryRunGate) Run(context.Context, func(context.Context) error) error {
	return nil
}

// Synchronizer brings the clone of one item at path up to date.
type Synchronizer struct {
	path string
	name string
	url  string
	auth transport.AuthMethod
	gate Gate
	log  *logging.Logger
}

// New creates a new Synchronizer for the item called name, cloned from
// url into path. The caller should guarantee that the path is unique
// for each item and not shared between Synchronizer instances.
func New(path, name, url string, log *logging.Logger) *Synchronizer {
	return &Synchronizer{path: path, name: name, url: url, gate: liveGate{}, log: log}
}

func (s *Synchronizer) WithAuth(auth transport.AuthMethod) *Synchronizer {
	s.auth = auth
	return s
}

func (s *Synchronizer) WithGate(gate Gate) *Synchronizer {
	s.gate = gate
	return s
}

// Execute performs the synchronization of the item. If the target
// directory does not exist on disk, clone it. If it does exist, pull
// the latest changes, falling back to a fetch when the pull fails.
// Only the directory's existence decides between the two: an existing
// directory is never cloned over, whatever it contains.
func (s *Synchronizer) Execute(ctx context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return s.clone(ctx)
	}
	return s.update(ctx)
}

func (s *Synchronizer) clone(ctx context.Context) error {
	err := s.gate.Run(ctx, func(ctx context.Context) error {
		_, err := git.PlainCloneContext(ctx, s.path, false, &git.CloneOptions{
			URL:  s.url,
			Auth: s.auth,
		})
		return err
	})
	if err != nil {
		return &OpError{Op: OpClone, Name: s.name, Err: err}
	}

	s.log.Infof("cloned %q", s.name)
	return nil
}

func (s *Synchronizer) update(ctx context.Context) error {
	if err := s.pull(ctx); err != nil {
		s.log.Warnf("pull %q failed, retrying with fetch: %v", s.name, err)

		if err := s.fetch(ctx); err != nil {
			return &OpError{Op: OpFetch, Name: s.name, Err: err}
		}

		s.log.Infof("fetched %q", s.name)
		return nil
	}

	s.log.Infof("updated %q", s.name)
	return nil
}

func (s *Synchronizer) pull(ctx context.Context) error {
	return s.gate.Run(ctx, func(ctx context.Context) error {
		repository, err := git.PlainOpen(s.path)
		if err != nil {
			return err
		}

		w, err := repository.Worktree()
		if err != nil {
			return err
		}

		if err := w.PullContext(ctx, &git.PullOptions{Auth: s.auth}); !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return err
		}
		return nil
	})
}

// fetch updates the remote-tracking refs without touching the working
// tree. It never resets or rebases; a diverged local copy stays
// diverged until someone intervenes.
func (s *Synchronizer) fetch(ctx context.Context) error {
	return s.gate.Run(ctx, func(ctx context.Context) error {
		repository, err := git.PlainOpen(s.path)
		if err != nil {
			return err
		}

		if err := repository.FetchContext(ctx, &git.FetchOptions{Auth: s.auth}); !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return err
		}
		return nil
	})
}
