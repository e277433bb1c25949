// Package mirror drives a synchronization run over one GitHub account:
// it lists the account's items kind by kind, narrows each listing to
// the items the account owns, and brings every selected item's working
// copy up to date, strictly one item at a time.
package mirror

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/ghmirror/ghmirror/internal/config"
	"github.com/ghmirror/ghmirror/internal/github"
	"github.com/ghmirror/ghmirror/internal/gitsync"
	"github.com/ghmirror/ghmirror/internal/logging"
	"github.com/ghmirror/ghmirror/internal/metrics"
	"github.com/ghmirror/ghmirror/internal/progress"
)

// Mirror holds everything one synchronization pass needs. It keeps no
// state between passes: listings are fetched fresh and transport
// credentials are resolved again on every Run.
type Mirror struct {
	config   *config.Root
	client   *github.Client
	gate     gitsync.Gate
	log      *logging.Logger
	progress bool
}

// item is what the per-kind drivers feed the shared loop: the stable
// directory name and the URL the working copy is cloned from.
type item struct {
	name string
	url  string
}

func New(cfg *config.Root, log *logging.Logger) *Mirror {
	return &Mirror{
		config: cfg,
		client: github.New(cfg.APIToken()).WithBaseURL(cfg.APIURL),
		gate:   gitsync.NewGate(cfg.DryRun),
		log:    log,
	}
}

func (m *Mirror) WithClient(client *github.Client) *Mirror {
	m.client = client
	return m
}

func (m *Mirror) WithGate(gate gitsync.Gate) *Mirror {
	m.gate = gate
	return m
}

// WithProgress enables a terminal progress bar advancing once per item.
func (m *Mirror) WithProgress(enabled bool) *Mirror {
	m.progress = enabled
	return m
}

// Run performs one pass over the configured kinds, in configured
// order. A listing failure aborts the pass and is returned; per-item
// git failures are logged and the pass continues with the next item.
func (m *Mirror) Run(ctx context.Context) error {
	matcher, err := m.config.Matcher()
	if err != nil {
		return err
	}

	auth, err := m.auth(ctx)
	if err != nil {
		return err
	}

	for _, kind := range m.config.SyncKinds() {
		var err error
		switch kind {
		case config.KindRepository:
			err = m.syncRepositories(ctx, matcher, auth)
		case config.KindGist:
			err = m.syncGists(ctx, matcher, auth)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// CloneURL builds the SSH-style clone URL of an account's repository.
// Gists are different: their clone URL comes from the listing itself.
func CloneURL(account, name string) string {
	return fmt.Sprintf("git@github.com:%s/%s.git", account, name)
}

// auth resolves the git transport credentials once per pass. A dry run
// opens no transport, so there is nothing to resolve for it.
func (m *Mirror) auth(ctx context.Context) (transport.AuthMethod, error) {
	if m.config.DryRun {
		return nil, nil
	}

	secret, err := m.config.GitCredentials(ctx)
	if err != nil {
		return nil, err
	}

	return gitsync.AuthMethod(ctx, secret, m.config.APIToken())
}

func (m *Mirror) syncRepositories(ctx context.Context, matcher *config.Matcher, auth transport.AuthMethod) error {
	start := metrics.ListingStarted(config.KindRepository.String())

	repositories, err := m.client.ListRepositories(ctx)
	if err != nil {
		metrics.ListingFailure(config.KindRepository.String())
		return err
	}

	var items []item
	for _, repo := range github.Owned(repositories, m.config.Account) {
		if !matcher.Match(repo.Name) {
			continue
		}
		items = append(items, item{name: repo.Name, url: CloneURL(m.config.Account, repo.Name)})
	}

	metrics.ListingSucceeded(config.KindRepository.String(), len(items), start)
	m.log.Debugf("%d repositories listed, syncing %d", len(repositories), len(items))

	return m.syncItems(ctx, config.KindRepository, items, auth)
}

func (m *Mirror) syncGists(ctx context.Context, matcher *config.Matcher, auth transport.AuthMethod) error {
	start := metrics.ListingStarted(config.KindGist.String())

	gists, err := m.client.ListGists(ctx)
	if err != nil {
		metrics.ListingFailure(config.KindGist.String())
		return err
	}

	var items []item
	for _, gist := range github.Owned(gists, m.config.Account) {
		if !matcher.Match(gist.ID) {
			continue
		}
		items = append(items, item{name: gist.ID, url: gist.GitPullURL})
	}

	metrics.ListingSucceeded(config.KindGist.String(), len(items), start)
	m.log.Debugf("%d gists listed, syncing %d", len(gists), len(items))

	return m.syncItems(ctx, config.KindGist, items, auth)
}

// syncItems brings each item's working copy up to date, one at a time,
// in listing order. A failing item is reported once and does not stop
// the batch.
func (m *Mirror) syncItems(ctx context.Context, kind config.Kind, items []item, auth transport.AuthMethod) error {
	var bar *progress.Bar
	if m.progress {
		bar = progress.New(kind.String(), len(items))
		defer bar.Finish()
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := metrics.ItemSyncStarted(kind.String(), it.name)

		s := gitsync.New(filepath.Join(m.config.Dir(), it.name), it.name, it.url, m.log).
			WithAuth(auth).
			WithGate(m.gate)

		if err := s.Execute(ctx); err != nil {
			metrics.ItemSyncFailed(kind.String())
			m.log.Errorf("failed to sync %s %q: %v", kind.Singular(), it.name, err)
		} else {
			metrics.ItemSyncSucceeded(kind.String(), it.name, start)
		}

		bar.Add(1)
	}

	return nil
}
