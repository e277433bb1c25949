package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ghmirror/ghmirror/internal/config"
	"github.com/ghmirror/ghmirror/internal/github"
	"github.com/ghmirror/ghmirror/internal/logging"
	"github.com/ghmirror/ghmirror/internal/mirror"
	"github.com/ghmirror/ghmirror/internal/pool"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	configFiles []string
	account     string
	token       string
	directory   string
	apiURL      string
	kinds       []config.Kind
	logLevel    string
	logFormat   string
	debugHTTP   bool

	// Run command flags
	dryRun       bool
	interval     time.Duration
	metricsAddr  string
	showProgress bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "ghmirror",
	Short:        "Mirror a GitHub account's repositories and gists to local disk",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Synchronize the account's items into the destination directory",
	Long: `Run lists the configured account's repositories and gists through the
GitHub API, keeps the items the account owns, and brings each item's
working copy up to date: absent items are cloned, existing ones pulled,
and a failing pull is retried as a fetch.

With --interval the run repeats on a schedule until interrupted; SIGHUP
forces an immediate pass.`,
	RunE: runRun,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the items a run would mirror, without touching the disk",
	RunE:  runList,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ghmirror %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringSliceVarP(&configFiles, "config", "c", nil, "config file or directory (repeatable, later files win)")
	rootCmd.PersistentFlags().StringVar(&account, "account", "", "GitHub account to mirror")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "GitHub API token (${VAR} references are expanded)")
	rootCmd.PersistentFlags().StringVarP(&directory, "directory", "d", "", "destination directory (default \".\")")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "GitHub API base URL (default "+github.DefaultBaseURL+")")
	rootCmd.PersistentFlags().VarP(
		enumflag.NewSlice(&kinds, "kind", config.KindIdentifiers, enumflag.EnumCaseSensitive),
		"kind", "k", "item kinds to process, repeatable (default repositories and gists)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (pretty, json)")
	rootCmd.PersistentFlags().BoolVar(&debugHTTP, "debug-http", false, "dump API requests and responses at debug level")

	// Run command flags
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be done without running any git operation")
	runCmd.Flags().DurationVar(&interval, "interval", 0, "re-run period; zero runs once and exits")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled when empty)")
	runCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar per item kind")

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	m := mirror.New(cfg, logger).
		WithClient(buildClient(cfg, logger)).
		WithProgress(showProgress)

	group, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		group.Go(func() error {
			return serveMetrics(ctx, cfg.MetricsAddr, logger)
		})
	}

	group.Go(func() error {
		defer cancel() // stops the metrics server once the run is over

		if time.Duration(cfg.Interval) == 0 {
			return m.Run(ctx)
		}
		return runEvery(ctx, m, logger, time.Duration(cfg.Interval))
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runEvery reschedules the pass on a single worker, so passes never
// overlap. A failing pass is logged and retried at the next deadline;
// SIGHUP pulls the next pass forward to now.
func runEvery(ctx context.Context, m *mirror.Mirror, logger *logging.Logger, every time.Duration) error {
	p := pool.New(ctx, 1)

	p.Add("mirror", func(ctx context.Context) time.Time {
		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("pass failed: %v", err)
		}
		return time.Now().Add(every)
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			logger.Infof("SIGHUP received, triggering a pass")
			if err := p.Trigger("mirror"); err != nil {
				logger.Warnf("failed to trigger a pass: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func serveMetrics(ctx context.Context, addr string, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("serving metrics on http://%s/metrics", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	matcher, err := cfg.Matcher()
	if err != nil {
		return err
	}

	client := buildClient(cfg, logger)

	table := tablewriter.NewTable(os.Stdout)
	table.Header("KIND", "NAME", "VISIBILITY", "URL")

	for _, kind := range cfg.SyncKinds() {
		switch kind {
		case config.KindRepository:
			repositories, err := client.ListRepositories(ctx)
			if err != nil {
				return err
			}
			for _, repo := range github.Owned(repositories, cfg.Account) {
				if !matcher.Match(repo.Name) {
					continue
				}
				visibility := "public"
				if repo.Private {
					visibility = "private"
				}
				if err := table.Append(kind.String(), repo.Name, visibility, mirror.CloneURL(cfg.Account, repo.Name)); err != nil {
					return err
				}
			}
		case config.KindGist:
			gists, err := client.ListGists(ctx)
			if err != nil {
				return err
			}
			for _, gist := range github.Owned(gists, cfg.Account) {
				if !matcher.Match(gist.ID) {
					continue
				}
				visibility := "secret"
				if gist.Public {
					visibility = "public"
				}
				if err := table.Append(kind.String(), gist.ID, visibility, gist.GitPullURL); err != nil {
					return err
				}
			}
		}
	}

	return table.Render()
}

// setup assembles the configuration from files and flags, builds the
// logger, and validates before anything touches the network or disk.
func setup(cmd *cobra.Command) (*config.Root, *logging.Logger, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}

// buildConfig loads and merges the configuration files (if any) and
// applies flag overrides on top.
func buildConfig(cmd *cobra.Command) (*config.Root, error) {
	cfg := &config.Root{}

	if len(configFiles) > 0 {
		bs, err := config.Merge(configFiles, false)
		if err != nil {
			return nil, err
		}
		cfg, err = config.Parse(bs)
		if err != nil {
			return nil, err
		}
	}

	if account != "" {
		cfg.Account = account
	}
	if token != "" {
		cfg.Token = token
	}
	if directory != "" {
		cfg.Directory = directory
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if len(kinds) > 0 {
		cfg.Kinds = kinds
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if cmd.Flags().Changed("interval") {
		cfg.Interval = config.Duration(interval)
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}

func buildClient(cfg *config.Root, logger *logging.Logger) *github.Client {
	client := github.New(cfg.APIToken()).WithBaseURL(cfg.APIURL)
	if debugHTTP {
		client = client.WithHTTPClient(&http.Client{Transport: github.NewLoggingTransport(nil, logger)})
	}
	return client
}
