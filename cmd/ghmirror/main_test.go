package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ghmirror/ghmirror/internal/config"
	"github.com/ghmirror/ghmirror/internal/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logger, err := logging.NewLogger(logging.Config{Level: "error"})
	if err != nil {
		t.Fatal(err)
	}
	return logger
}

// resetFlags restores the flag globals a test has touched.
func resetFlags(t *testing.T) {
	t.Helper()
	origConfigFiles, origAccount, origToken := configFiles, account, token
	origDirectory, origAPIURL, origKinds := directory, apiURL, kinds
	origLogLevel, origLogFormat, origDebugHTTP := logLevel, logFormat, debugHTTP
	t.Cleanup(func() {
		configFiles, account, token = origConfigFiles, origAccount, origToken
		directory, apiURL, kinds = origDirectory, origAPIURL, origKinds
		logLevel, logFormat, debugHTTP = origLogLevel, origLogFormat, origDebugHTTP
	})
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestBuildConfigFlagsOnly(t *testing.T) {
	resetFlags(t)

	configFiles = nil
	account = "alice"
	token = "t0ken"
	directory = "/srv/mirror"

	cfg, err := buildConfig(runCmd)
	if err != nil {
		t.Fatalf("buildConfig returned error: %v", err)
	}
	if cfg.Account != "alice" || cfg.APIToken() != "t0ken" {
		t.Errorf("unexpected account/token: %q/%q", cfg.Account, cfg.APIToken())
	}
	if cfg.Dir() != "/srv/mirror" {
		t.Errorf("unexpected directory %q", cfg.Dir())
	}
}

func TestBuildConfigFromFile(t *testing.T) {
	resetFlags(t)
	t.Setenv("GHMIRROR_TEST_TOKEN", "sekrit")

	configFiles = []string{writeConfig(t, "config.yaml", `{
		account: alice,
		token: '${GHMIRROR_TEST_TOKEN}',
		directory: /var/mirror,
		kinds: [gists]
	}`)}
	account = ""
	token = ""
	directory = ""

	cfg, err := buildConfig(runCmd)
	if err != nil {
		t.Fatalf("buildConfig returned error: %v", err)
	}
	if cfg.Account != "alice" {
		t.Errorf("unexpected account %q", cfg.Account)
	}
	if cfg.APIToken() != "sekrit" {
		t.Errorf("expected token from environment, got %q", cfg.APIToken())
	}
	if diff := cmp.Diff([]config.Kind{config.KindGist}, cfg.Kinds); diff != "" {
		t.Errorf("unexpected kinds (-want +got):\n%s", diff)
	}

	// Flags override file values.
	account = "bob"
	cfg, err = buildConfig(runCmd)
	if err != nil {
		t.Fatalf("buildConfig returned error: %v", err)
	}
	if cfg.Account != "bob" {
		t.Errorf("expected the flag to win, got %q", cfg.Account)
	}
}

func TestBuildConfigMergesFiles(t *testing.T) {
	resetFlags(t)

	configFiles = []string{
		writeConfig(t, "base.yaml", "{account: alice, token: t0ken}"),
		writeConfig(t, "extra.yaml", "{directory: /var/mirror, dry_run: true, interval: 1m}"),
	}
	account = ""
	token = ""
	directory = ""

	cfg, err := buildConfig(runCmd)
	if err != nil {
		t.Fatalf("buildConfig returned error: %v", err)
	}
	if cfg.Account != "alice" || cfg.Dir() != "/var/mirror" {
		t.Errorf("unexpected merge result: %q/%q", cfg.Account, cfg.Dir())
	}
	if !cfg.DryRun {
		t.Error("expected dry_run from the second file")
	}
	if exp, act := config.Duration(time.Minute), cfg.Interval; exp != act {
		t.Errorf("expected interval %v, got %v", exp, act)
	}
}

func TestBuildConfigRejectsUnknownKey(t *testing.T) {
	resetFlags(t)

	configFiles = []string{writeConfig(t, "config.yaml", "{account: alice, token: t, accunt: typo}")}

	if _, err := buildConfig(runCmd); err == nil {
		t.Fatal("expected an unknown key to be rejected")
	}
}

func TestSetupRejectsIncompleteConfig(t *testing.T) {
	resetFlags(t)

	configFiles = nil
	account = ""
	token = ""

	_, _, err := setup(runCmd)
	if err == nil {
		t.Fatal("expected validation to fail")
	}
	if !strings.Contains(err.Error(), "account") {
		t.Errorf("expected the error to name the missing field, got %v", err)
	}
}

func TestBuildClient(t *testing.T) {
	resetFlags(t)

	cfg := &config.Root{Account: "alice", Token: "t0ken"}
	logger := testLogger(t)

	if buildClient(cfg, logger) == nil {
		t.Fatal("expected a client")
	}

	debugHTTP = true
	if buildClient(cfg, logger) == nil {
		t.Fatal("expected a client with the debug transport")
	}
}

func TestVersionCmd(t *testing.T) {
	// versionCmd.Run simply prints version info; should not panic.
	versionCmd.Run(versionCmd, []string{})
}
