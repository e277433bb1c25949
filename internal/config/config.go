package config

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"

	"github.com/ghmirror/ghmirror/internal/logging"
)

// Internal configuration data structures for ghmirror.

// Root is the top-level configuration structure. A configuration names
// the GitHub account being mirrored, the API token used for listing,
// the destination directory, and the item kinds to process. Everything
// else is optional.
type Root struct {
	Account     string             `json:"account"`
	Token       string             `json:"token"` // May refer to environment variables using the ${VAR_NAME} syntax.
	Directory   string             `json:"directory,omitempty"`
	Kinds       []Kind             `json:"kinds,omitempty"` // Defaults to all kinds.
	DryRun      bool               `json:"dry_run,omitempty"`
	APIURL      string             `json:"api_url,omitempty"`
	Interval    Duration           `json:"interval,omitzero"` // Zero means a single run.
	Include     StringSet          `json:"include,omitempty"`
	Exclude     StringSet          `json:"exclude,omitempty"`
	Credentials *SecretRef         `json:"credentials,omitempty"` // If nil, git transport derives auth from the API token. Note, JSON schema validation overrides this to string type.
	Secrets     map[string]*Secret `json:"secrets,omitempty"`     // Schema validation overrides Secret to object type.
	MetricsAddr string             `json:"metrics_addr,omitempty"`
	Logging     logging.Config     `json:"logging,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for the Root
// struct. It injects the secret names into the secret values and wires
// the credentials reference to the secret store so that callers can
// resolve secret values as needed.
func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw) // Assign the unmarshaled data back to the original struct
	return r.unmarshal(r)
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalJSON by type aliasing
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw) // Assign the unmarshaled data back to the original struct
	return r.unmarshal(r)
}

func (*Root) unmarshal(raw *Root) error {
	for name := range raw.Secrets {
		raw.Secrets[name] = cmp.Or(raw.Secrets[name], &Secret{})
		raw.Secrets[name].Name = name
	}

	if raw.Credentials != nil {
		raw.Credentials.value = raw.Secrets[raw.Credentials.Name]
	}

	return nil
}

// Validate checks the invariants that must hold before a run starts.
// It runs after flag merging and before any network or filesystem
// activity.
func (r *Root) Validate() error {
	if r.Account == "" {
		return errors.New("account must be set")
	}

	if r.APIToken() == "" {
		return errors.New("token must be set")
	}

	if r.APIURL != "" {
		u, err := url.Parse(r.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid api_url %q", r.APIURL)
		}
	}

	if time.Duration(r.Interval) < 0 {
		return errors.New("interval must not be negative")
	}

	if _, err := r.Matcher(); err != nil {
		return err
	}

	if r.Credentials != nil {
		if _, ok := r.Secrets[r.Credentials.Name]; !ok {
			return fmt.Errorf("credentials secret %q not found", r.Credentials.Name)
		}
	}

	return nil
}

// APIToken returns the listing token with environment variable
// references expanded.
func (r *Root) APIToken() string {
	return os.ExpandEnv(r.Token)
}

// Dir returns the destination directory, defaulting to the working
// directory.
func (r *Root) Dir() string {
	return cmp.Or(r.Directory, ".")
}

// SyncKinds returns the kinds to process, in configured order.
func (r *Root) SyncKinds() []Kind {
	if len(r.Kinds) == 0 {
		return AllKinds()
	}
	return r.Kinds
}

// GitCredentials resolves the configured git transport secret, or nil
// when transport auth should be derived from the API token.
func (r *Root) GitCredentials(ctx context.Context) (any, error) {
	if r.Credentials == nil {
		return nil, nil
	}
	return r.Credentials.Resolve(ctx)
}

func ParseFile(filename string) (root *Root, err error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(bs)
}

func Parse(bs []byte) (*Root, error) {
	if err := ValidateSchema(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &root, nil
}

// Instead of marshaling and unmarshaling as int64 it uses strings, like "5m" or "0.5s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	val, err := time.ParseDuration(str)
	*d = Duration(val)
	return err
}

func (d *Duration) UnmarshalYAML(bs []byte) error {
	var s string
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return err
	}
	val, err := time.ParseDuration(s)
	*d = Duration(val)
	return err
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

type StringSet []string

// Matcher applies the include and exclude name filters. With no
// include patterns every name passes; exclude patterns always win.
type Matcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

func (r *Root) Matcher() (*Matcher, error) {
	include, err := compileGlobs(r.Include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern %w", err)
	}

	exclude, err := compileGlobs(r.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern %w", err)
	}

	return &Matcher{include: include, exclude: exclude}, nil
}

func compileGlobs(patterns StringSet) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func (m *Matcher) Match(name string) bool {
	for _, g := range m.exclude {
		if g.Match(name) {
			return false
		}
	}

	if len(m.include) == 0 {
		return true
	}

	for _, g := range m.include {
		if g.Match(name) {
			return true
		}
	}

	return false
}

type SecretRef struct {
	Name  string `json:"-"`
	value *Secret
}

// Resolve retrieves the secret value from the secret store. If the secret is not found, an error is returned.
// If the secret is found, it returns the value as an interface{} which can be further typed as needed.
func (s *SecretRef) Resolve(ctx context.Context) (any, error) {
	if s.value == nil {
		return nil, fmt.Errorf("secret %q not found", s.Name)
	}

	return s.value.Typed(ctx)
}

func (s *SecretRef) MarshalYAML() (any, error) {
	if s.Name == "" {
		return nil, nil
	}
	return s.Name, nil
}

func (s *SecretRef) MarshalJSON() ([]byte, error) {
	v, err := s.MarshalYAML()
	if err != nil {
		return nil, err
	}

	return json.Marshal(v)
}

func (s *SecretRef) UnmarshalYAML(bs []byte) error {
	if err := yaml.Unmarshal(bs, &s.Name); err != nil {
		return fmt.Errorf("expected scalar node: %w", err)
	}
	return nil
}

func (s *SecretRef) UnmarshalJSON(bs []byte) error {
	if err := json.Unmarshal(bs, &s.Name); err != nil {
		return fmt.Errorf("failed to unmarshal SecretRef: %w", err)
	}

	return nil
}
