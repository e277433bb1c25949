package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/thediveo/enumflag/v2"
)

// Kind enumerates the item kinds ghmirror knows how to mirror. The set
// is closed: a Kind is either KindRepository or KindGist and anything
// else is rejected when the configuration is read.
type Kind enumflag.Flag

const (
	KindRepository Kind = iota
	KindGist
)

// KindIdentifiers maps kinds to the identifiers accepted on the
// command line and in configuration files. The canonical spelling is
// listed first.
var KindIdentifiers = map[Kind][]string{
	KindRepository: {"repositories", "repos"},
	KindGist:       {"gists"},
}

// AllKinds returns every kind in processing order.
func AllKinds() []Kind {
	return []Kind{KindRepository, KindGist}
}

// ParseKind maps an identifier to its Kind. Unknown identifiers fail
// with an error listing the accepted kinds.
func ParseKind(s string) (Kind, error) {
	for _, kind := range AllKinds() {
		for _, id := range KindIdentifiers[kind] {
			if s == id {
				return kind, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown kind %q (valid kinds: %s)", s, strings.Join(kindNames(), ", "))
}

func kindNames() []string {
	names := make([]string, 0, len(KindIdentifiers))
	for _, kind := range AllKinds() {
		names = append(names, KindIdentifiers[kind][0])
	}
	return names
}

func (k Kind) String() string {
	if ids, ok := KindIdentifiers[k]; ok {
		return ids[0]
	}
	return fmt.Sprintf("kind(%d)", uint(k))
}

// Singular returns the kind's singular noun for log lines.
func (k Kind) Singular() string {
	switch k {
	case KindGist:
		return "gist"
	default:
		return "repository"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(bs []byte) error {
	var s string
	if err := json.Unmarshal(bs, &s); err != nil {
		return err
	}
	kind, err := ParseKind(s)
	*k = kind
	return err
}

func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

func (k *Kind) UnmarshalYAML(bs []byte) error {
	var s string
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return fmt.Errorf("expected scalar node: %w", err)
	}
	kind, err := ParseKind(s)
	*k = kind
	return err
}
