//go:generate go run ../build/gen-config-schema.go schema.json

// Package config embeds the JSON schema that configuration files are
// validated against. The schema is generated from the Go configuration
// model; run go generate after changing it.
package config

import (
	_ "embed"
)

//go:embed "schema.json"
var schema []byte

func Schema() []byte {
	return schema
}
