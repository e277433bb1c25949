package config

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"

	"github.com/goccy/go-yaml"
)

// Merge reads the given configuration files into a single YAML
// document. Directories are walked and every file below them is read.
// Mappings merge recursively; for conflicting scalars the last file
// wins, or the merge fails when strict is set.
func Merge(configFiles []string, strict bool) ([]byte, error) {
	merged := make(map[string]any)

	for _, f := range configFiles {
		if err := filepath.WalkDir(f, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}

			bs, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read configuration file %v: %v", path, err)
			}

			var doc map[string]any
			if err := yaml.Unmarshal(bs, &doc); err != nil {
				return fmt.Errorf("failed to unmarshal configuration file %v: %v", path, err)
			}

			return mergeInto(merged, doc, "", strict)
		}); err != nil {
			return nil, err
		}
	}

	bs, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged configuration: %v", err)
	}

	return bs, nil
}

// mergeInto folds src into dst. Keys are visited in sorted order so
// conflict errors are deterministic.
func mergeInto(dst, src map[string]any, path string, strict bool) error {
	for _, key := range slices.Sorted(maps.Keys(src)) {
		value := src[key]

		if existing, ok := dst[key]; ok {
			if existingMap, ok1 := existing.(map[string]any); ok1 {
				if valueMap, ok2 := value.(map[string]any); ok2 {
					if err := mergeInto(existingMap, valueMap, path+"/"+key, strict); err != nil {
						return err
					}
					continue
				}
			}

			if strict && !reflect.DeepEqual(existing, value) {
				return fmt.Errorf("conflict for config path %s", path+"/"+key)
			}
		}

		dst[key] = value
	}

	return nil
}
