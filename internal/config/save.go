package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/hashstructure/v2"
)

// Save persists the configuration to a JSON file.
// Creates parent directories if they don't exist.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Hash returns a stable structural hash of cfg, used to detect config
// changes between runs (ambient diagnostic, never consulted by the
// scheduler or workflow engine).
func Hash(cfg *Config) (uint64, error) {
	h, err := hashstructure.Hash(cfg, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, fmt.Errorf("hashing config: %w", err)
	}
	return h, nil
}
