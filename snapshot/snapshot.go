// Package snapshot writes a point-in-time export of a running instance's
// internal state to disk, for the --dump-state CLI flag.
package snapshot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Write renders v (an overlayd.Instance.Snapshot() result) as YAML and
// writes it to path, truncating any existing file.
func Write(path string, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal debug state: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write debug state to %s: %w", path, err)
	}
	return nil
}
