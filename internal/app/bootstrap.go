package app

import (
	"fmt"
	"os"
)

// EnsureDirs creates the directories the process cannot run without.
func EnsureDirs(s Settings) error {
	dirs := []string{s.ConfigDir, s.LogsDir}
	if s.StoreDriver == "" || s.StoreDriver == "file" {
		dirs = append(dirs, s.MessagesDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
