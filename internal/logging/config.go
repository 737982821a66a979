package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultLogFile is where logs land when no configuration was provided.
func defaultLogFile() string {
	return filepath.Join(os.TempDir(), "drops-client.log")
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	File       string `json:"file"`        // Path to log file
	MaxSize    int    `json:"max_size"`    // Max size in MB
	MaxBackups int    `json:"max_backups"` // Number of backups to keep
	MaxAge     int    `json:"max_age"`     // Max age in days
}

// Validate checks if the configuration is valid (used for CLI)
func (l *LogConfig) Validate() error {
	if l.File == "" {
		return fmt.Errorf("log file path is required")
	}

	if l.MaxSize <= 0 {
		return fmt.Errorf("max_size must be positive")
	}

	if l.MaxBackups < 0 {
		return fmt.Errorf("max_backups must be non-negative")
	}

	if l.MaxAge < 0 {
		return fmt.Errorf("max_age must be non-negative")
	}

	return nil
}
