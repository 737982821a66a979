// Package launcher runs installed release executables.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"dropsclient/internal/config"
)

// ReleaseDir is the directory one installed release lives in.
func ReleaseDir(gamesDir, gameNameID string, rel config.Release) string {
	return filepath.Join(gamesDir, gameNameID, rel.ChannelName, rel.Version)
}

// Run executes the release's configured executable with the release
// directory as working directory and the parent environment, and
// waits for it to exit.
func Run(gamesDir, gameNameID string, rel config.Release) error {
	dir := ReleaseDir(gamesDir, gameNameID, rel)
	exePath := filepath.Join(dir, filepath.FromSlash(rel.ExecutablePath))

	if _, err := os.Stat(exePath); err != nil {
		return fmt.Errorf("executable not found at %s: %w", exePath, err)
	}

	cmd := exec.Command(exePath)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run %s: %w", exePath, err)
	}
	return nil
}

// NewestByState returns the newest release by date, optionally
// filtered by channel and install state.
func NewestByState(releases []config.Release, channel string, state *config.ReleaseState) (config.Release, bool) {
	var newest config.Release
	found := false
	for _, r := range releases {
		if channel != "" && r.ChannelName != channel {
			continue
		}
		if state != nil && r.State != *state {
			continue
		}
		if !found || r.ReleaseDate.After(newest.ReleaseDate) {
			newest = r
			found = true
		}
	}
	return newest, found
}

// NewestInstalled is the common lookup when launching a game.
func NewestInstalled(releases []config.Release, channel string) (config.Release, bool) {
	state := config.ReleaseStateInstalled
	return NewestByState(releases, channel, &state)
}
