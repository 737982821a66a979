package launcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropsclient/internal/config"
)

func rel(channel, version string, day int, state config.ReleaseState) config.Release {
	return config.Release{
		ChannelName: channel,
		Version:     version,
		State:       state,
		ReleaseDate: time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestReleaseDir(t *testing.T) {
	dir := ReleaseDir("/games", "alpha", rel("stable", "1.0.0", 1, config.ReleaseStateInstalled))
	assert.Equal(t, filepath.Join("/games", "alpha", "stable", "1.0.0"), dir)
}

func TestNewestByState(t *testing.T) {
	installed := config.ReleaseStateInstalled
	releases := []config.Release{
		rel("stable", "1.0.0", 1, config.ReleaseStateInstalled),
		rel("stable", "2.0.0", 5, config.ReleaseStateNotInstalled),
		rel("beta", "2.1.0-beta", 7, config.ReleaseStateInstalled),
		rel("stable", "1.5.0", 3, config.ReleaseStateInstalled),
	}

	t.Run("newest on channel regardless of state", func(t *testing.T) {
		got, ok := NewestByState(releases, "stable", nil)
		require.True(t, ok)
		assert.Equal(t, "2.0.0", got.Version)
	})

	t.Run("newest installed on channel", func(t *testing.T) {
		got, ok := NewestByState(releases, "stable", &installed)
		require.True(t, ok)
		assert.Equal(t, "1.5.0", got.Version)
	})

	t.Run("empty channel matches all channels", func(t *testing.T) {
		got, ok := NewestByState(releases, "", &installed)
		require.True(t, ok)
		assert.Equal(t, "2.1.0-beta", got.Version)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := NewestByState(releases, "nightly", nil)
		assert.False(t, ok)
	})

	t.Run("empty list", func(t *testing.T) {
		_, ok := NewestByState(nil, "stable", nil)
		assert.False(t, ok)
	})
}

func TestNewestInstalled(t *testing.T) {
	releases := []config.Release{
		rel("stable", "1.0.0", 1, config.ReleaseStateInstalled),
		rel("stable", "2.0.0", 5, config.ReleaseStateNotInstalled),
	}

	got, ok := NewestInstalled(releases, "stable")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", got.Version)

	_, ok = NewestInstalled(releases, "beta")
	assert.False(t, ok)
}

func TestRunMissingExecutable(t *testing.T) {
	r := rel("stable", "1.0.0", 1, config.ReleaseStateInstalled)
	r.ExecutablePath = "bin/game"

	err := Run(t.TempDir(), "alpha", r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable not found")
}
