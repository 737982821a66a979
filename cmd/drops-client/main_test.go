package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dropsclient/internal/catalog"
	"dropsclient/internal/config"
	"dropsclient/internal/installer"
)

// The run loop owns the config document; a launched game's goroutine
// must not touch it once later syncs start rewriting the same structs.
// Run with the race detector enabled.
func TestLaunchDoesNotShareDocumentWithSync(t *testing.T) {
	t.Setenv("DROPS_CONFIG_DIR", t.TempDir())

	cfg := &config.Config{}
	cfg.AddAccount(config.NewAccount("https://drops.example.com", t.TempDir(), "alice"))
	acct := cfg.ActiveAccount()
	require.NotNil(t, acct)
	acct.Games = []config.Game{{
		Name:            "Alpha",
		NameID:          "alpha",
		SelectedChannel: "stable",
		Releases: []config.Release{{
			ChannelName:    "stable",
			Version:        "1.0.0",
			State:          config.ReleaseStateInstalled,
			ReleaseDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			ExecutablePath: "bin/game",
		}},
	}}

	manager := installer.NewManager()
	ctx := context.Background()

	// Interleave as the run loop does: a launch, then syncs that
	// replace the game struct in place while the launch goroutine is
	// still going (the executable is absent, so it errors and logs).
	for i := 0; i < 50; i++ {
		handleGameRequest(ctx, cfg, acct, manager, "alpha")

		resp := catalog.GamesResponse{Games: []catalog.GameInfo{{
			Name:   fmt.Sprintf("Alpha r%d", i),
			NameID: "alpha",
			Releases: []catalog.ReleaseInfo{{
				Channel:     "stable",
				Version:     "1.0.0",
				ReleaseDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			}},
		}}}
		require.NoError(t, catalog.Merge(acct, resp))
	}

	// Give the last launch goroutines time to run against the mutated
	// document before the test ends.
	time.Sleep(100 * time.Millisecond)
}
