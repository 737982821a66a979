// Package catalog merges the server's catalog into the locally
// persisted library. The merge is monotonic with respect to local
// install state: it only ever adds releases, never removes or resets
// them, while still surfacing server-side drift (new games, new
// releases, removed games) to the user.
package catalog

import (
	"fmt"

	"dropsclient/internal/config"
)

// ReconcileError reports an internal invariant violation during a
// merge. The merge is aborted and nothing is persisted.
type ReconcileError struct {
	NameID string
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("failed to find patch target game with name_id: %s", e.NameID)
}

func newRelease(r ReleaseInfo) config.Release {
	return config.Release{
		ChannelName:    r.Channel,
		Version:        r.Version,
		Description:    r.Description,
		State:          config.ReleaseStateNotInstalled,
		ReleaseDate:    r.ReleaseDate,
		ExecutablePath: r.ExecutablePath,
		SizeBytes:      r.SizeBytes,
	}
}

func newGame(info GameInfo) config.Game {
	releases := make([]config.Release, 0, len(info.Releases))
	for _, r := range info.Releases {
		releases = append(releases, newRelease(r))
	}

	selected := ""
	switch {
	case info.DefaultChannel != nil && *info.DefaultChannel != "":
		selected = *info.DefaultChannel
	case len(releases) > 0:
		selected = releases[0].ChannelName
	}

	return config.Game{
		Name:            info.Name,
		NameID:          info.NameID,
		Description:     info.Description,
		Author:          info.Author,
		Orphaned:        false,
		SelectedChannel: selected,
		Releases:        releases,
	}
}

// patchGame rebuilds a known game from the remote descriptor. Remote
// metadata wins, the locally selected channel is preserved, and the
// release list becomes: releases whose version is not yet known
// locally (fresh, NotInstalled) prepended ahead of the full existing
// list, untouched. Install state therefore survives every sync.
func patchGame(existing config.Game, info GameInfo) config.Game {
	known := make(map[string]bool, len(existing.Releases))
	for _, r := range existing.Releases {
		known[r.Version] = true
	}

	var releases []config.Release
	for _, r := range info.Releases {
		if !known[r.Version] {
			releases = append(releases, newRelease(r))
		}
	}
	releases = append(releases, existing.Releases...)

	return config.Game{
		Name:            info.Name,
		NameID:          existing.NameID,
		Description:     info.Description,
		Author:          info.Author,
		Orphaned:        false,
		SelectedChannel: existing.SelectedChannel,
		Releases:        releases,
	}
}

// Merge folds a catalog response into the account's game list in
// place. Games absent from the response are flagged orphaned but kept.
// On error the account may have been partially mutated; callers must
// not persist it.
func Merge(acct *config.Account, resp GamesResponse) error {
	existing := make(map[string]config.Game, len(acct.Games))
	for _, g := range acct.Games {
		existing[g.NameID] = g
	}

	for _, info := range resp.Games {
		local, ok := existing[info.NameID]
		if !ok {
			acct.Games = append(acct.Games, newGame(info))
			continue
		}
		delete(existing, info.NameID)

		patched := patchGame(local, info)
		replaced := false
		for i := range acct.Games {
			if acct.Games[i].NameID == patched.NameID {
				acct.Games[i] = patched
				replaced = true
				break
			}
		}
		if !replaced {
			return &ReconcileError{NameID: patched.NameID}
		}
	}

	// Whatever was not consumed above is no longer on the server.
	for nameID := range existing {
		for i := range acct.Games {
			if acct.Games[i].NameID == nameID {
				acct.Games[i].Orphaned = true
			}
		}
	}

	return nil
}

// SyncAndSave merges the response and persists the whole document,
// but only after the entire response was processed without error.
func SyncAndSave(cfg *config.Config, acct *config.Account, resp GamesResponse) error {
	if err := Merge(acct, resp); err != nil {
		return err
	}
	if err := config.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to persist merged catalog: %w", err)
	}
	return nil
}
