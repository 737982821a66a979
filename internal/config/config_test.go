package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := &Config{}
	cfg.AddAccount(NewAccount("https://drops.example.com", "/games", "alice"))
	return cfg
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("DROPS_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsActive)
	assert.Empty(t, cfg.Accounts)
	assert.Nil(t, cfg.ActiveAccount())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("DROPS_CONFIG_DIR", t.TempDir())

	cfg := testConfig()
	acct := cfg.ActiveAccount()
	require.NotNil(t, acct)
	acct.SessionToken = "id=secret"
	acct.Games = []Game{{
		Name:            "Alpha",
		NameID:          "alpha",
		SelectedChannel: "stable",
		Releases: []Release{{
			ChannelName: "stable",
			Version:     "1.0.0",
			State:       ReleaseStateInstalled,
			ReleaseDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	}}

	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveConfigFilePermissions(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DROPS_CONFIG_DIR", dir)

	require.NoError(t, SaveConfig(testConfig()))

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestValidateRejectsDuplicateAccountIDs(t *testing.T) {
	acct := NewAccount("https://drops.example.com", "/games", "alice")
	cfg := &Config{Accounts: []Account{acct, acct}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateRejectsDanglingActiveAccount(t *testing.T) {
	cfg := testConfig()
	cfg.ActiveAccountID = "no-such-id"

	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadURL(t *testing.T) {
	cfg := &Config{}
	cfg.AddAccount(NewAccount("not a url", "/games", "alice"))

	require.Error(t, SaveConfig(cfg))
}

func TestServerURLOverride(t *testing.T) {
	t.Setenv("DROPS_CONFIG_DIR", t.TempDir())
	require.NoError(t, SaveConfig(testConfig()))

	t.Setenv("DROPS_SERVER_URL", "https://staging.example.com")
	loaded, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, loaded.ActiveAccount())
	assert.Equal(t, "https://staging.example.com", loaded.ActiveAccount().URL)
}

func TestSetActiveAccountByURL(t *testing.T) {
	cfg := &Config{}
	first := NewAccount("https://one.example.com", "/games", "alice")
	second := NewAccount("https://two.example.com", "/games", "bob")
	cfg.AddAccount(first)
	cfg.AddAccount(second)

	assert.True(t, cfg.SetActiveAccountByURL("https://one.example.com"))
	assert.Equal(t, first.ID, cfg.ActiveAccountID)

	assert.False(t, cfg.SetActiveAccountByURL("https://absent.example.com"))
	assert.Equal(t, first.ID, cfg.ActiveAccountID)
}

func TestUpdateInstallState(t *testing.T) {
	acct := Account{Games: []Game{{
		NameID: "alpha",
		Releases: []Release{
			{ChannelName: "stable", Version: "1.0.0", State: ReleaseStateNotInstalled},
			{ChannelName: "beta", Version: "1.0.0", State: ReleaseStateNotInstalled},
		},
	}}}

	require.NoError(t, acct.UpdateInstallState("alpha", "beta", "1.0.0", ReleaseStateInstalled))
	assert.Equal(t, ReleaseStateNotInstalled, acct.Games[0].Releases[0].State)
	assert.Equal(t, ReleaseStateInstalled, acct.Games[0].Releases[1].State)

	assert.Error(t, acct.UpdateInstallState("alpha", "stable", "9.9.9", ReleaseStateInstalled))
	assert.Error(t, acct.UpdateInstallState("missing", "stable", "1.0.0", ReleaseStateInstalled))
}

func TestHasSessionToken(t *testing.T) {
	cfg := testConfig()
	assert.False(t, cfg.HasSessionToken())

	cfg.ActiveAccount().SetSessionToken("id=secret")
	assert.True(t, cfg.HasSessionToken())

	cfg.ActiveAccount().ClearSessionToken()
	assert.False(t, cfg.HasSessionToken())

	cfg.ActiveAccount().SetSessionToken("id=secret")
	cfg.IsActive = false
	assert.False(t, cfg.HasSessionToken())
}
