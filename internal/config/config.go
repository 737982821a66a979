package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
)

// ReleaseState is the locally tracked install state of a release.
// The server never sees this field.
type ReleaseState string

const (
	ReleaseStateNotInstalled ReleaseState = "NotInstalled"
	ReleaseStateInstalled    ReleaseState = "Installed"
)

// Release is one installable build of a game on one channel.
type Release struct {
	ChannelName    string       `json:"channel_name"`
	Version        string       `json:"version"`
	Description    string       `json:"description"`
	State          ReleaseState `json:"state"`
	ReleaseDate    time.Time    `json:"release_date"`
	ExecutablePath string       `json:"executable_path"`
	SizeBytes      int64        `json:"size_bytes"`
}

// Game is one title owned by an account. Games are never deleted:
// titles the server no longer lists are kept with Orphaned set so
// installed releases stay playable offline.
type Game struct {
	Name            string    `json:"name"`
	NameID          string    `json:"name_id"`
	Description     string    `json:"description"`
	Author          string    `json:"author"`
	Orphaned        bool      `json:"orphaned"`
	SelectedChannel string    `json:"selected_channel,omitempty"`
	Releases        []Release `json:"releases"`
}

// Account is one configured connection to a catalog server.
type Account struct {
	ID           string `json:"id" validate:"required"`
	GamesDir     string `json:"games_dir" validate:"required"`
	URL          string `json:"url" validate:"required,url"`
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
	Games        []Game `json:"games"`
}

// Config is the whole persisted client document. It is loaded once at
// startup and written back as a whole on every mutation.
type Config struct {
	ActiveAccountID string    `json:"active_account_id"`
	IsActive        bool      `json:"is_active"`
	Accounts        []Account `json:"accounts" validate:"dive"`
}

// envOverrides are the environment knobs honored by the client.
type envOverrides struct {
	ConfigDir string `env:"DROPS_CONFIG_DIR"`
	ServerURL string `env:"DROPS_SERVER_URL"`
}

func parseEnv() envOverrides {
	var o envOverrides
	// Parsing can only fail on type mismatches; both fields are strings.
	_ = env.Parse(&o)
	return o
}

// GetConfigDir returns the per-user configuration directory,
// honoring the DROPS_CONFIG_DIR override.
func GetConfigDir() (string, error) {
	if o := parseEnv(); o.ConfigDir != "" {
		return o.ConfigDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".drops"), nil
}

// GetConfigPath returns the path of the persisted config document.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadConfig loads the persisted document. A missing file yields an
// empty, inactive document rather than an error so first launches can
// route into account setup.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if o := parseEnv(); o.ServerURL != "" {
		if acct := cfg.ActiveAccount(); acct != nil {
			acct.URL = o.ServerURL
		}
	}

	return &cfg, nil
}

// SaveConfig writes the whole document back to disk.
func SaveConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(configDir, "config.json")
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NewAccount creates an account with a fresh id.
func NewAccount(url, gamesDir, username string) Account {
	return Account{
		ID:       uuid.NewString(),
		GamesDir: gamesDir,
		URL:      url,
		Username: username,
	}
}

// AddAccount appends an account and makes it the active one.
func (c *Config) AddAccount(acct Account) {
	c.Accounts = append(c.Accounts, acct)
	c.ActiveAccountID = acct.ID
	c.IsActive = true
}

// ActiveAccount returns the account referenced by ActiveAccountID,
// or nil when the document is inactive or the reference is dangling.
func (c *Config) ActiveAccount() *Account {
	if !c.IsActive {
		return nil
	}
	for i := range c.Accounts {
		if c.Accounts[i].ID == c.ActiveAccountID {
			return &c.Accounts[i]
		}
	}
	return nil
}

// SetActiveAccountByURL switches the active account to the one with
// the given server URL, if any.
func (c *Config) SetActiveAccountByURL(url string) bool {
	for i := range c.Accounts {
		if c.Accounts[i].URL == url {
			c.ActiveAccountID = c.Accounts[i].ID
			c.IsActive = true
			return true
		}
	}
	return false
}

// HasSessionToken reports whether the active account holds a credential.
func (c *Config) HasSessionToken() bool {
	acct := c.ActiveAccount()
	return acct != nil && acct.SessionToken != ""
}

// SetSessionToken stores a fresh credential on the account.
func (a *Account) SetSessionToken(token string) {
	a.SessionToken = token
}

// ClearSessionToken drops the credential, e.g. after the server
// signalled session expiry.
func (a *Account) ClearSessionToken() {
	a.SessionToken = ""
}

// SetUsername records the name the account last authenticated as.
func (a *Account) SetUsername(username string) {
	a.Username = username
}

// Game looks up a game on the account by its stable name-id.
func (a *Account) Game(nameID string) *Game {
	for i := range a.Games {
		if a.Games[i].NameID == nameID {
			return &a.Games[i]
		}
	}
	return nil
}

// UpdateInstallState flips the install state of one known release.
func (a *Account) UpdateInstallState(gameNameID, channelName, version string, state ReleaseState) error {
	game := a.Game(gameNameID)
	if game == nil {
		return fmt.Errorf("failed to find game with name_id: %s", gameNameID)
	}

	for i := range game.Releases {
		r := &game.Releases[i]
		if r.Version == version && r.ChannelName == channelName {
			r.State = state
			return nil
		}
	}

	return fmt.Errorf("failed to find release %s %s of game %s", version, channelName, gameNameID)
}
