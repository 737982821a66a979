package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dropsclient/internal/api"
	"dropsclient/internal/catalog"
	"dropsclient/internal/config"
	"dropsclient/internal/installer"
	"dropsclient/internal/instance"
	"dropsclient/internal/launcher"
	"dropsclient/internal/logging"
	"dropsclient/internal/version"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var logger *logging.Logger

func initLogger() {
	logConfig := &logging.LogConfig{
		File:       "~/.drops/client.log",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
	}

	if err := logging.InitLogger(logConfig); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger = logging.GetGlobalLogger()
}

var rootCmd = &cobra.Command{
	Use:   "drops-client",
	Short: "drops client - game library and installer",
	Long: `drops-client keeps a local game library in sync with a drops catalog
server, downloads and installs release archives, and launches installed
games.`,
}

var runCmd = &cobra.Command{
	Use:   "run [game-id]",
	Short: "Run the client, optionally launching or installing one game",
	Long: `Run the client. Only one instance per user does catalog and install
work; a second invocation forwards its game-id argument to the running
instance and exits.

Example:
  drops-client run              # sync the library and serve forwarded requests
  drops-client run my-game      # additionally install or launch my-game`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		configDir, err := config.GetConfigDir()
		if err != nil {
			logger.Error("Failed to resolve config directory: %v", err)
			os.Exit(1)
		}

		coord := instance.New(configDir)
		role, err := coord.Acquire()
		if err != nil {
			// Without the lock we cannot know our singleton status.
			logger.Error("Failed to acquire instance lock: %v", err)
			os.Exit(1)
		}

		if role == instance.RoleForwarding {
			if len(args) == 0 {
				logger.Info("drops-client is already running")
				return
			}
			if err := coord.Forward(args[0]); err != nil {
				logger.Error("Failed to forward request: %v", err)
				os.Exit(1)
			}
			return
		}

		defer coord.Release()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			logger.Info("Received signal %v, shutting down...", sig)
			cancel()
		}()

		requested := ""
		if len(args) == 1 {
			requested = args[0]
		}
		if err := runPrimary(ctx, coord, requested); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
	},
}

// runPrimary is the primary instance's event loop: sync the catalog,
// act on the optional argument, then serve install updates, forwarded
// arguments and the periodic re-sync until cancelled.
func runPrimary(ctx context.Context, coord *instance.Coordinator, requested string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	acct := cfg.ActiveAccount()
	if acct == nil {
		return fmt.Errorf("no active account; run 'drops-client login --url <server>' first")
	}

	if cfg.HasSessionToken() {
		if err := syncCatalog(ctx, cfg, acct); err != nil {
			logger.Error("Catalog sync failed: %v", err)
		}
	} else {
		logger.Warn("No session credential stored; showing the persisted library only. Run 'drops-client login'.")
	}

	manager := installer.NewManager()

	if requested != "" {
		handleGameRequest(ctx, cfg, acct, manager, requested)
	}

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case arg := <-coord.Args():
			logger.Info("Received forwarded request for %q", arg)
			handleGameRequest(ctx, cfg, acct, manager, arg)

		case update := <-manager.Updates():
			applyUpdate(cfg, acct, update)

		case <-ticker.C:
			if !cfg.HasSessionToken() {
				continue
			}
			if err := syncCatalog(ctx, cfg, acct); err != nil {
				logger.Error("Catalog sync failed: %v", err)
			}
		}
	}
}

// syncCatalog fetches the remote catalog and merges it into the
// persisted library. A session-expiry response clears the stored
// credential; any other failure leaves the prior library untouched.
func syncCatalog(ctx context.Context, cfg *config.Config, acct *config.Account) error {
	resp, err := api.FetchGames(ctx, acct.URL, acct.SessionToken)
	if err != nil {
		if errors.Is(err, api.ErrNeedRelogin) || errors.Is(err, api.ErrBadCredentials) {
			acct.ClearSessionToken()
			if saveErr := config.SaveConfig(cfg); saveErr != nil {
				logger.Error("Failed to persist cleared session: %v", saveErr)
			}
			return fmt.Errorf("session expired, run 'drops-client login': %w", err)
		}
		return err
	}

	if err := catalog.SyncAndSave(cfg, acct, resp); err != nil {
		return err
	}

	logger.Info("Library synced: %d games known", len(acct.Games))
	return nil
}

// handleGameRequest resolves a game-id to either launching the newest
// installed release or installing the newest available one.
func handleGameRequest(ctx context.Context, cfg *config.Config, acct *config.Account, manager *installer.Manager, gameNameID string) {
	game := acct.Game(gameNameID)
	if game == nil {
		logger.Error("Unknown game: %q", gameNameID)
		return
	}

	channel := game.SelectedChannel
	if rel, ok := launcher.NewestInstalled(game.Releases, channel); ok {
		logger.Info("Launching %s %s (%s)", game.Name, rel.Version, rel.ChannelName)
		// The run loop keeps mutating the document while the game runs;
		// the goroutine may only capture copies, never the live structs.
		gamesDir, nameID, name := acct.GamesDir, game.NameID, game.Name
		go func() {
			if err := launcher.Run(gamesDir, nameID, rel); err != nil {
				logger.Error("Failed to run %s: %v", name, err)
			}
		}()
		return
	}

	rel, ok := launcher.NewestByState(game.Releases, channel, nil)
	if !ok {
		logger.Error("Game %q has no releases for channel %q", gameNameID, channel)
		return
	}

	logger.Info("Installing %s %s (%s)", game.Name, rel.Version, rel.ChannelName)
	if !manager.Begin(ctx, installer.NewRequest(rel, *game, acct)) {
		logger.Warn("Install of %s already in progress", game.Name)
	}
}

// applyUpdate is the single place install state gets written back:
// the run loop alone mutates the config document.
func applyUpdate(cfg *config.Config, acct *config.Account, update installer.Update) {
	switch {
	case update.Err != nil:
		logger.Error("Install of %s failed: %v", update.GameNameID, update.Err)

	case update.Release != nil:
		rel := update.Release
		if err := acct.UpdateInstallState(rel.GameNameID, rel.ChannelName, rel.Version, config.ReleaseStateInstalled); err != nil {
			logger.Error("Failed to record install state: %v", err)
			return
		}
		if err := config.SaveConfig(cfg); err != nil {
			logger.Error("Failed to save config: %v", err)
			return
		}
		logger.Info("Installed %s %s (%s)", rel.GameNameID, rel.Version, rel.ChannelName)

	default:
		logger.Debug("Downloading %s: %.1f%%", update.GameNameID, update.Percent)
	}
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to a drops server",
	Long: `Authenticate against a drops server and store the session credential.
When no account exists yet, --url and --games-dir create one.

Example:
  drops-client login --username alice --password secret
  drops-client login --url https://drops.example.com --games-dir ~/Games --username alice --password secret`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Error("Error loading config: %v", err)
			os.Exit(1)
		}

		url, _ := cmd.Flags().GetString("url")
		gamesDir, _ := cmd.Flags().GetString("games-dir")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		acct := cfg.ActiveAccount()
		if acct == nil {
			if url == "" || gamesDir == "" {
				logger.Error("No account configured; --url and --games-dir are required for first login")
				os.Exit(1)
			}
			ctx, cancelProbe := context.WithTimeout(context.Background(), 5*time.Second)
			reachable := api.CanReachHost(ctx, url)
			cancelProbe()
			if !reachable {
				logger.Error("Cannot reach server at %s", url)
				os.Exit(1)
			}
			cfg.AddAccount(config.NewAccount(url, gamesDir, username))
			acct = cfg.ActiveAccount()
		} else if url != "" {
			if !cfg.SetActiveAccountByURL(url) {
				cfg.AddAccount(config.NewAccount(url, gamesDir, username))
			}
			acct = cfg.ActiveAccount()
		}

		s := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
		s.Suffix = " Logging in..."
		s.Start()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		token, err := api.Login(ctx, acct.URL, username, password)
		cancel()
		s.Stop()

		if err != nil {
			logger.Error("Login failed: %v", err)
			os.Exit(1)
		}

		acct.SetUsername(username)
		acct.SetSessionToken(token)
		if err := config.SaveConfig(cfg); err != nil {
			logger.Error("Failed to save config: %v", err)
			os.Exit(1)
		}

		logger.Info("Logged in to %s as %s", acct.URL, username)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the remote catalog and merge it into the local library",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Error("Error loading config: %v", err)
			os.Exit(1)
		}
		acct := cfg.ActiveAccount()
		if acct == nil {
			logger.Error("No active account; run 'drops-client login' first")
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncCatalog(ctx, cfg, acct); err != nil {
			logger.Error("Sync failed: %v", err)
			os.Exit(1)
		}

		for _, game := range acct.Games {
			marker := ""
			if game.Orphaned {
				marker = " (orphaned)"
			}
			logger.Info("  %s [%s]%s - %d releases", game.Name, game.NameID, marker, len(game.Releases))
		}
	},
}

var installCmd = &cobra.Command{
	Use:   "install <game-id>",
	Short: "Download and install a release of a game",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Error("Error loading config: %v", err)
			os.Exit(1)
		}
		acct := cfg.ActiveAccount()
		if acct == nil {
			logger.Error("No active account; run 'drops-client login' first")
			os.Exit(1)
		}

		game := acct.Game(args[0])
		if game == nil {
			logger.Error("Unknown game: %q", args[0])
			os.Exit(1)
		}

		channel, _ := cmd.Flags().GetString("channel")
		if channel == "" {
			channel = game.SelectedChannel
		}
		ver, _ := cmd.Flags().GetString("version")

		rel, ok := pickRelease(game.Releases, channel, ver)
		if !ok {
			logger.Error("No release of %q matches channel %q version %q", args[0], channel, ver)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		s := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
		s.Suffix = " Downloading..."
		s.Start()

		events, errc := installer.NewRequest(rel, *game, acct).Start(ctx)
		var installed *installer.InstalledRelease
		for ev := range events {
			s.Suffix = fmt.Sprintf(" Downloading... %.1f%%", ev.Percent)
			if ev.Release != nil {
				installed = ev.Release
			}
		}
		s.Stop()

		if err := <-errc; err != nil {
			logger.Error("Install failed: %v", err)
			os.Exit(1)
		}
		if installed == nil {
			logger.Error("Download ended without a result")
			os.Exit(1)
		}

		if err := acct.UpdateInstallState(installed.GameNameID, installed.ChannelName, installed.Version, config.ReleaseStateInstalled); err != nil {
			logger.Error("Failed to record install state: %v", err)
			os.Exit(1)
		}
		if err := config.SaveConfig(cfg); err != nil {
			logger.Error("Failed to save config: %v", err)
			os.Exit(1)
		}

		logger.Info("Installed %s %s (%s)", installed.GameNameID, installed.Version, installed.ChannelName)
	},
}

// pickRelease chooses the newest release on the channel, or the exact
// version when one was requested.
func pickRelease(releases []config.Release, channel, version string) (config.Release, bool) {
	if version != "" {
		for _, r := range releases {
			if r.Version == version && (channel == "" || r.ChannelName == channel) {
				return r, true
			}
		}
		return config.Release{}, false
	}
	return launcher.NewestByState(releases, channel, nil)
}

var playCmd = &cobra.Command{
	Use:   "play <game-id>",
	Short: "Launch the newest installed release of a game",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Error("Error loading config: %v", err)
			os.Exit(1)
		}
		acct := cfg.ActiveAccount()
		if acct == nil {
			logger.Error("No active account; run 'drops-client login' first")
			os.Exit(1)
		}

		game := acct.Game(args[0])
		if game == nil {
			logger.Error("Unknown game: %q", args[0])
			os.Exit(1)
		}

		channel, _ := cmd.Flags().GetString("channel")
		if channel == "" {
			channel = game.SelectedChannel
		}

		rel, ok := launcher.NewestInstalled(game.Releases, channel)
		if !ok {
			logger.Error("No installed release of %q on channel %q; run 'drops-client install %s'", args[0], channel, args[0])
			os.Exit(1)
		}

		if err := launcher.Run(acct.GamesDir, game.NameID, rel); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("drops-client version: %s", version.Info())

		check, _ := cmd.Flags().GetBool("check")
		if !check {
			return
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Error("Error loading config: %v", err)
			os.Exit(1)
		}
		acct := cfg.ActiveAccount()
		if acct == nil {
			logger.Error("No active account to check against")
			os.Exit(1)
		}

		info, err := version.CheckLatest(acct.URL)
		if err != nil {
			logger.Error("Version check failed: %v", err)
			os.Exit(1)
		}
		if version.IsUpdateAvailable(version.Version, info.LatestClientVersion) {
			logger.Info("Update available: %s -> %s (%s)", version.Version, info.LatestClientVersion, info.DownloadURL)
		} else {
			logger.Info("Client is up to date")
		}
	},
}

func init() {
	initLogger()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	initConfigCommands()

	loginCmd.Flags().String("url", "", "Server URL (creates or selects an account)")
	loginCmd.Flags().String("games-dir", "", "Directory installed games live in (first login)")
	loginCmd.Flags().String("username", "", "Account username")
	loginCmd.Flags().String("password", "", "Account password")
	loginCmd.MarkFlagRequired("username")
	loginCmd.MarkFlagRequired("password")

	installCmd.Flags().String("channel", "", "Channel to install from (default: the game's selected channel)")
	installCmd.Flags().String("version", "", "Exact version to install (default: newest)")

	playCmd.Flags().String("channel", "", "Channel to launch from (default: the game's selected channel)")

	versionCmd.Flags().Bool("check", false, "Ask the server whether a newer client exists")
}

func main() {
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
