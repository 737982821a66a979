package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dropsclient/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage drops-client configuration",
	Long:  `View and manage drops-client configuration.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file paths",
	Long:  `Display paths to existing drops-client configuration files and directories.`,
	Run: func(cmd *cobra.Command, args []string) {
		baseDir, err := config.GetConfigDir()
		if err != nil {
			logger.Error("Failed to determine config directory: %v", err)
			os.Exit(1)
		}

		fmt.Printf("Configuration directory: %s\n", baseDir)

		// Only show files that actually exist
		configPath := filepath.Join(baseDir, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Config file:            %s\n", configPath)
		}

		lockPath := filepath.Join(baseDir, "drops.lock")
		if _, err := os.Stat(lockPath); err == nil {
			fmt.Printf("Instance lock file:     %s\n", lockPath)
		}

		logPath := filepath.Join(baseDir, "client.log")
		if _, err := os.Stat(logPath); err == nil {
			fmt.Printf("Log file:               %s\n", logPath)
		}

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			fmt.Printf("\nNo configuration found. Run 'drops-client login --url SERVER_URL --games-dir DIR' to set up.\n")
		}
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current drops-client configuration in JSON format.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Error("Error loading config: %v", err)
			os.Exit(1)
		}

		// Show actual path being read
		path, _ := config.GetConfigPath()
		fmt.Printf("Config file: %s\n", path)

		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			logger.Error("Failed to marshal config: %v", err)
			os.Exit(1)
		}

		fmt.Println(string(data))
	},
}

// initConfigCommands sets up all config-related commands
func initConfigCommands() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
}
