package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"workshopcast/pkg/config"
	"workshopcast/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage workshopcast configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (WORKSHOPCAST_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Long: `Write a configuration file holding every option with its default value.

The file is created as '.workshopcast.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the external tools",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".workshopcast.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set paths.tool_dir to the directory holding steamcmd")
	fmt.Println("2. Run 'workshopcast auth login' to store the bot token")
	fmt.Println("3. Run 'workshopcast config validate' to check the setup")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (WORKSHOPCAST_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (discovered or none)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var warnings []string
	if _, err := exec.LookPath(cfg.Tools.SteamCmd); err != nil {
		warnings = append(warnings, fmt.Sprintf("steamcmd not found at %s", cfg.Tools.SteamCmd))
	}
	if _, err := exec.LookPath(cfg.Tools.Archiver); err != nil {
		warnings = append(warnings, fmt.Sprintf("archiver %s not found in PATH", cfg.Tools.Archiver))
	}
	if cfg.Telegram.ChannelID == 0 {
		warnings = append(warnings, "no channel configured, it will be asked for")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Cache root: %s\n", cfg.Paths.CacheRoot)
	fmt.Printf("  Tool dir: %s\n", cfg.Paths.ToolDir)
	fmt.Printf("  Content root: %s\n", cfg.Paths.ContentRoot)
	fmt.Printf("  Session: %s\n", cfg.Telegram.SessionName)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
