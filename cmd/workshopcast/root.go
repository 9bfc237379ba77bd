package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"workshopcast/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
	channelID  int64
)

// rootCmd runs the interactive menu when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "workshopcast",
	Short: "Mirror Steam Workshop items to a Telegram channel",
	Long: `workshopcast downloads Black Ops III workshop items with steamcmd, packs them
into split RAR volumes and publishes them to a Telegram channel, with the
images and archive parts posted as comments in the linked discussion group.

Run without a subcommand for the interactive menu. Packaged items wait in the
cache until they are published.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInteractive,
}

// Execute runs the root command. Ctrl-C cancels whatever step is running.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Interrupted")
		} else {
			ui.PrintError("Error", err)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .workshopcast.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress logs, tool output and notifications")
	rootCmd.PersistentFlags().Int64Var(&channelID, "channel", 0, "telegram channel id to publish to")

	rootCmd.SetVersionTemplate(`workshopcast {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func runInteractive(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if !quiet {
		ui.PrintBanner()
	}
	return a.workflow.Run(cmd.Context())
}
