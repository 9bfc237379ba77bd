package main

import (
	"github.com/spf13/cobra"

	"workshopcast/pkg/ui"
)

var publishFetch bool

// fetchCmd downloads, packages and caches one item
var fetchCmd = &cobra.Command{
	Use:   "fetch [id|url]",
	Short: "Download, package and cache a workshop item",
	Long: `Download a workshop item with steamcmd, pack it into RAR volumes and keep the
volumes in the cache until they are published.

Without an argument you will be asked for the item.`,
	Example: `  workshopcast fetch 1234567890
  workshopcast fetch "https://steamcommunity.com/sharedfiles/filedetails/?id=1234567890"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.workflow.Check(); err != nil {
			return err
		}
		item, err := a.workflow.FetchOnly(cmd.Context(), firstArg(args))
		if err != nil {
			return err
		}
		ui.PrintSuccess("Cached " + item.PublisherID + " - " + item.Title)
		ui.PrintInfo("Parts", a.cache.EntryDir(item.PublisherID))
		return nil
	},
}

// publishCmd creates the channel post for one item
var publishCmd = &cobra.Command{
	Use:   "publish [id|url]",
	Short: "Create the channel post for a workshop item",
	Long: `Create the channel post for a workshop item. The preview goes to the channel,
the highlights to the discussion thread.

With --fetch the item is downloaded and packaged first, its archive parts are
uploaded to the thread and the post gets a download link.`,
	Example: `  workshopcast publish 1234567890 --channel -1001234567890
  workshopcast publish 1234567890 --fetch`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if !publishFetch {
			return a.workflow.PublishOnly(cmd.Context(), firstArg(args))
		}
		if err := a.workflow.Check(); err != nil {
			return err
		}
		return a.workflow.FetchAndPublish(cmd.Context(), firstArg(args))
	},
}

// resumeCmd publishes cached items
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Publish items waiting in the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		pending, err := a.cache.HasPending()
		if err != nil {
			return err
		}
		if !pending {
			ui.PrintInfo("Cache", "nothing to publish")
			return nil
		}
		return a.workflow.Resume(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(resumeCmd)

	publishCmd.Flags().BoolVar(&publishFetch, "fetch", false, "download and package the item first and upload its archive")
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
