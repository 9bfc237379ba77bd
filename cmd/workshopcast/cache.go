package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"workshopcast/pkg/cache"
	"workshopcast/pkg/logger"
	"workshopcast/pkg/models"
	"workshopcast/pkg/ui"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect packaged items waiting to be published",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		items, err := store.ListPending()
		if err != nil {
			return err
		}
		if len(items) == 0 {
			ui.PrintInfo("Cache", "empty")
			return nil
		}

		ui.PrintHighlight("Cached Items")
		fmt.Println()
		for i, item := range items {
			fmt.Printf("%d. %s - %s\n", i+1, item.PublisherID, item.Title)
			fmt.Printf("   Size: %s, parts: %d\n", item.ContentSize, len(item.ArchiveParts))
			fmt.Printf("   Languages: %s\n", item.Languages.Summary())
			fmt.Printf("   Path: %s\n", store.EntryDir(item.PublisherID))
		}
		return nil
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict <id|url>...",
	Short: "Remove cached items without publishing them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		for _, arg := range args {
			id, err := models.ParseID(arg)
			if err != nil {
				return err
			}
			if !store.Has(id) {
				ui.PrintWarning("Not cached", id)
				continue
			}
			if err := store.Evict(id); err != nil {
				return err
			}
			ui.PrintSuccess("Evicted " + id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheEvictCmd)
}

func openCache() (*cache.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cache.NewManager(cfg.Paths.CacheRoot, logger.GetLogger())
}
