package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusync/campusync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending local records to the remote store",
	Long: `Run one full sync cycle.

For each entity category the account's role syncs:
  1. Collect locally-written records not yet acknowledged
  2. Push them to the remote collection in one atomic batch
  3. Mark them acknowledged only after the batch commits

Records stay pending when offline or when a category's push fails,
and are retried on the next cycle.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		fmt.Printf("%s Syncing as %s (%s)...\n", ui.RenderAccent("🔄"), a.cfg.Owner, a.cfg.Role)
		start := time.Now()

		result, err := a.syncer.RunFullSync(context.Background(), a.cfg.Owner, a.cfg.Role)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Sync failed: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		if result.Offline {
			fmt.Printf("%s Offline, nothing pushed. Records stay pending.\n", ui.RenderWarn("⚠"))
			return
		}

		categories := make([]string, 0, len(result.Pushed))
		for category := range result.Pushed {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			fmt.Printf("  %s %s: %d pushed\n", ui.RenderPass("✓"), category, result.Pushed[category])
		}
		for _, category := range result.FailedCategories {
			fmt.Printf("  %s %s: push failed, will retry\n", ui.RenderFail("✗"), category)
		}

		elapsed := time.Since(start)
		fmt.Printf("%s Sync complete in %v (%d records)\n",
			ui.RenderPass("✓"), elapsed.Round(time.Millisecond), result.Total())
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
