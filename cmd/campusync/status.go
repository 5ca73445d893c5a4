package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusync/campusync/internal/syncengine"
	"github.com/campusync/campusync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and connectivity status",
	Long: `Show the local cache status for the configured account:
connectivity, and per-category pending record counts.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		ctx := context.Background()

		fmt.Printf("\n%s\n\n", ui.RenderHeader("Campusync Status"))
		fmt.Printf("  Account: %s (%s)\n", a.cfg.Owner, a.cfg.Role)
		fmt.Printf("  Cache:   %s\n", a.cfg.DBPath)

		if a.checker.Online(ctx) {
			fmt.Printf("  Network: %s\n", ui.RenderPass("online"))
		} else {
			fmt.Printf("  Network: %s\n", ui.RenderWarn("offline"))
		}

		fmt.Printf("\n  Pending records:\n")
		total := 0
		for _, category := range syncengine.CategoriesForRole(a.cfg.Role) {
			pending, err := a.recordStore.PendingSync(ctx, a.cfg.Owner, category)
			if err != nil {
				fmt.Printf("    %s %-12s unreadable: %v\n", ui.RenderFail("✗"), category, err)
				continue
			}
			total += len(pending)
			if len(pending) == 0 {
				fmt.Printf("    %s %-12s clean\n", ui.RenderPass("✓"), category)
			} else {
				fmt.Printf("    %s %-12s %d pending\n", ui.RenderWarn("⚠"), category, len(pending))
			}
		}

		if total == 0 {
			fmt.Printf("\n%s Everything is synced\n", ui.RenderPass("✓"))
		} else {
			fmt.Printf("\n%s %d records waiting for the next sync\n", ui.RenderWarn("⚠"), total)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
