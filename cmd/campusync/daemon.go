package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusync/campusync/internal/daemon"
	"github.com/campusync/campusync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon",
	Long: `Run the background agent that keeps the local cache converging
with the remote store.

The daemon:
  1. Imports roster JSON files dropped into the imports directory
  2. Watches the directory for new files
  3. Runs an opportunistic full sync on a fixed interval

Stop with Ctrl+C; shutdown waits for in-flight work.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		cfg := daemon.DefaultConfig()
		cfg.Owner = a.cfg.Owner
		cfg.Role = a.cfg.Role
		cfg.SyncInterval = a.cfg.SyncInterval
		cfg.Logger = a.logger

		d, err := daemon.New(a.syncer, a.roster, a.cfg.ImportsDir, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Starting sync daemon (imports: %s, every %v)\n",
			ui.RenderAccent("🚀"), a.cfg.ImportsDir, a.cfg.SyncInterval)
		fmt.Println("Press Ctrl+C to stop...")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s Daemon failed: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Daemon stopped\n", ui.RenderPass("✓"))
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
