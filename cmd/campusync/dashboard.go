package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusync/campusync/internal/daemon"
	"github.com/campusync/campusync/internal/dashboard"
	"github.com/campusync/campusync/internal/ui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run the sync daemon with a real-time WebSocket dashboard",
	Long: `Run the sync daemon together with a WebSocket dashboard server
broadcasting sync activity to connected clients.

WebSocket messages include:
- sync_complete: a full sync cycle finished, with per-category counts
- sync_skipped: a cycle was skipped because the device is offline
- import: a roster file was imported
- stats: pending-record counts per category

Example usage:
  campusync dashboard                # Default port 8080
  campusync dashboard --port 9000    # Custom port

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		a, err := newApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.Close()

		if port == 0 {
			port = a.cfg.DashboardPort
		}

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: a.logger,
		})
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}
		defer server.Stop()

		handler := dashboard.NewHandler(server, a.recordStore, a.cfg.Owner, a.cfg.Role, a.logger)

		cfg := daemon.DefaultConfig()
		cfg.Owner = a.cfg.Owner
		cfg.Role = a.cfg.Role
		cfg.SyncInterval = a.cfg.SyncInterval
		cfg.Logger = a.logger
		cfg.OnSyncResult = handler.OnSyncResult
		cfg.OnImport = handler.OnImport

		d, err := daemon.New(a.syncer, a.roster, a.cfg.ImportsDir, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create daemon: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Dashboard listening on http://localhost:%d\n", ui.RenderAccent("📊"), port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s Daemon failed: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Stopped\n", ui.RenderPass("✓"))
	},
}

func init() {
	dashboardCmd.Flags().Int("port", 0, "dashboard port (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}
