// Command campusync is the offline-first sync CLI for the department
// app backend: a local record cache, a push-based sync engine, and
// the roster/attendance/gallery services built on top of them.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusync/campusync/internal/blob"
	"github.com/campusync/campusync/internal/config"
	"github.com/campusync/campusync/internal/kv"
	"github.com/campusync/campusync/internal/logging"
	"github.com/campusync/campusync/internal/netcheck"
	"github.com/campusync/campusync/internal/remote"
	"github.com/campusync/campusync/internal/services/attendance"
	"github.com/campusync/campusync/internal/services/gallery"
	"github.com/campusync/campusync/internal/services/students"
	"github.com/campusync/campusync/internal/store"
	"github.com/campusync/campusync/internal/syncengine"
)

var (
	configPath string
	ownerFlag  string
	roleFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "campusync",
	Short: "Offline-first sync core for the department app",
	Long: `campusync keeps a local record cache that works without a network
and pushes pending changes to the remote store whenever one is
available. Reads always come from the local cache first.`,
	SilenceUsage: true,
}

// app bundles the wired-up services a command needs.
type app struct {
	cfg         *config.Config
	backend     kv.Backend
	recordStore *store.RecordStore
	docStore    remote.DocStore
	checker     netcheck.Checker
	syncer      syncengine.Syncer
	roster      *students.Service
	attendance  *attendance.Service
	gallery     *gallery.Service
	logger      *log.Logger

	closers []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Printf("close error: %v", err)
		}
	}
}

// newApp builds the full service graph from configuration. Commands
// that only need a subset still go through here so wiring stays in
// one place.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if ownerFlag != "" {
		cfg.Owner = ownerFlag
	}
	if roleFlag != "" {
		cfg.Role = roleFlag
	}
	if cfg.Owner == "" {
		return nil, fmt.Errorf("no owner configured (set --owner or CAMPUSYNC_OWNER)")
	}

	logger, logCloser := logging.New("[campusync] ", logging.Options{File: cfg.LogFile})

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, logCloser)

	backend, err := kv.OpenSQLite(cfg.DBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	a.backend = backend
	a.closers = append(a.closers, backend)
	a.recordStore = store.New(backend)

	if cfg.RedisAddr != "" {
		a.docStore = remote.NewRedis(cfg.RedisAddr)
	} else {
		// No remote configured: local-only operation, pushes go nowhere
		a.docStore = remote.NewMemory()
	}
	a.checker = netcheck.NewProbe(cfg.ProbeURL, cfg.ProbeTimeout)
	a.syncer = syncengine.New(a.recordStore, a.docStore, a.checker, logger)

	var catalog attendance.CatalogProvider
	if cfg.TimetablePath != "" {
		catalog = attendance.FileTimetable{Path: cfg.TimetablePath}
	}

	var blobs blob.Store
	if cfg.BlobEndpoint != "" {
		blobs = blob.NewHTTP(cfg.BlobEndpoint, cfg.BlobAPIKey)
	}

	a.roster = students.New(a.recordStore, a.docStore, cfg.RosterShards, logger)
	a.attendance = attendance.New(a.recordStore, a.checker, catalog, logger)
	a.gallery = gallery.New(backend, blobs, logger)

	return a, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $HOME/.campusync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "account the cache belongs to")
	rootCmd.PersistentFlags().StringVar(&roleFlag, "role", "", "account role (student, staff, office, cr)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
