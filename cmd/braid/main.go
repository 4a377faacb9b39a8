// ABOUTME: Entry point for the braid CLI
// ABOUTME: Inspects a braid thread database - trees, stats, search, activity

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"braid/internal/config"
	"braid/internal/metrics"
	"braid/internal/store"
	"braid/internal/thread"
)

// Version is set by goreleaser at build time.
var version = "dev"

var (
	configPath string
	dbPath     string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "braid",
	Short:   "Inspect a braid conversation-threading database",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}

		logger = setupLogger(cfg.Logging)
		slog.SetDefault(logger)

		if cfg.Metrics.Enabled {
			serveMetrics(cfg.Metrics.Addr)
		}
		return nil
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the thread database (overrides config)")

	rootCmd.AddCommand(threadsCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(searchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves and loads the config file, falling back to defaults
// when no file exists.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = defaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// defaultConfigPath returns the path to the braid config file.
// Priority: BRAID_CONFIG env var > XDG_CONFIG_HOME/braid/config.yaml >
// ~/.config/braid/config.yaml
func defaultConfigPath() string {
	if envPath := os.Getenv("BRAID_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "braid", "config.yaml")
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// serveMetrics exposes Prometheus metrics on addr in the background.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Debug("metrics server listening", "addr", addr)
}

// openService opens the configured database and wraps it in a thread service.
// The returned cleanup function closes the service and the store.
func openService() (*thread.Service, func(), error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	svc := thread.New(st, logger, metrics.New(nil))
	cleanup := func() {
		svc.Close()
		st.Close()
	}
	return svc, cleanup, nil
}
