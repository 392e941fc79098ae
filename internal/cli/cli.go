// Package cli implements the mockup command-line interface.
//
// # Commands
//
//   - run: consume jobs from MQTT or Redis, composite and deliver them
//   - scan: composite one overlay onto every base image in a directory
//   - composite: composite a single overlay onto a single base image
//   - categories: list placement rules and base image availability
//   - config: print the effective configuration
//   - cache: manage the overlay cache
//   - version: print build information
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// attached to the command context and injected into every library.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mockup/internal/config"
	"github.com/matzehuels/mockup/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "mockup"

	// configEnv names the variable consulted when --config is not given.
	configEnv = "MOCKUP_CONFIG"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Mockup composites customer designs onto garment photos",
		Long: `Mockup places a customer-supplied design onto fixed garment base photos
using per-category placement rules, then delivers the result to the
storefront backend.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default $"+configEnv+")")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.scanCommand())
	root.AddCommand(c.compositeCommand())
	root.AddCommand(c.categoriesCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file named by --config or $MOCKUP_CONFIG.
// Validation is left to the caller since each command overrides fields
// from its flags first.
func (c *CLI) loadConfig() (config.Config, error) {
	path := c.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Fetch.CacheDir == "" {
		if dir, err := cacheDir(); err == nil {
			cfg.Fetch.CacheDir = dir
		}
	}
	return cfg, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/mockup/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
