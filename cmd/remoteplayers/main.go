package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retrylife/remoteplayers/internal/config"
	"github.com/retrylife/remoteplayers/internal/links"
	"github.com/retrylife/remoteplayers/internal/prefs"
)

var version = "dev"

var (
	noColor bool
	debug   bool
)

// Overridden in tests.
var (
	loadConfig   = config.Load
	openSettings = config.OpenSettings
)

var rootCmd = &cobra.Command{
	Use:           "remoteplayers",
	Short:         "Manage Dynmap links for Minecraft servers",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			setupLogging("debug")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log preference writes to stderr")

	rootCmd.AddCommand(integrationCmd, linkCmd, exportCmd, configCmd)
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// openLinks opens the configured preference root and binds the link store
// to it. The caller must call the returned close function.
func openLinks() (*links.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return openLinksWith(cfg)
}

func openLinksWith(cfg config.Config) (*links.Store, func(), error) {
	root, err := prefs.Open(cfg.Prefs.Backend, cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening preferences: %w", err)
	}
	closeFn := func() {
		if err := root.Close(); err != nil {
			printWarning("closing preferences: %v", err)
		}
	}
	return links.Open(root), closeFn, nil
}
