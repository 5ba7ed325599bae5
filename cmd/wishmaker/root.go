package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wishmaker/internal/app"
	"wishmaker/internal/config"
	appLog "wishmaker/internal/log"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wishmaker",
	Short: "Keep a list of wishes and schedule them as events",
	Long: `wishmaker keeps two persistent lists: free-text wishes, and events
scheduled from them. New events are mirrored into a local device calendar
(an .ics file) that any calendar client can subscribe to.

  serve    Run the HTTP API
  wish     Add or list wishes
  event    Add or list events
  agenda   Show upcoming device calendar entries
  sync     Mirror every stored event into the device calendar`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, error)")
}

// openApp loads the config file, applies WISHMAKER_* overrides and wires
// the application. Callers must Close the returned App.
func openApp() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		appLog.Error("failed to write default config", err, "config_path", configPath)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	return app.New(cfg)
}
