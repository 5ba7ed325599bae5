package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appLog "wishmaker/internal/log"
	"wishmaker/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Override listen address (e.g. 0.0.0.0:8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if serveListen != "" {
		a.Config.Listen = serveListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.Calendar != nil {
		if n, err := a.Syncer.Sync(ctx); err != nil {
			appLog.Error("initial calendar sync failed", err)
		} else {
			appLog.Info("initial calendar sync completed", "added", n)
		}
		if spec := a.Config.Calendar.SyncCron; spec != "" {
			if err := a.Syncer.Start(spec); err != nil {
				return err
			}
		}
	}

	srv := web.NewServer(a)
	defer srv.Close()

	appLog.Info("wishmaker serving",
		"version", Version,
		"listen", a.Config.Listen,
		"timezone", a.Config.Timezone,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	appLog.Info("wishmaker exiting")
	return nil
}
