package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror every stored event into the device calendar",
	Long: `Re-mirror all stored events. Entries already present in the device
calendar are left alone, so running this repeatedly is safe.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Calendar == nil {
		return fmt.Errorf("device calendar is disabled (calendar.enabled: false)")
	}

	added, err := a.Syncer.Sync(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %d new event(s) into %s\n", added, a.Calendar.Path())
	return nil
}
