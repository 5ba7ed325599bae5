package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wishmaker/internal/web"
)

var (
	agendaJSON     bool
	agendaDays     int
	agendaBackfill int
)

var agendaCmd = &cobra.Command{
	Use:   "agenda",
	Short: "Show upcoming device calendar entries",
	Args:  cobra.NoArgs,
	RunE:  runAgenda,
}

func init() {
	agendaCmd.Flags().BoolVar(&agendaJSON, "json", false, "Output as JSON")
	agendaCmd.Flags().IntVar(&agendaDays, "days", 0, "Days ahead to show (default calendar.horizon_days)")
	agendaCmd.Flags().IntVar(&agendaBackfill, "backfill", 0, "Past days to include")

	rootCmd.AddCommand(agendaCmd)
}

func runAgenda(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Calendar == nil {
		return fmt.Errorf("device calendar is disabled (calendar.enabled: false)")
	}

	days := agendaDays
	if days <= 0 {
		days = a.Config.Calendar.HorizonDays
	}
	now := time.Now().In(a.Location())
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	resp, err := web.Agenda(a, dayStart.AddDate(0, 0, -agendaBackfill), dayStart.AddDate(0, 0, days))
	if err != nil {
		return err
	}
	if agendaJSON {
		return writeJSON(cmd, resp)
	}

	out := cmd.OutOrStdout()
	if len(resp.Occurrences) == 0 {
		fmt.Fprintln(out, "Nothing scheduled.")
		return nil
	}
	currentDay := ""
	for _, occ := range resp.Occurrences {
		day := occ.Start.Format("Monday, January 2")
		if day != currentDay {
			if currentDay != "" {
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, day)
			currentDay = day
		}
		if occ.AllDay {
			fmt.Fprintf(out, "  all day      %s\n", occ.Summary)
			continue
		}
		fmt.Fprintf(out, "  %s-%s  %s\n", occ.Start.Format("15:04"), occ.End.Format("15:04"), occ.Summary)
	}
	return nil
}
