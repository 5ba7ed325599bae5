package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wishmaker/internal/wishes"
)

var (
	eventJSON        bool
	eventTitle       string
	eventDescription string
	eventStart       string
	eventEnd         string
)

// Accepted --start/--end layouts, tried in order. Layouts without a zone
// are read in the configured display timezone.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Add or list scheduled events",
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule an event and mirror it into the device calendar",
	Long: `Schedule an event. Title and description are required.

Times accept RFC 3339, "YYYY-MM-DD HH:MM" or "YYYY-MM-DD". --start defaults
to now and --end defaults to --start.`,
	Args: cobra.NoArgs,
	RunE: runEventAdd,
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List events in the order they were added",
	Args:  cobra.NoArgs,
	RunE:  runEventList,
}

func init() {
	eventCmd.PersistentFlags().BoolVar(&eventJSON, "json", false, "Output as JSON")

	eventAddCmd.Flags().StringVarP(&eventTitle, "title", "t", "", "Event title")
	eventAddCmd.Flags().StringVarP(&eventDescription, "description", "d", "", "Event description")
	eventAddCmd.Flags().StringVar(&eventStart, "start", "", "Start time")
	eventAddCmd.Flags().StringVar(&eventEnd, "end", "", "End time")

	eventCmd.AddCommand(eventAddCmd)
	eventCmd.AddCommand(eventListCmd)
	rootCmd.AddCommand(eventCmd)
}

func runEventAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.Location()
	start := time.Now().In(loc).Truncate(time.Minute)
	if eventStart != "" {
		if start, err = parseEventTime(eventStart, loc); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}
	end := start
	if eventEnd != "" {
		if end, err = parseEventTime(eventEnd, loc); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
	}

	res, err := a.Service.AddEvent(cmd.Context(), wishes.EventInput{
		Title:       eventTitle,
		Description: eventDescription,
		Start:       start,
		End:         end,
	})
	if err != nil {
		return err
	}
	if eventJSON {
		return writeJSON(cmd, map[string]any{
			"index":    res.Index,
			"event":    res.Event,
			"message":  res.Message,
			"mirrored": res.Mirrored,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

func runEventList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.Service.Events()
	if err != nil {
		return err
	}
	if eventJSON {
		return writeJSON(cmd, list)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No events yet.")
		return nil
	}
	loc := a.Location()
	for i, ev := range list {
		fmt.Fprintf(out, "%3d  %s - %s  %s\n", i,
			ev.StartDate.In(loc).Format("2006-01-02 15:04"),
			ev.EndDate.In(loc).Format("2006-01-02 15:04"),
			ev.Title)
		fmt.Fprintf(out, "     %s\n", ev.Description)
	}
	return nil
}

func parseEventTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range eventTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use RFC 3339, YYYY-MM-DD HH:MM or YYYY-MM-DD)", s)
}
