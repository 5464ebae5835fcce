package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List every known calendar",
	Args:  cobra.NoArgs,
	RunE:  runCalendars,
}

func init() {
	rootCmd.AddCommand(calendarsCmd)
}

type calendarView struct {
	Href        string `json:"href"`
	DisplayName string `json:"display_name"`
	IsLocal     bool   `json:"is_local"`
	Disabled    bool   `json:"disabled"`
}

func runCalendars(cmd *cobra.Command, _ []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	cals := s.Calendars()
	if flagJSON {
		views := make([]calendarView, 0, len(cals))
		for _, c := range cals {
			views = append(views, calendarView{Href: c.Href, DisplayName: c.DisplayName, IsLocal: c.IsLocal, Disabled: c.Disabled})
		}
		return writeJSON(cmd.OutOrStdout(), views)
	}
	if len(cals) == 0 {
		fmt.Fprintln(os.Stderr, "No calendars found.")
		return nil
	}
	for _, c := range cals {
		mark := ""
		if c.Disabled {
			mark = " (disabled)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s%s\n", c.Href, c.DisplayName, mark)
	}
	return nil
}
