package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfait/cfait/internal/task"
)

var addCmd = &cobra.Command{
	Use:   "add TEXT...",
	Short: "Add a task from a free-text line",
	Long: `Add creates a task from a single line of smart input, e.g.:

  cfait add "Buy milk !1 @tomorrow #errand"

Tokens: !N sets priority, @DATE/@keyword sets due, ^DATE sets start,
~DURATION sets an estimate, #tag adds a tag, #alias=a,b defines a session
tag alias. Everything else becomes the summary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().String("calendar", "", "calendar href to add to (default: config default_calendar, else Local)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	calHref, _ := cmd.Flags().GetString("calendar")
	if calHref == "" {
		calHref = s.Config().DefaultCalendar
	}
	if calHref == "" {
		calHref = task.LocalCalendarHref
	}

	t, err := s.AddTaskSmart(calHref, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}
