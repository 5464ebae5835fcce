package cli

import (
	"github.com/spf13/cobra"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/task"
)

var statusCmd = &cobra.Command{
	Use:   "status UID {needs-action|in-process|completed|cancelled}",
	Short: "Set a task's status, or reset it to needs-action if already set",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func parseCLIStatus(v string) (task.Status, error) {
	switch v {
	case "needs-action", "todo":
		return task.NeedsAction, nil
	case "in-process", "doing":
		return task.InProcess, nil
	case "completed", "done":
		return task.Completed, nil
	case "cancelled", "canceled":
		return task.Cancelled, nil
	default:
		return 0, cferr.Newf(cferr.InvalidInput, "unknown status %q", v)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	status, err := parseCLIStatus(args[1])
	if err != nil {
		return err
	}
	t, err := s.SetStatus(uid, status)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}
