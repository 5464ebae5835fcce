package cli

import (
	"github.com/spf13/cobra"

	"github.com/cfait/cfait/internal/cferr"
)

var priorityCmd = &cobra.Command{
	Use:   "priority UID {up|down}",
	Short: "Step a task's priority through the unset/9/5/1 rungs",
	Args:  cobra.ExactArgs(2),
	RunE:  runPriority,
}

func init() {
	rootCmd.AddCommand(priorityCmd)
}

func runPriority(cmd *cobra.Command, args []string) error {
	var delta int
	switch args[1] {
	case "up":
		delta = 1
	case "down":
		delta = -1
	default:
		return cferr.Newf(cferr.InvalidInput, "expected up or down, got %q", args[1])
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	t, err := s.ChangePriority(uid, delta)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}
