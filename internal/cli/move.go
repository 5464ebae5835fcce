package cli

import "github.com/spf13/cobra"

var moveCmd = &cobra.Command{
	Use:   "move UID CALENDAR_HREF",
	Short: "Move a task to a different calendar",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	t, err := s.MoveTask(uid, args[1])
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}
