package cli

import "github.com/spf13/cobra"

var blockCmd = &cobra.Command{
	Use:   "block UID BLOCKER_UID",
	Short: "Record that UID depends on BLOCKER_UID",
	Args:  cobra.ExactArgs(2),
	RunE:  runBlock,
}

var unblockCmd = &cobra.Command{
	Use:   "unblock UID BLOCKER_UID",
	Short: "Remove a dependency between two tasks",
	Args:  cobra.ExactArgs(2),
	RunE:  runUnblock,
}

var parentCmd = &cobra.Command{
	Use:   "parent UID [PARENT_UID]",
	Short: "Set (or, with no second argument, clear) a task's parent",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runParent,
}

func init() {
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(unblockCmd)
	rootCmd.AddCommand(parentCmd)
}

func runBlock(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	blocker, err := resolveUID(s, args[1])
	if err != nil {
		return err
	}
	t, err := s.Block(uid, blocker)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}

func runUnblock(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	blocker, err := resolveUID(s, args[1])
	if err != nil {
		return err
	}
	t, err := s.Unblock(uid, blocker)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}

func runParent(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	var parentUID string
	if len(args) == 2 {
		parentUID, err = resolveUID(s, args[1])
		if err != nil {
			return err
		}
	}
	t, err := s.SetChildOf(uid, parentUID)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}
