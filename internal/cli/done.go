package cli

import "github.com/spf13/cobra"

var doneCmd = &cobra.Command{
	Use:     "done UID",
	Aliases: []string{"toggle"},
	Short:   "Toggle a task between Completed and Needs-Action",
	Args:    cobra.ExactArgs(1),
	RunE:    runDone,
}

func init() {
	rootCmd.AddCommand(doneCmd)
}

func runDone(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	t, err := s.ToggleTask(uid)
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}
