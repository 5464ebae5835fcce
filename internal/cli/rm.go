package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:     "rm UID",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runRm,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	if err := s.DeleteTask(uid); err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"deleted": uid})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", shortUID(uid))
	return nil
}
