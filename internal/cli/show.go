package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show UID",
	Short: "Show a single task in full, including its smart-input form",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}
	t, err := mustTask(s, uid)
	if err != nil {
		return err
	}
	if err := printTask(cmd.OutOrStdout(), t, flagJSON); err != nil {
		return err
	}
	if !flagJSON {
		input, err := s.SmartInputString(uid)
		if err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  edit form: %s\n", input)
		}
	}
	return nil
}
