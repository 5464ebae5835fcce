package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfait/cfait/internal/cferr"
)

var editCmd = &cobra.Command{
	Use:   "edit UID TEXT...",
	Short: "Re-derive a task's token-controlled fields from a new smart-input line",
	Long:  `Edit leaves the long-form description untouched; use --description to change that instead.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().String("description", "", "replace the long-form description instead of re-parsing smart input")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	uid, err := resolveUID(s, args[0])
	if err != nil {
		return err
	}

	if desc, _ := cmd.Flags().GetString("description"); desc != "" || cmd.Flags().Changed("description") {
		t, err := s.UpdateTaskDescription(uid, desc)
		if err != nil {
			return err
		}
		return printTask(cmd.OutOrStdout(), t, flagJSON)
	}

	if len(args) < 2 {
		return cferr.New(cferr.InvalidInput, "edit needs replacement text, or --description")
	}
	t, err := s.UpdateTaskSmart(uid, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	return printTask(cmd.OutOrStdout(), t, flagJSON)
}
