package cli

import "github.com/spf13/cobra"

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List every tag in use, with a count of active (not-done) tasks",
	Args:  cobra.NoArgs,
	RunE:  runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, _ []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	return printTags(cmd.OutOrStdout(), s.GetAllTags(), flagJSON)
}
