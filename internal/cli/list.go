package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfait/cfait/internal/store"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List tasks matching an optional query string and tag filter.

Query terms: is:done, is:active, is:ongoing; #tag; !N (priority),
~DURATION (estimate) and @DATE (due), each with an optional <, <=, >, >=
or = operator; and bare words matched against the summary and
description.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringP("query", "q", "", "query string")
	listCmd.Flags().StringSlice("tag", nil, "filter by tag (repeatable, comma-separated)")
	listCmd.Flags().Bool("match-all-tags", false, "require every --tag to match, instead of any")
	listCmd.Flags().String("calendar", "", "restrict to one calendar href")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	queryStr, _ := cmd.Flags().GetString("query")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	matchAll, _ := cmd.Flags().GetBool("match-all-tags")
	calHref, _ := cmd.Flags().GetString("calendar")

	for i, t := range tags {
		tags[i] = strings.TrimSpace(t)
	}

	opts := store.ViewOptions{
		QueryString:  queryStr,
		SelectedTags: tags,
		MatchAllTags: matchAll,
		CalendarHref: calHref,
	}
	tasks := s.GetViewTasks(opts)
	return printTasks(cmd.OutOrStdout(), tasks, flagJSON)
}
