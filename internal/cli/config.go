package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set one configuration value and save it",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configAccessor describes how to read and, for writable keys, parse and
// apply a new value for one configuration field.
type configAccessor struct {
	get func(*config.Config) any
	set func(*config.Config, string) error
}

func configAccessors() map[string]configAccessor {
	return map[string]configAccessor{
		"url": {
			get: func(c *config.Config) any { return c.URL },
			set: func(c *config.Config, v string) error { c.URL = v; return nil },
		},
		"username": {
			get: func(c *config.Config) any { return c.Username },
			set: func(c *config.Config, v string) error { c.Username = v; return nil },
		},
		"password": {
			get: func(c *config.Config) any { return c.Password },
			set: func(c *config.Config, v string) error { c.Password = v; return nil },
		},
		"allow_insecure_certs": {
			get: func(c *config.Config) any { return c.AllowInsecureCerts },
			set: func(c *config.Config, v string) error {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return cferr.Newf(cferr.InvalidInput, "invalid boolean %q", v)
				}
				c.AllowInsecureCerts = b
				return nil
			},
		},
		"default_calendar": {
			get: func(c *config.Config) any { return c.DefaultCalendar },
			set: func(c *config.Config, v string) error { c.DefaultCalendar = v; return nil },
		},
		"hide_completed": {
			get: func(c *config.Config) any { return c.HideCompleted },
			set: func(c *config.Config, v string) error {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return cferr.Newf(cferr.InvalidInput, "invalid boolean %q", v)
				}
				c.HideCompleted = b
				return nil
			},
		},
		"hide_fully_completed_tags": {
			get: func(c *config.Config) any { return c.HideFullyCompletedTags },
			set: func(c *config.Config, v string) error {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return cferr.Newf(cferr.InvalidInput, "invalid boolean %q", v)
				}
				c.HideFullyCompletedTags = b
				return nil
			},
		},
		"sort_cutoff_months": {
			get: func(c *config.Config) any { return c.SortCutoffMonths },
			set: func(c *config.Config, v string) error {
				n, err := strconv.Atoi(v)
				if err != nil {
					return cferr.Newf(cferr.InvalidInput, "invalid integer %q", v)
				}
				c.SortCutoffMonths = n
				return nil
			},
		},
		"disabled_calendars": {
			get: func(c *config.Config) any { return c.DisabledCalendars },
		},
		"tag_aliases": {
			get: func(c *config.Config) any { return c.TagAliases },
		},
	}
}

func allConfigKeys() []string {
	return []string{
		"url", "username", "password", "allow_insecure_certs", "default_calendar",
		"hide_completed", "hide_fully_completed_tags", "sort_cutoff_months",
		"disabled_calendars", "tag_aliases",
	}
}

func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	accessors := configAccessors()

	if flagJSON {
		m := make(map[string]any, len(accessors))
		for _, key := range allConfigKeys() {
			m[key] = accessors[key].get(cfg)
		}
		return writeJSON(cmd.OutOrStdout(), m)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "config file: %s\n", cfg.Path())
	for _, key := range allConfigKeys() {
		fmt.Fprintf(w, "%-26s %v\n", key, formatConfigValue(accessors[key].get(cfg)))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	acc, ok := configAccessors()[args[0]]
	if !ok {
		return cferr.Newf(cferr.InvalidInput, "unknown config key %q", args[0])
	}
	val := acc.get(cfg)
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), val)
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatConfigValue(val))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	key, value := args[0], args[1]
	acc, ok := configAccessors()[key]
	if !ok {
		return cferr.Newf(cferr.InvalidInput, "unknown config key %q", key)
	}
	if acc.set == nil {
		return cferr.Newf(cferr.InvalidInput, "config key %q is read-only", key)
	}
	if err := acc.set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"key": key, "value": acc.get(cfg)})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, formatConfigValue(acc.get(cfg)))
	return nil
}

func formatConfigValue(val any) string {
	switch v := val.(type) {
	case []string:
		if len(v) == 0 {
			return "--"
		}
		return strings.Join(v, ", ")
	case map[string][]string:
		if len(v) == 0 {
			return "--"
		}
		parts := make([]string, 0, len(v))
		for k, tags := range v {
			parts = append(parts, k+"="+strings.Join(tags, ","))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
