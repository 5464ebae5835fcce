package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfait/cfait/internal/cferr"
	"github.com/cfait/cfait/internal/config"
	"github.com/cfait/cfait/internal/logging"
	"github.com/cfait/cfait/internal/store"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	flagJSON    bool
	flagConfig  string
	flagLogFile string
)

var rootCmd = &cobra.Command{
	Use:           "cfait",
	Short:         "Offline-first CalDAV task manager",
	Long:          `cfait manages tasks against a CalDAV server, working from a local cache when offline and reconciling changes in the background.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default: $XDG_CONFIG_HOME/cfait/cfait.toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "write logs to this file instead of stderr")
}

// Execute runs the root command and translates errors into a process exit
// code: a *cferr.Error exits 1; any other error (one the engine did not
// classify with a code) exits 2.
func Execute() {
	_, err := rootCmd.ExecuteC()
	if err == nil {
		return
	}

	if flagJSON {
		var cerr *cferr.Error
		if errors.As(err, &cerr) {
			_ = writeJSON(os.Stdout, errorResponse{Error: cerr.Message, Code: cerr.Code, Details: cerr.Details})
			os.Exit(1)
		}
		_ = writeJSON(os.Stdout, errorResponse{Error: err.Error()})
		os.Exit(2)
	}

	fmt.Fprintln(os.Stderr, err)
	var cerr *cferr.Error
	if errors.As(err, &cerr) {
		os.Exit(1)
	}
	os.Exit(2)
}

// configPath resolves the --config flag to config.DefaultPath when unset.
func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.DefaultPath()
}

// openStore bootstraps the engine for a single command invocation. Callers
// must defer Close.
func openStore() (*store.Store, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Options{Path: flagLogFile})
	return store.Bootstrap(path, logger)
}
