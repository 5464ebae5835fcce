package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cfait/cfait/internal/cferr"
	syncengine "github.com/cfait/cfait/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass against the CalDAV server",
	Long: `Sync runs one push-then-pull pass by default. With --watch, it stays
running and syncs again every time a local mutation signals it, until
interrupted — the daemon-friendly counterpart of a one-shot CLI invocation.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Duration("timeout", 60*time.Second, "give up after this long")
	syncCmd.Flags().Bool("watch", false, "keep syncing on every signalled change until interrupted")
	syncCmd.Flags().Duration("interval", 5*time.Minute, "poll interval in --watch mode")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if !s.Online() {
		return cferr.New(cferr.Transport, "no CalDAV connection configured; edit the config file's url/username/password")
	}

	watch, _ := cmd.Flags().GetBool("watch")
	if watch {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		interval, _ := cmd.Flags().GetDuration("interval")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.SignalSync()
				}
			}
		}()

		go func() {
			if err := s.WatchCache(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "cache watch disabled: %v\n", err)
			}
		}()

		fmt.Fprintf(cmd.OutOrStdout(), "watching for changes every %s, press Ctrl-C to stop\n", interval)
		s.SignalSync()
		s.RunSyncLoop(ctx, func(result *syncengine.Result, err error) {
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "sync failed: %v\n", err)
				return
			}
			printSyncResult(cmd, result)
		})
		return nil
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	result, err := s.Sync(ctx)
	if err != nil {
		return err
	}
	printSyncResult(cmd, result)
	return nil
}

func printSyncResult(cmd *cobra.Command, result *syncengine.Result) {
	if flagJSON {
		_ = writeJSON(cmd.OutOrStdout(), map[string]any{
			"upserted":  len(result.Upserted),
			"conflicts": len(result.Conflicts),
			"removed":   len(result.Removed),
		})
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sync complete: %d upserted, %d conflicts, %d removed\n",
		len(result.Upserted), len(result.Conflicts), len(result.Removed))
}
