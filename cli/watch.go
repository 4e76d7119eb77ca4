package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quickbasket/storefront-go/sched"
)

// NewWatchCmd creates the "watch" subcommand: a foreground process that
// runs the background maintenance jobs (session revalidation, cache
// pruning) on their configured cron schedules and renders notifications
// as they arrive.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run background session revalidation and cache pruning",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	out := cmd.OutOrStdout()

	a, err := buildApp(cmd.Context(), configPath, appOptions{restore: true, toasts: true})
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	if a.cfg.RevalidateCron == "" && a.cfg.PruneCron == "" {
		return exitError(exitFailure, "nothing to watch: set revalidate_cron or prune_cron in the config")
	}

	jobs, err := sched.New(sched.Config{
		RevalidateCron: a.cfg.RevalidateCron,
		PruneCron:      a.cfg.PruneCron,
		Bus:            a.bus,
	}, a.sessions, a.cache)
	if err != nil {
		return exitError(exitFailure, "%v", err)
	}

	jobs.Start()
	defer jobs.Stop()

	fmt.Fprintln(out, "Watching; press Ctrl-C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-cmd.Context().Done():
	}

	fmt.Fprintln(out, "Stopping")
	return nil
}
