package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"
)

var watchEvery time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run sync repeatedly on a fixed interval",
	Long: `Watch runs an immediate sync and then repeats it on the given interval
until interrupted. This is the in-process alternative to running the sync
subcommand from cron.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Resolve token and devices up front so a missing credential fails
		// now rather than on the first scheduled run.
		if _, err := requireToken(); err != nil {
			return err
		}
		if _, err := requireDevices(); err != nil {
			return err
		}

		if err := runSyncOnce(cmd.Context()); err != nil {
			return err
		}

		sched := gocron.NewScheduler(time.UTC)
		_, err := sched.Every(watchEvery).Do(func() {
			if err := runSyncOnce(context.Background()); err != nil {
				log.Error("sync run failed", "error", err)
			}
		})
		if err != nil {
			return err
		}

		sched.StartAsync()
		defer sched.Stop()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchEvery, "every", time.Hour, "interval between sync runs")
	rootCmd.AddCommand(watchCmd)
}
