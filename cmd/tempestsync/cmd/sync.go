package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	tsync "tempestsync/internal/sync"
	"tempestsync/internal/tempest"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download new and revised observations for the configured devices",
	Long: `Sync downloads observations for each configured device, starting from the
device's newest stored timestamp minus the revision window (or from the
beginning of history for a device never synced before), and upserts them
into the weather table.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSyncOnce(cmd.Context())
	},
}

func runSyncOnce(ctx context.Context) error {
	token, err := requireToken()
	if err != nil {
		return err
	}
	devices, err := requireDevices()
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	client := tempest.NewClient(tempest.Config{
		BaseURL:    cfg.BaseURL,
		Token:      token,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.MaxRetries,
	}, log)

	syncer := tsync.New(db, client, tsync.Config{
		RevisionWindow: cfg.RevisionWindow,
		Earliest:       cfg.Earliest,
	}, log)

	report, err := syncer.Run(ctx, devices)
	printReport(report)
	if err != nil {
		return err
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d device(s) failed to sync", len(failed), len(report.Devices))
	}
	return nil
}

// printReport writes per-device outcomes. Successes are shown only in
// verbose mode; failures are always reported with the device and the phase
// they failed in.
func printReport(report *tsync.Report) {
	for _, d := range report.Devices {
		switch {
		case d.Phase == tsync.PhaseDone && verbose:
			color.New(color.FgGreen).Fprintf(os.Stdout, "✓ device %d: %d records (%s to %s)\n",
				d.DeviceID, d.Records, fmtTS(d.Range.Start), fmtTS(d.Range.End))
		case d.Phase != tsync.PhaseDone:
			color.New(color.FgRed).Fprintf(os.Stderr, "✗ device %d failed during %s: %v\n",
				d.DeviceID, d.Phase, d.Err)
		}
	}
}

func fmtTS(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04")
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
