package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List holes in the stored time series for each device",
	Long: `Gaps reports consecutive stored observations that are further apart than
the expected one-minute reporting interval. Such holes mean the provider
itself has no data for that span; the sync engine never deletes records.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		devices, err := requireDevices()
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		for _, deviceID := range devices {
			gaps, err := db.Gaps(cmd.Context(), deviceID)
			if err != nil {
				return err
			}

			if len(gaps) == 0 {
				fmt.Printf("device %d: no gaps\n", deviceID)
				continue
			}
			for _, g := range gaps {
				fmt.Printf("device %d: %s to %s (%ds)\n",
					deviceID, fmtTS(g.Start), fmtTS(g.End), g.Seconds)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gapsCmd)
}
