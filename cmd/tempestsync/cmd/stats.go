package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts and observation ranges per device",
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
			st, err := db.Stats(cmd.Context(), deviceID)
			if err != nil {
				return err
			}

			if st.Records == 0 {
				fmt.Printf("device %d: no records\n", deviceID)
				continue
			}
			fmt.Printf("device %d: %d records (%s to %s)\n",
				deviceID, st.Records, fmtTS(st.Oldest), fmtTS(st.Newest))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
