package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
	"golang.org/x/term"

	"tempestsync/internal/config"
	"tempestsync/internal/storage"
	"tempestsync/internal/utils/logger"
)

var (
	cfg *config.Config
	log *slog.Logger

	apiToken  string
	database  string
	deviceIDs []int64
	baseURL   string
	verbose   bool
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "tempestsync",
	Short: "Sync Tempest weather station data into a local SQLite database",
	Long: `tempestsync downloads your Tempest personal weather station data at
1-minute resolution from the cloud and saves it in a local SQLite database
of your choosing. The data lands in a table called "weather"; the table and
the database are created if they do not exist.

The first run downloads the entire available history for each device. From
then on only what is needed is downloaded, plus the most recent 24 hours,
so that any revisions the provider posted to recent data are picked up.

The database is yours to query with plain SQL, for example:

  sqlite3 weather.db 'SELECT device_id, COUNT(*) FROM weather GROUP BY 1'`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the CLI and terminates the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(_ *cobra.Command, _ []string) error {
	cfg = config.Load()

	// Flags override the environment.
	if apiToken != "" {
		cfg.APIToken = apiToken
	}
	if database != "" {
		cfg.Database = database
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if len(deviceIDs) > 0 {
		cfg.DeviceIDs = deviceIDs
	}

	log = logger.New(verbose, debug)
	return nil
}

func openDB() (*storage.DB, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("database path required (--database or TEMPEST_DATABASE)")
	}
	return storage.Open(cfg.Database, log)
}

func requireDevices() ([]int64, error) {
	if len(cfg.DeviceIDs) == 0 {
		return nil, fmt.Errorf("at least one device id required (--device-id or TEMPEST_DEVICE_ID)")
	}
	return cfg.DeviceIDs, nil
}

// requireToken returns the API token, prompting on the terminal when it was
// not supplied via flag or environment.
func requireToken() (string, error) {
	if cfg.APIToken != "" {
		return cfg.APIToken, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Tempest API token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		if len(raw) > 0 {
			cfg.APIToken = string(raw)
			return cfg.APIToken, nil
		}
	}

	return "", fmt.Errorf("API token required (--api-token or TEMPEST_API_TOKEN)")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiToken, "api-token", "", "Tempest API token")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "path to the SQLite database; created if needed")
	rootCmd.PersistentFlags().Int64SliceVar(&deviceIDs, "device-id", nil, "id(s) of the device(s) to sync")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "override the Tempest API base URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "emit progress information")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "emit debug logging")
}
