package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the sync engine and CLI need. Values come from
// the environment (TEMPEST_* variables, optionally via a .env file) and may
// be overridden by command-line flags.
type Config struct {
	APIToken  string
	Database  string
	DeviceIDs []int64
	BaseURL   string

	RevisionWindow time.Duration
	Earliest       int64

	HTTPTimeout time.Duration
	MaxRetries  int
}

// Load reads configuration from the environment with usable defaults.
func Load() *Config {
	// A missing .env file is fine; plain environment variables still apply.
	_ = godotenv.Load()

	viper.SetEnvPrefix("tempest")
	viper.AutomaticEnv()

	viper.SetDefault("revision_window", "24h")
	viper.SetDefault("http_timeout", "30s")
	viper.SetDefault("max_retries", 3)

	return &Config{
		APIToken:       viper.GetString("api_token"),
		Database:       viper.GetString("database"),
		DeviceIDs:      parseDeviceIDs(viper.GetString("device_id")),
		BaseURL:        viper.GetString("base_url"),
		RevisionWindow: viper.GetDuration("revision_window"),
		Earliest:       viper.GetInt64("earliest"),
		HTTPTimeout:    viper.GetDuration("http_timeout"),
		MaxRetries:     viper.GetInt("max_retries"),
	}
}

// parseDeviceIDs reads a comma-separated id list (TEMPEST_DEVICE_ID=123,456).
// Entries that are not integers are skipped.
func parseDeviceIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
