package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 24*time.Hour, cfg.RevisionWindow)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TEMPEST_API_TOKEN", "secret")
	t.Setenv("TEMPEST_DATABASE", "/tmp/weather.db")
	t.Setenv("TEMPEST_DEVICE_ID", "123, 456")
	t.Setenv("TEMPEST_REVISION_WINDOW", "48h")

	cfg := Load()

	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, "/tmp/weather.db", cfg.Database)
	assert.Equal(t, []int64{123, 456}, cfg.DeviceIDs)
	assert.Equal(t, 48*time.Hour, cfg.RevisionWindow)
}

func TestParseDeviceIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []int64
	}{
		{"", nil},
		{"123", []int64{123}},
		{"123,456", []int64{123, 456}},
		{"123, abc, 456", []int64{123, 456}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDeviceIDs(tt.in), "input %q", tt.in)
	}
}
