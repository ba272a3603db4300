package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestNewLevels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		verbose   bool
		debug     bool
		wantDebug bool
		wantInfo  bool
	}{
		{name: "default is quiet", wantDebug: false, wantInfo: false},
		{name: "verbose enables info", verbose: true, wantInfo: true},
		{name: "debug enables everything", debug: true, wantDebug: true, wantInfo: true},
		{name: "debug wins over verbose", verbose: true, debug: true, wantDebug: true, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.verbose, tt.debug)
			require.NotNil(t, log)
			assert.Equal(t, tt.wantDebug, log.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.wantInfo, log.Enabled(ctx, slog.LevelInfo))
			assert.True(t, log.Enabled(ctx, slog.LevelWarn))
		})
	}
}
