package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Gap is a hole in a device's time series: two consecutive stored
// observations further apart than the expected reporting interval.
type Gap struct {
	Start   int64
	End     int64
	Seconds int64
}

// Observations arrive at 60-second intervals; allow nearly twice that for
// slop in the provider's timestamps before calling something a gap.
const gapThresholdSeconds = 119

const gapsSQL = `
WITH deltas AS (
  SELECT
    LAG(timestamp) OVER win AS start_timestamp,
    timestamp AS end_timestamp,
    timestamp - LAG(timestamp) OVER win AS delta_seconds
  FROM weather
  WHERE device_id = ?
  WINDOW win AS (PARTITION BY device_id ORDER BY timestamp)
)
SELECT start_timestamp, end_timestamp, delta_seconds
FROM deltas
WHERE delta_seconds > ?`

// Gaps lists the holes in the stored series for a device, oldest first.
func (s *DB) Gaps(ctx context.Context, deviceID int64) ([]Gap, error) {
	rows, err := s.db.QueryContext(ctx, gapsSQL, deviceID, gapThresholdSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to query gaps for device %d: %w", deviceID, err)
	}
	defer rows.Close()

	var gaps []Gap
	for rows.Next() {
		var g Gap
		if err := rows.Scan(&g.Start, &g.End, &g.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan gap row: %w", err)
		}
		gaps = append(gaps, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read gap rows: %w", err)
	}

	return gaps, nil
}

// DeviceStats summarizes what is stored for one device.
type DeviceStats struct {
	DeviceID int64
	Records  int64
	Oldest   int64
	Newest   int64
}

// Stats returns record count and observation range for a device. A device
// with no records yields a zero-valued DeviceStats (Records == 0).
func (s *DB) Stats(ctx context.Context, deviceID int64) (DeviceStats, error) {
	st := DeviceStats{DeviceID: deviceID}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM weather WHERE device_id = ?",
		deviceID,
	).Scan(&st.Records, &oldest, &newest)
	if err != nil {
		return DeviceStats{}, fmt.Errorf("failed to query stats for device %d: %w", deviceID, err)
	}

	st.Oldest = oldest.Int64
	st.Newest = newest.Int64
	return st, nil
}
