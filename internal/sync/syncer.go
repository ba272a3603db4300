package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"tempestsync/internal/model"
	"tempestsync/internal/tempest"
)

// Phase is where a device's sync currently stands.
type Phase string

const (
	PhasePlanning Phase = "planning"
	PhaseFetching Phase = "fetching"
	PhaseMerging  Phase = "merging"
	PhaseDone     Phase = "done"
	PhaseFailed   Phase = "failed"
)

// Storage is the slice of the storage layer the syncer needs.
type Storage interface {
	LatestTimestamp(ctx context.Context, deviceID int64) (int64, bool, error)
	UpsertObservations(ctx context.Context, obs []model.Observation) error
}

// Fetcher streams pages of observations for a device over a range.
type Fetcher interface {
	FetchRange(ctx context.Context, deviceID int64, start, end int64, handle func([]model.Observation) error) error
}

// Config tunes the planner inputs.
type Config struct {
	RevisionWindow time.Duration
	Earliest       int64
}

// DeviceResult records the outcome of one device's sync.
type DeviceResult struct {
	DeviceID int64
	Range    Range
	Records  int
	Pages    int
	Phase    Phase
	Err      error
}

// Report aggregates per-device results for one run.
type Report struct {
	Devices []DeviceResult
}

// Failed lists the devices that did not reach done.
func (r *Report) Failed() []DeviceResult {
	var failed []DeviceResult
	for _, d := range r.Devices {
		if d.Phase != PhaseDone {
			failed = append(failed, d)
		}
	}
	return failed
}

// Syncer drives the per-device sync loop: plan the range from the stored
// watermark, stream pages from the API, and upsert each page before the
// next is requested. Devices are processed sequentially in caller order.
type Syncer struct {
	store   Storage
	fetcher Fetcher
	cfg     Config
	log     *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Syncer. Zero config values get the package defaults.
func New(store Storage, fetcher Fetcher, cfg Config, log *slog.Logger) *Syncer {
	if cfg.RevisionWindow <= 0 {
		cfg.RevisionWindow = DefaultRevisionWindow
	}
	if cfg.Earliest <= 0 {
		cfg.Earliest = DefaultEarliest
	}

	return &Syncer{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Run syncs every device in order. The returned error is non-nil only for
// run-level failures (bad credential, broken storage), which abort the
// remaining devices; a device whose fetch exhausts its retries is marked
// failed in the report and does not stop its siblings. The report always
// covers the devices attempted so far.
func (s *Syncer) Run(ctx context.Context, deviceIDs []int64) (*Report, error) {
	report := &Report{}

	for _, deviceID := range deviceIDs {
		result, err := s.syncDevice(ctx, deviceID)
		report.Devices = append(report.Devices, result)
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

func (s *Syncer) syncDevice(ctx context.Context, deviceID int64) (DeviceResult, error) {
	result := DeviceResult{DeviceID: deviceID, Phase: PhasePlanning}
	s.log.Info("syncing device", "device", deviceID)

	watermark, haveWatermark, err := s.store.LatestTimestamp(ctx, deviceID)
	if err != nil {
		result.Phase = PhaseFailed
		result.Err = err
		return result, fmt.Errorf("storage failure while planning device %d: %w", deviceID, err)
	}

	result.Range = Plan(watermark, haveWatermark, s.now(), s.cfg.RevisionWindow, s.cfg.Earliest)
	s.log.Info("planned fetch range",
		"device", deviceID,
		"watermark", watermark,
		"start", result.Range.Start,
		"end", result.Range.End,
	)

	result.Phase = PhaseFetching
	var mergeErr error
	err = s.fetcher.FetchRange(ctx, deviceID, result.Range.Start, result.Range.End, func(page []model.Observation) error {
		result.Phase = PhaseMerging
		if err := s.store.UpsertObservations(ctx, page); err != nil {
			mergeErr = err
			return err
		}
		result.Records += len(page)
		result.Pages++
		s.log.Debug("merged page", "device", deviceID, "records", len(page))
		result.Phase = PhaseFetching
		return nil
	})

	switch {
	case err == nil:
		result.Phase = PhaseDone
		s.log.Info("finished device", "device", deviceID, "records", result.Records, "pages", result.Pages)
		return result, nil

	case mergeErr != nil:
		// Storage broke mid-merge. Pages already committed are intact, but
		// the run cannot usefully continue.
		result.Phase = PhaseFailed
		result.Err = mergeErr
		return result, fmt.Errorf("storage failure while merging device %d: %w", deviceID, mergeErr)

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Phase = PhaseFailed
		result.Err = err
		return result, err

	case errors.Is(err, tempest.ErrAuth):
		// A rejected credential fails for every device identically.
		result.Phase = PhaseFailed
		result.Err = err
		return result, fmt.Errorf("device %d: %w", deviceID, err)

	default:
		// Fetch exhaustion is scoped to this device.
		result.Phase = PhaseFailed
		result.Err = err
		s.log.Warn("device sync failed", "device", deviceID, "error", err)
		return result, nil
	}
}
