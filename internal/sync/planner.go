package sync

import "time"

// DefaultRevisionWindow is the trailing duration re-fetched on every run.
// The provider may revise recent observations after first publishing them;
// re-requesting the last day and upserting pulls those corrections in.
const DefaultRevisionWindow = 24 * time.Hour

// DefaultEarliest is the first instant any Tempest station could have
// reported: 2017-01-01T00:00:00Z. First syncs start here unless configured
// otherwise.
const DefaultEarliest int64 = 1483228800

// Range is a half-open fetch range [Start, End) in epoch seconds.
type Range struct {
	Start int64
	End   int64
}

// Plan computes the fetch range for one device from its stored watermark.
// With no watermark (first sync) the range covers all of device history.
// With a watermark, the start backs up by the revision window, clamped so
// it never precedes the earliest possible data. Pure function; no I/O.
func Plan(watermark int64, haveWatermark bool, now time.Time, revisionWindow time.Duration, earliest int64) Range {
	end := now.Unix()

	if !haveWatermark {
		return Range{Start: earliest, End: end}
	}

	start := watermark - int64(revisionWindow/time.Second)
	if start < earliest {
		start = earliest
	}
	return Range{Start: start, End: end}
}
