package metrics

import (
	"errors"
	"fmt"
	"time"
)

// MaxWindows caps the number of resampling windows in one series. At the
// widest bucket it covers more than two months of samples.
const MaxWindows = 100_000

// ErrSpanTooWide is returned when timestamps spread over more windows than
// MaxWindows, which usually means a stray or misparsed timestamp.
var ErrSpanTooWide = errors.New("sample timestamps span too many windows")

// BucketWidth is the resampling window used for chart series.
type BucketWidth struct {
	Width time.Duration
	Label string
}

// String returns the pandas-style frequency label ("5s", "1min").
func (b BucketWidth) String() string { return b.Label }

// MarshalText encodes the width as its label.
func (b BucketWidth) MarshalText() ([]byte, error) { return []byte(b.Label), nil }

// UnmarshalText accepts one of the labels produced by BucketWidthFor.
func (b *BucketWidth) UnmarshalText(text []byte) error {
	for _, candidate := range bucketPolicy {
		if candidate.width.Label == string(text) {
			*b = candidate.width
			return nil
		}
	}
	if string(text) == overflowBucket.Label {
		*b = overflowBucket
		return nil
	}
	return fmt.Errorf("unknown bucket width %q", text)
}

var (
	bucketPolicy = []struct {
		upTo  time.Duration
		width BucketWidth
	}{
		{5 * time.Minute, BucketWidth{5 * time.Second, "5s"}},
		{15 * time.Minute, BucketWidth{10 * time.Second, "10s"}},
		{30 * time.Minute, BucketWidth{30 * time.Second, "30s"}},
	}
	overflowBucket = BucketWidth{time.Minute, "1min"}
)

// BucketWidthFor picks the window width from the total run duration so a
// chart carries roughly 50 to 100 points. A duration sitting exactly on a
// boundary gets the narrower window.
func BucketWidthFor(runDuration time.Duration) BucketWidth {
	for _, step := range bucketPolicy {
		if runDuration <= step.upTo {
			return step.width
		}
	}
	return overflowBucket
}

// bucketIndex returns the epoch-aligned window holding t.
func bucketIndex(t time.Time, width time.Duration) int64 {
	ms := t.UnixMilli()
	w := width.Milliseconds()
	idx := ms / w
	if ms%w != 0 && ms < 0 {
		idx--
	}
	return idx
}

func bucketStart(idx int64, width time.Duration) time.Time {
	return time.UnixMilli(idx * width.Milliseconds()).UTC()
}

// bucketRange returns the first and last window index covering times.
func bucketRange(times []time.Time, width time.Duration) (int64, int64) {
	first := bucketIndex(times[0], width)
	last := first
	for _, t := range times[1:] {
		idx := bucketIndex(t, width)
		if idx < first {
			first = idx
		}
		if idx > last {
			last = idx
		}
	}
	return first, last
}

// checkWindows rejects a first..last window range larger than MaxWindows.
func checkWindows(first, last int64, width BucketWidth) error {
	if n := last - first + 1; n > MaxWindows || n < 1 {
		return fmt.Errorf("%w: %s to %s needs %d windows of %s (limit %d)",
			ErrSpanTooWide,
			bucketStart(first, width.Width).Format(time.RFC3339),
			bucketStart(last, width.Width).Format(time.RFC3339),
			n, width, MaxWindows)
	}
	return nil
}
