package domain

import (
	"fmt"
	"time"
)

// Timeframe is the overview lookback window in days, restricted to a fixed
// enumerated set.
type Timeframe int

const (
	TimeframeDay       Timeframe = 1
	TimeframeWeek      Timeframe = 7
	TimeframeFortnight Timeframe = 14
	TimeframeFourWeeks Timeframe = 28
)

// Timeframes lists every supported lookback window.
var Timeframes = []Timeframe{TimeframeDay, TimeframeWeek, TimeframeFortnight, TimeframeFourWeeks}

// ParseTimeframe validates a raw day count against the supported set.
func ParseTimeframe(days int) (Timeframe, error) {
	for _, tf := range Timeframes {
		if int(tf) == days {
			return tf, nil
		}
	}
	return 0, fmt.Errorf("%w: %d days", ErrInvalidTimeframe, days)
}

// Days returns the window length as an int.
func (t Timeframe) Days() int {
	return int(t)
}

// WindowStart returns the inclusive lower bound of the lookback window.
func (t Timeframe) WindowStart(now time.Time) time.Time {
	return now.UTC().Add(-time.Duration(t) * 24 * time.Hour)
}

// Label returns the human-readable window name used in highlights.
func (t Timeframe) Label() string {
	if t == TimeframeDay {
		return "last 24 hours"
	}
	return fmt.Sprintf("last %d days", int(t))
}
