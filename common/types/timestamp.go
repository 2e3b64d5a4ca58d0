package types

import (
	"math"
	"time"
)

// Timestamp is a point in time in microseconds since the unix epoch.
type Timestamp int64

// MaxTimestamp is the largest representable timestamp.
const MaxTimestamp = Timestamp(math.MaxInt64)

// TimestampFrom converts time.Time into a Timestamp.
func TimestampFrom(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// Time converts the Timestamp into time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMicro(int64(ts))
}

// String implements fmt.Stringer.
func (ts Timestamp) String() string {
	return ts.Time().UTC().Format(time.RFC3339Nano)
}

// TimeWindow is a half-open time interval [Start, End).
type TimeWindow struct {
	Start, End Timestamp
}

// FullTimeWindow returns the window that includes every timestamp.
func FullTimeWindow() TimeWindow {
	return TimeWindow{Start: 0, End: MaxTimestamp}
}

// Contains returns true if the timestamp is within the window.
func (w TimeWindow) Contains(ts Timestamp) bool {
	return ts >= w.Start && ts < w.End
}
