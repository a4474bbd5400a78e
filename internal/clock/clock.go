// Package clock gives every component a single monotonic-since-boot
// millisecond time source, matching the original firmware's
// xTaskGetTickCount()*portTICK_PERIOD_MS semantics. time.Now() is
// unsuitable: it is a wall-clock reading subject to NTP adjustment, and
// PowerRecord/AnomalyEvent timestamps must never jump backwards.
package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

// Now returns the current monotonic time, as a duration since an
// arbitrary, fixed epoch (typically system boot). Only differences
// between two Now() results are meaningful.
func Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is always available on Linux; a failure here
		// indicates a broken host, not a recoverable condition for any
		// caller in the core.
		panic("clock: CLOCK_MONOTONIC unavailable: " + err.Error())
	}
	return time.Duration(unix.TimespecToNsec(ts))
}

// NowMillis returns Now() truncated to milliseconds, the unit the
// reference implementation and the wire payloads use.
func NowMillis() int64 {
	return Now().Milliseconds()
}
