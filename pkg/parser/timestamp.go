package parser

import (
	"fmt"
	"strings"
	"time"
)

// TimeMode selects how departure timestamps are turned into instants
type TimeMode int

const (
	// TimeModeOffset honours the UTC offset carried by the timestamp
	TimeModeOffset TimeMode = iota

	// TimeModeWallClock reads only the date and time fields and interprets
	// them as standard time in the local zone, dropping the offset. Countdowns
	// are off by an hour or more whenever the device zone differs from the
	// feed's offset, and by an extra hour while daylight saving is in effect.
	TimeModeWallClock
)

const wallClockLayout = "2006-01-02T15:04:05"

func (m TimeMode) String() string {
	switch m {
	case TimeModeOffset:
		return "offset"
	case TimeModeWallClock:
		return "wallclock"
	default:
		return fmt.Sprintf("TimeMode(%d)", int(m))
	}
}

// ParseTimeMode accepts "offset" or "wallclock"; empty means offset
func ParseTimeMode(s string) (TimeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "offset":
		return TimeModeOffset, nil
	case "wallclock", "wall-clock", "local":
		return TimeModeWallClock, nil
	default:
		return TimeModeOffset, fmt.Errorf("unknown time mode %q", s)
	}
}

// ParseWhen converts a departure timestamp into an instant.
// loc is only used for timestamps without an offset and in wall-clock mode.
func ParseWhen(s string, mode TimeMode, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}

	if mode == TimeModeWallClock {
		// Trailing fraction or offset is ignored
		if len(s) < len(wallClockLayout) {
			return time.Time{}, fmt.Errorf("timestamp %q too short", s)
		}
		t, err := time.ParseInLocation(wallClockLayout, s[:len(wallClockLayout)], loc)
		if err != nil {
			return time.Time{}, err
		}
		return asStandardTime(t), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(wallClockLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", s, err)
	}
	return t, nil
}

// asStandardTime reinterprets the wall clock of t with the zone's standard
// offset. Outside daylight saving t is returned unchanged.
func asStandardTime(t time.Time) time.Time {
	if !t.IsDST() {
		return t
	}
	start, _ := t.ZoneBounds()
	if start.IsZero() {
		return t
	}
	_, std := start.Add(-time.Second).Zone()
	_, cur := t.Zone()
	return t.Add(time.Duration(cur-std) * time.Second)
}

// MinutesUntil returns whole minutes from now to when, truncated toward zero.
// Something 30 seconds overdue is still 0 ("now"); a full minute overdue is -1.
func MinutesUntil(when, now time.Time) int {
	return int(when.Sub(now) / time.Minute)
}
