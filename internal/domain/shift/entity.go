package shift

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// TimeOfDay is a wall-clock time as seconds since midnight, in [0, 86400).
type TimeOfDay int

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM or HH:MM:SS", s)
	}
	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		values[i] = v
	}
	return TimeOfDay(values[0]*3600 + values[1]*60 + values[2]), nil
}

// TimeOfDayOf returns the clock time of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (t TimeOfDay) Hour() int   { return int(t) / 3600 }
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }
func (t TimeOfDay) Second() int { return int(t) % 60 }

// String formats as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Short formats as HH:MM.
func (t TimeOfDay) Short() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On places t on the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, day.Location())
}

type Shift struct {
	ID        int64
	Name      string
	Code      string
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Latitude  *float64
	Longitude *float64
	Radius    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOvernight reports whether the shift wraps past midnight.
func (s Shift) IsOvernight() bool {
	return s.EndTime < s.StartTime
}

// HasGeofence reports whether check-ins against this shift must be within Radius.
func (s Shift) HasGeofence() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Covers reports whether clock time t falls inside the shift. Both bounds are inclusive.
func (s Shift) Covers(t TimeOfDay) bool {
	if s.IsOvernight() {
		return t >= s.StartTime || t <= s.EndTime
	}
	return s.StartTime <= t && t <= s.EndTime
}

// FormattedRange renders the window as HH:MM-HH:MM.
func (s Shift) FormattedRange() string {
	return s.StartTime.Short() + "-" + s.EndTime.Short()
}

// segment is a half-open range [from, to) of seconds within one 24h cycle.
type segment struct {
	from, to int
}

// segments splits a window into one or two half-open sub-ranges of the day.
// An overnight window becomes [start, 24:00) and [00:00, end).
func segments(start, end TimeOfDay) []segment {
	if end >= start {
		return []segment{{int(start), int(end)}}
	}
	segs := []segment{{int(start), secondsPerDay}}
	if end > 0 {
		segs = append(segs, segment{0, int(end)})
	}
	return segs
}

// WindowsOverlap reports whether two windows share any instant of the day.
// Windows that only touch at a boundary do not overlap.
func WindowsOverlap(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	for _, a := range segments(aStart, aEnd) {
		for _, b := range segments(bStart, bEnd) {
			if a.from < b.to && b.from < a.to {
				return true
			}
		}
	}
	return false
}
