package drive

import (
	"strings"
	"time"
)

var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

// DefaultDeadline is used when a drive is created without a deadline.
func DefaultDeadline(date time.Time) time.Time {
	return date.Add(-24 * time.Hour)
}

// EffectiveDeadline is the last instant applications are accepted. The deadline
// field wins over the drive date. A configured time of day is applied to that
// calendar day, otherwise the whole day up to 23:59:59 is open.
func (d *JobDrive) EffectiveDeadline(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	base := d.Date
	if d.Deadline != nil && !d.Deadline.IsZero() {
		base = *d.Deadline
	}
	year, month, day := base.In(loc).Date()
	if hour, minute, ok := parseClock(d.Time); ok {
		return time.Date(year, month, day, hour, minute, 0, 0, loc)
	}
	return time.Date(year, month, day, 23, 59, 59, 0, loc)
}

func (d *JobDrive) DeadlinePassed(now time.Time, loc *time.Location) bool {
	return now.After(d.EffectiveDeadline(loc))
}

func parseClock(value string) (int, int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, false
	}
	for _, layout := range clockLayouts {
		parsed, err := time.Parse(layout, strings.ToUpper(value))
		if err == nil {
			return parsed.Hour(), parsed.Minute(), true
		}
	}
	return 0, 0, false
}
