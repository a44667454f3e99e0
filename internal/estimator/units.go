package estimator

import "strings"

// TimeUnit is the unit in which Dt and Times are expressed.
// The zero value means hours.
type TimeUnit string

const (
	Second TimeUnit = "second"
	Minute TimeUnit = "minute"
	Hour   TimeUnit = "hour"
	Day    TimeUnit = "day"
)

// Seconds returns the length of one unit in seconds.
func (u TimeUnit) Seconds() float64 {
	switch u {
	case Second:
		return 1
	case Minute:
		return 60
	case Day:
		return 86400
	default:
		return 3600
	}
}

// ParseTimeUnit accepts the unit names plus the usual short forms (s, min, h, d).
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return Second, nil
	case "m", "min", "minute", "minutes":
		return Minute, nil
	case "", "h", "hr", "hour", "hours":
		return Hour, nil
	case "d", "day", "days":
		return Day, nil
	}
	return "", invalidf("time_unit", "unknown time unit %q", s)
}
