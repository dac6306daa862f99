package utils

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date used for report dates. Values in this layout
// order lexicographically the same as chronologically.
const DateLayout = "2006-01-02"

const DefaultTimezone = "Asia/Jakarta"

// LoadLocation returns the named zone, falling back to a fixed WIB (UTC+7) offset when
// the host has no tz database.
func LoadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("WIB", 7*60*60)
}

// DateIn formats t as a calendar date in loc.
func DateIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// IsISODate reports whether s is a valid YYYY-MM-DD date.
func IsISODate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
