package extract

import (
	"log/slog"
	"regexp"
	"time"
)

const dateLayout = "2006-01-02"

// offsetPattern matches fixed-offset timezone specifiers like "UTC+7",
// "GMT-3:30" or "UTC+07:00".
var offsetPattern = regexp.MustCompile(`^(?:GMT|UTC)([+-])(\d{1,2})(?::(\d{2}))?$`)

// ResolveDate converts a unix-epoch millisecond timestamp and a timezone
// specifier into a YYYY-MM-DD calendar date string. It never fails,
// degrading through three strategies:
//
//  1. IANA timezone name ("Asia/Jakarta"), full calendar rules.
//  2. Fixed UTC offset of the form (GMT|UTC)[+-]H[:MM].
//  3. Plain UTC date (with a warning logged).
func ResolveDate(timestampMillis int64, tz string) string {
	instant := time.UnixMilli(timestampMillis).UTC()

	if loc, err := time.LoadLocation(tz); err == nil {
		return instant.In(loc).Format(dateLayout)
	}

	if m := offsetPattern.FindStringSubmatch(tz); m != nil {
		hours := parseDigits(m[2])
		minutes := 0
		if m[3] != "" {
			minutes = parseDigits(m[3])
		}
		offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
		if m[1] == "-" {
			offset = -offset
		}
		return instant.Add(offset).Format(dateLayout)
	}

	slog.Warn("unresolvable timezone, falling back to UTC", "timezone", tz)
	return instant.Format(dateLayout)
}

// parseDigits parses a short digit-only string already vetted by the
// offset pattern.
func parseDigits(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
