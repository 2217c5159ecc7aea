package apps

import (
	"fmt"
	"strings"
	"time"
)

// CreateOpts controls mutating backend calls. SkipLog suppresses the
// audit entry so a caller (the recovery manager) can write its own.
type CreateOpts struct {
	SkipLog bool
}

// quote escapes a string for embedding inside AppleScript double
// quotes. Backslashes first, then quotes.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// appleDate emits AppleScript statements that build a date value in
// the variable named by varName. Constructing the date field-by-field
// sidesteps locale-dependent date string parsing.
func appleDate(varName string, t time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "set %s to (current date)\n", varName)
	fmt.Fprintf(&b, "set year of %s to %d\n", varName, t.Year())
	fmt.Fprintf(&b, "set month of %s to %d\n", varName, int(t.Month()))
	fmt.Fprintf(&b, "set day of %s to %d\n", varName, t.Day())
	fmt.Fprintf(&b, "set hours of %s to %d\n", varName, t.Hour())
	fmt.Fprintf(&b, "set minutes of %s to %d\n", varName, t.Minute())
	fmt.Fprintf(&b, "set seconds of %s to %d\n", varName, t.Second())
	return b.String()
}

// isoLayout matches the output of AppleScript's
// `as «class isot» as string` coercion: local time, no zone.
const isoLayout = "2006-01-02T15:04:05"

func parseAppleISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(isoLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// splitLines splits linefeed-joined script output, dropping blanks.
func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
