// Package timeutil parses and formats the offsets and dates used on the
// command line and in reports.
package timeutil

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the game-date format accepted by --from and --to.
const DateLayout = "2006-01-02"

// FormatTime formats seconds as H:MM:SS (e.g. 0:01:30, 1:11:22).
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalSeconds := int(seconds)
	hours := totalSeconds / 3600
	mins := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60
	return fmt.Sprintf("%d:%02d:%02d", hours, mins, secs)
}

// FormatOffset formats an in-period offset as M:SS.s, keeping tenths so that
// nearby cut boundaries stay distinguishable.
func FormatOffset(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	tenths := int(math.Round(seconds * 10))
	return fmt.Sprintf("%d:%02d.%d", tenths/600, (tenths/10)%60, tenths%10)
}

// FormatWindow renders a cut window as "M:SS.s-M:SS.s".
func FormatWindow(start, end float64) string {
	return FormatOffset(start) + "-" + FormatOffset(end)
}

// ParseTimeToSeconds parses a time string in HH:MM:SS, MM:SS, or raw seconds format.
// Uses colon count: 2 colons = H:M:S, 1 colon = M:S, 0 colons = raw seconds.
// The last component may carry a fraction.
func ParseTimeToSeconds(timeStr string) (float64, error) {
	timeStr = strings.TrimSpace(timeStr)
	colons := strings.Count(timeStr, ":")

	switch colons {
	case 2:
		var hours, minutes int
		var seconds float64
		if n, err := fmt.Sscanf(timeStr, "%d:%d:%g", &hours, &minutes, &seconds); n == 3 && err == nil && valid(minutes, seconds) {
			return float64(hours*3600+minutes*60) + seconds, nil
		}
	case 1:
		var minutes int
		var seconds float64
		if n, err := fmt.Sscanf(timeStr, "%d:%g", &minutes, &seconds); n == 2 && err == nil && valid(minutes, seconds) {
			return float64(minutes*60) + seconds, nil
		}
	case 0:
		var secs float64
		if n, err := fmt.Sscanf(timeStr, "%g", &secs); n == 1 && err == nil && secs >= 0 {
			return secs, nil
		}
	}

	return 0, fmt.Errorf("expected HH:MM:SS, MM:SS, or seconds, got '%s'", timeStr)
}

func valid(minutes int, seconds float64) bool {
	return minutes >= 0 && seconds >= 0 && seconds < 60
}

// ParseDate parses a YYYY-MM-DD game date in UTC. An empty string is the zero
// time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got '%s'", s)
	}
	return t, nil
}
