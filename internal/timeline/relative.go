package timeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relativePattern matches "<n> <unit> ago", "in <n> <unit>", and
// "<n> <unit> from now". Units cover the spans an operator scrubbing a
// surveillance timeline actually reaches for; anything finer than a
// second or coarser than a week is a literal timestamp's job.
var relativePattern = regexp.MustCompile(
	`^(?:(in)\s+)?(\d+(?:\.\d+)?)\s*(s|sec|seconds?|m|min|minutes?|h|hours?|d|days?|w|weeks?)(?:\s+(ago|from\s+now))?$`)

var relativeUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// parseRelative resolves a relative time expression against now.
// Returns false for anything it does not recognize, including
// expressions with no direction at all ("2 hours").
func parseRelative(raw string, now time.Time) (time.Time, bool) {
	m := relativePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return time.Time{}, false
	}

	future := m[1] == "in"
	past := m[4] == "ago"
	if !future && !past && !strings.HasPrefix(m[4], "from") {
		return time.Time{}, false
	}
	if future && m[4] != "" {
		// "in 2 hours ago" is nonsense.
		return time.Time{}, false
	}

	n, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return time.Time{}, false
	}
	offset := time.Duration(n * float64(relativeUnits[m[3][0]]))

	if past {
		return now.Add(-offset), true
	}
	return now.Add(offset), true
}
