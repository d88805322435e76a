// Package timeline answers "what was recorded, and when" queries over
// the segment catalog, and parses the HTTP layer's time parameters.
package timeline

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/jmylchreest/tvarr-recorder/internal/catalog"
)

// Segment is the timeline's view of a completed recording: a catalog
// row with its detection flag carried through unchanged.
type Segment struct {
	ID           uint64
	Stream       string
	Path         string
	Start        int64
	End          int64
	SizeBytes    int64
	HasDetection bool
}

// Query wraps catalog.Store.Query with start_time ascending order and
// converts each row into a Segment.
func Query(ctx context.Context, store *catalog.Store, stream string, t0, t1 time.Time, limit int) ([]Segment, error) {
	rows, err := store.Query(ctx, catalog.QueryOptions{
		Stream: stream,
		Start:  t0,
		End:    t1,
		Order:  "asc",
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("querying timeline for %q: %w", stream, err)
	}

	segs := make([]Segment, len(rows))
	for i, row := range rows {
		segs[i] = Segment{
			ID:           row.ID,
			Stream:       row.StreamName,
			Path:         row.FilePath,
			Start:        row.StartTime,
			End:          row.EndTime,
			SizeBytes:    row.SizeBytes,
			HasDetection: row.HasDetection,
		}
	}
	return segs, nil
}

var bareDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseTimeParam accepts seconds-since-epoch, an ISO-8601 instant
// (optional Z, optional .000 or fractional seconds), a bare
// YYYY-MM-DD date, or a relative expression ("2 hours ago").
// Percent-encoded colons (%3A) are decoded before any format is
// tried. A bare date expands to local 00:00:00, or 23:59:59 when
// endOfDay is true.
//
// DST resolution is delegated to time.Date's own ambiguous-local-time
// behavior rather than assumed up front. UTC epoch seconds are what
// callers store.
func ParseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}

	if bareDatePattern.MatchString(raw) {
		var y, m, d int
		if _, err := fmt.Sscanf(raw, "%4d-%2d-%2d", &y, &m, &d); err != nil {
			return time.Time{}, fmt.Errorf("parsing date %q: %w", raw, err)
		}
		if endOfDay {
			return time.Date(y, time.Month(m), d, 23, 59, 59, 0, time.Local), nil
		}
		return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local), nil
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.UTC(), nil
		}
	}

	// Last resort: relative expressions like "2 hours ago", handy when
	// the query is typed by an operator rather than generated by a UI.
	if t, ok := parseRelative(raw, time.Now()); ok {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", raw)
}

// DefaultRange returns the defaults applied when start/end query
// parameters are absent: start = now-24h, end = now.
func DefaultRange(now time.Time) (start, end time.Time) {
	return now.Add(-24 * time.Hour), now
}
