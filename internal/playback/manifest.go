// Package playback builds timeline playlists and serves recorded
// segments over HTTP.
package playback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/jmylchreest/tvarr-recorder/internal/timeline"
)

// manifestMu serializes manifest filename generation and file creation
// so two concurrent manifest requests never collide on the same
// temporary filename.
var manifestMu sync.Mutex

// BuildManifest writes an HLS-style playlist referencing the containing
// segment for startTime via the internal playback endpoint, placed under
// <storageRoot>/timeline_manifests/manifest_<now>_<stream>_<start>.m3u8.
// The write is atomic (a temp file, fsynced, then renamed into place
// via renameio) so a concurrent GET of the manifest path never
// observes a partially-written playlist.
func BuildManifest(segments []timeline.Segment, startTime time.Time, stream, storageRoot string) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("building manifest for %q: no segments", stream)
	}

	manifestMu.Lock()
	defer manifestMu.Unlock()

	dir := filepath.Join(storageRoot, "timeline_manifests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating manifest directory: %w", err)
	}

	name := fmt.Sprintf("manifest_%d_%s_%d.m3u8", time.Now().Unix(), stream, startTime.Unix())
	path := filepath.Join(dir, name)

	var maxDuration int64
	for _, seg := range segments {
		if d := seg.End - seg.Start; d > maxDuration {
			maxDuration = d
		}
	}
	targetDuration := maxDuration + 1

	entry, _ := ResolveAtStartTime(segments, startTime)
	entryDuration := entry.End - entry.Start

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration)
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-ALLOW-CACHE:YES\n")
	fmt.Fprintf(&b, "#EXTINF:%d,\n", entryDuration)
	fmt.Fprintf(&b, "/api/timeline/play?stream=%s&start=%d\n", stream, startTime.Unix())
	b.WriteString("#EXT-X-ENDLIST\n")

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return "", fmt.Errorf("creating pending manifest file: %w", err)
	}
	defer pendingFile.Cleanup() //nolint:errcheck // best-effort cleanup on error/early return

	if _, err := pendingFile.WriteString(b.String()); err != nil {
		return "", fmt.Errorf("writing manifest %s: %w", path, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("atomically replacing manifest %s: %w", path, err)
	}

	return path, nil
}

// ResolveAtStartTime picks the playback entry segment: prefer the
// segment whose [start,end] contains the timestamp; otherwise the
// first segment starting later than it; otherwise the first segment.
// segments must already be ordered by start time ascending.
func ResolveAtStartTime(segments []timeline.Segment, at time.Time) (timeline.Segment, bool) {
	if len(segments) == 0 {
		return timeline.Segment{}, false
	}

	t := at.Unix()
	for _, seg := range segments {
		if seg.Start <= t && t <= seg.End {
			return seg, true
		}
	}
	for _, seg := range segments {
		if seg.Start > t {
			return seg, true
		}
	}
	return segments[0], true
}
