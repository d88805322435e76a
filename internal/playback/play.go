package playback

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Recording is the minimal segment info PlayRecording needs to serve a
// file. Handlers resolve a catalog row to this before calling
// PlayRecording; a missing row or file is the handler's job to turn
// into a 404.
type Recording struct {
	ID       uint64
	FilePath string
}

// PlayRecording serves a recording file honoring HTTP Range requests
// byte-exactly (single-range, suffix-range, open-ended, and the
// bytes=0-0 -> 206 one-byte edge case) via http.ServeContent rather
// than hand-rolled Range-header parsing. Content-type is chosen by
// extension; Accept-Ranges, permissive CORS, and a one-hour
// Cache-Control are always set.
func PlayRecording(w http.ResponseWriter, r *http.Request, rec Recording) error {
	f, err := os.Open(rec.FilePath)
	if err != nil {
		return fmt.Errorf("opening recording %d at %s: %w", rec.ID, rec.FilePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("statting recording %d at %s: %w", rec.ID, rec.FilePath, err)
	}

	h := w.Header()
	h.Set("Content-Type", contentTypeForPath(rec.FilePath))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "max-age=3600")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")

	http.ServeContent(w, r, filepath.Base(rec.FilePath), info.ModTime(), f)
	return nil
}

// contentTypeForPath maps a recording's file extension to its MIME
// type, defaulting to video/mp4 for anything unrecognized.
func contentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	default:
		return "video/mp4"
	}
}
