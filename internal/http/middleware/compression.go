package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForMedia wraps a compression middleware so it never
// touches recording playback. Coded video doesn't shrink under
// deflate, and a compressing writer breaks the byte-exact
// Content-Range math Range requests depend on; JSON timeline
// responses and playlists still compress normally.
func SkipCompressionForMedia(compress func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressed := compress(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/recordings/play/") || r.Header.Get("Range") != "" {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}
}
