package middleware

import (
	"net/http"
	"strings"
)

// CORS allows browser players on other origins to hit the API. The
// header set is shaped by video playback: Range must be an allowed
// request header and Content-Range/Accept-Ranges must be exposed, or
// a cross-origin <video> element can load a recording but never seek
// in it. origins lists the allowed origins; empty or "*" allows all.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				h := w.Header()
				if allowAll {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, HEAD, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Range, "+RequestIDHeader)
				h.Set("Access-Control-Expose-Headers", strings.Join([]string{
					"Content-Range", "Accept-Ranges", "Content-Length", RequestIDHeader,
				}, ", "))
				h.Set("Access-Control-Max-Age", "300")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
