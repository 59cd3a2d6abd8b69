package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseMeta wraps http.ResponseWriter to capture the status code and
// response size.
type responseMeta struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeta) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeta) Write(b []byte) (int, error) {
	n, err := m.ResponseWriter.Write(b)
	m.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer so http.ResponseController can still
// hijack the connection for WebSocket upgrades.
func (m *responseMeta) Unwrap() http.ResponseWriter {
	return m.ResponseWriter
}

// RequestLogger returns middleware that logs each request once it completes.
// Server errors log at error level, client errors at warn, the rest at info.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			meta := &responseMeta{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(meta, r)

			level := slog.LevelInfo
			switch {
			case meta.status >= 500:
				level = slog.LevelError
			case meta.status >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", meta.status),
				slog.Int("bytes", meta.bytes),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", RealIP(r)),
			)
		})
	}
}
