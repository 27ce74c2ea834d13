package log

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

// HTTPMiddleware logs one line per request with status, size and latency.
func HTTPMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", m.Code,
				"bytes", m.Written,
				"duration_ms", m.Duration.Milliseconds(),
				"remote_addr", r.RemoteAddr,
			}
			if m.Code >= http.StatusInternalServerError {
				logger.Errorw("http request", fields...)
				return
			}
			logger.Infow("http request", fields...)
		})
	}
}
