package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/thealah/rest-windows-service-health-facade/internal/logging"
)

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(p)
}

// withRequestLogging tags each request with an id, puts a request logger in
// the context, recovers handler panics and writes one access log line.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(requestIDHeader, id)

		logger := logging.WithRequest(log, id)
		ctx := logging.NewContext(r.Context(), logger)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				logger.Error("handler panicked", "panic", p, "stack", string(debug.Stack()))
				if !rec.wroteHeader {
					http.Error(rec, "internal error", http.StatusInternalServerError)
				}
			}
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"remote", r.RemoteAddr,
				logging.KeyDurationMs, time.Since(start).Milliseconds(),
			)
		}()

		next.ServeHTTP(rec, r.WithContext(ctx))
	})
}
