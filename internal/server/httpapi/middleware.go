package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/logging"
	"github.com/dmitrijs2005/attachlink/internal/metrics"
)

const maxRequestIDLen = 128

// withRequestID reuses a sane incoming X-Request-ID or mints a new one,
// echoes it on the response and stores it in the request context.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeaderName)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(common.RequestIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.size += int64(n)
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// accessLog writes one line per request and feeds the HTTP metrics. The
// route label is the matched mux pattern, so token values never become
// label values.
func accessLog(logger logging.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			m.ObserveHTTP(route, rec.status, elapsed)
			logger.Info(r.Context(), "request",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"bytes", rec.size,
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}

// recoveryLogger adapts Logger to the Println interface the recovery
// handler expects.
type recoveryLogger struct {
	logger logging.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error(context.Background(), "panic recovered", "detail", fmt.Sprint(v...))
}
