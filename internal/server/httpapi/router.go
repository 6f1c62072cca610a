package httpapi

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/rs/cors"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/logging"
	"github.com/dmitrijs2005/attachlink/internal/metrics"
)

func newRouter(h *handler, opts Options, logger logging.Logger, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.health)
	mux.Handle("GET /metrics", m.Handler())

	mux.HandleFunc("POST /generate", limitBody(opts.MaxRequestSize, h.generate))
	mux.HandleFunc("POST /upload", limitBody(opts.MaxRequestSize, h.upload))
	mux.HandleFunc("POST /scramble", limitBody(opts.MaxRequestSize, h.scramble))

	mux.HandleFunc("GET /{digit}/{encrypted}", h.retrieve)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", common.RequestIDHeaderName},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length", common.RequestIDHeaderName},
	})

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(true),
	)

	return recovery(c.Handler(withRequestID(accessLog(logger, m)(mux))))
}

func limitBody(n int64, h http.HandlerFunc) http.HandlerFunc {
	if n <= 0 {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, n)
		h(w, r)
	}
}
