package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Serve registers the collectors with the default registry and exposes them
// on addr under /metrics. The returned server is already listening in the
// background; callers Shutdown it.
func Serve(addr string, log *slog.Logger) *http.Server {
	if log == nil {
		log = slog.Default()
	}
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed", "err", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint failed", "addr", addr, "err", err)
		}
	}()
	log.Info("metrics endpoint listening", "addr", addr)
	return srv
}
