// File: internal/observability/metrics.go
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// ActionsTotal counts dispatched actions by kind and outcome.
	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webprobe_actions_total",
			Help: "Actions dispatched, by action and status.",
		},
		[]string{"action", "status"},
	)

	// ResolutionsTotal counts locator resolutions by the source that answered.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webprobe_resolutions_total",
			Help: "Locator resolutions, by source (dom, vlm, none).",
		},
		[]string{"source"},
	)

	VLMCostUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webprobe_vlm_cost_usd_total",
			Help: "Tracked vision model spend in USD, by provider.",
		},
		[]string{"provider"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webprobe_action_duration_ms",
			Help:    "Action latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(ActionsTotal, ResolutionsTotal, VLMCostUSD, ActionDuration)
}

// ServeMetrics exposes the default registry on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics.", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
