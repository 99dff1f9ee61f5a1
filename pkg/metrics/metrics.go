package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sw33tLie/spotscope/internal/utils"
)

var (
	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotscope_fetch_total",
		Help: "HTTP fetches by request kind and outcome.",
	}, []string{"kind", "outcome"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spotscope_fetch_duration_seconds",
		Help:    "HTTP fetch latency by request kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	RobotsVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotscope_robots_verdicts_total",
		Help: "Robots evaluations by resulting status.",
	}, []string{"can_fetch"})

	TosVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotscope_tos_verdicts_total",
		Help: "Terms-of-service evaluations by resulting status.",
	}, []string{"can_scrape"})

	ExtractResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotscope_extract_results_total",
		Help: "Extraction results by outcome.",
	}, []string{"outcome"})

	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotscope_llm_calls_total",
		Help: "LLM completions by outcome.",
	}, []string{"outcome"})
)

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		utils.Log.Infof("Serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Log.Warnf("metrics server stopped: %v", err)
		}
	}()
}
