package aggregate

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type cacheMetrics struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	cacheMetricsOnce sync.Once
	cacheMetricsErr  error
	activeMetrics    atomic.Pointer[cacheMetrics]
)

// SetupCacheMetrics registers the dashboard cache collectors on reg (the
// default registerer when nil). Only the first call registers; collectors
// already present on reg are reused.
func SetupCacheMetrics(reg prometheus.Registerer) error {
	cacheMetricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m, err := registerCacheMetrics(reg)
		if err != nil {
			cacheMetricsErr = err
			return
		}
		activeMetrics.Store(m)
	})
	return cacheMetricsErr
}

func registerCacheMetrics(reg prometheus.Registerer) (*cacheMetrics, error) {
	hits, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_dashboard_cache_hits_total",
		Help: "Dashboard totals served from the Redis cache.",
	}, []string{"view"}))
	if err != nil {
		return nil, err
	}
	misses, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "daybook_dashboard_cache_miss_total",
		Help: "Dashboard totals recomputed from the ledger.",
	}, []string{"view"}))
	if err != nil {
		return nil, err
	}
	duration, err := registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "daybook_dashboard_build_duration_seconds",
		Help:    "Time spent computing dashboard totals on a cache miss.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"view"}))
	if err != nil {
		return nil, err
	}
	return &cacheMetrics{hits: hits, misses: misses, duration: duration}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return c, fmt.Errorf("aggregate: register metrics: %w", err)
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return c, fmt.Errorf("aggregate: register metrics: collector type %T", already.ExistingCollector)
	}
	return existing, nil
}

func recordCacheHit(view string) {
	if m := activeMetrics.Load(); m != nil {
		m.hits.WithLabelValues(view).Inc()
	}
}

func recordCacheMiss(view string) {
	if m := activeMetrics.Load(); m != nil {
		m.misses.WithLabelValues(view).Inc()
	}
}

func observeBuildDuration(view string, d time.Duration) {
	if m := activeMetrics.Load(); m != nil {
		m.duration.WithLabelValues(view).Observe(d.Seconds())
	}
}
