// Package metrics holds the Prometheus collectors of the service and the
// HTTP server exposing them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anyone_dns"

// Registry holds every collector of the service.
var Registry = prometheus.NewRegistry()

var (
	refreshTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_total",
		Help:      "Cache refresh attempts by outcome.",
	}, []string{"outcome"})

	refreshDuration = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of cache refreshes.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	resolutionsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolutions_total",
		Help:      "Domain resolutions by result.",
	}, []string{"result"})

	cachedDomains = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cached_domains",
		Help:      "Domains in the current cache snapshot.",
	})

	cachedHosts = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cached_hosts",
		Help:      "Successfully resolved domains in the current cache snapshot.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordRefresh records the outcome and duration of one cache refresh.
func RecordRefresh(outcome string, took time.Duration) {
	refreshTotal.WithLabelValues(outcome).Inc()
	refreshDuration.Observe(took.Seconds())
}

// RecordResolution counts one resolution result, "success" or a failure kind name.
func RecordResolution(result string) {
	resolutionsTotal.WithLabelValues(result).Inc()
}

// SetCacheSize publishes the size of the current snapshot.
func SetCacheSize(domains, hosts int) {
	cachedDomains.Set(float64(domains))
	cachedHosts.Set(float64(hosts))
}

// MetricsServer serves Registry on /metrics.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the HTTP handler of the metrics server.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
