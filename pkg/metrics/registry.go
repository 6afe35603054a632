// Package metrics defines the observability interfaces implemented by the
// prometheus subpackage. The server, store and AI components accept these
// interfaces and treat nil as "collection disabled".
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide Prometheus registry and marks
// metrics collection as enabled. Safe to call more than once; later calls
// return the existing registry.
//
// Call this before constructing any component that takes a metrics
// interface, so the prometheus constructors see an enabled registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		enabled = true
	}
	return registry
}

// GetRegistry returns the process-wide registry, or nil when metrics
// collection was never initialized.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// IsEnabled returns whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Handler returns an http.Handler exposing the registry in Prometheus
// text format. When metrics are disabled the handler answers 404 so the
// route can be mounted unconditionally.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg := GetRegistry()
		if reg == nil {
			http.NotFound(w, r)
			return
		}
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
