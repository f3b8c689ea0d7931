// Package metrics exposes the prometheus counters/gauges the engine emits,
// grounded on services/pricing_service/src/PricingController.go's
// ControllerMetrics/NewControllerMetrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics collects calculation, cache, and circuit-breaker metrics.
type EngineMetrics struct {
	CalculationsTotal    prometheus.Counter
	CalculationDuration  prometheus.Histogram
	CalculationErrors    prometheus.Counter
	CacheHitRate         prometheus.Gauge
	ProviderFallbackUsed prometheus.Counter
	CircuitBreakerTrips  *prometheus.CounterVec
}

// New registers and returns the engine's metric set against the default
// registry, mirroring NewControllerMetrics's one-shot promauto wiring.
func New() *EngineMetrics {
	return &EngineMetrics{
		CalculationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landedcost_calculations_total",
			Help: "Total number of landed-cost calculations performed",
		}),
		CalculationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "landedcost_calculation_duration_seconds",
			Help: "Duration of landed-cost calculations",
		}),
		CalculationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landedcost_calculation_errors_total",
			Help: "Total number of calculations that did not complete: needs_input, shipment not found, or any other error",
		}),
		CacheHitRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "landedcost_cache_hit_rate",
			Help: "Number of fast-cache hits across rate providers since process start",
		}),
		ProviderFallbackUsed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landedcost_provider_fallback_total",
			Help: "Rate lookups served from a DB override instead of cache or remote API; no provider increments this counter, so it stays at zero",
		}),
		CircuitBreakerTrips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "landedcost_circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips to the open state, by provider",
		}, []string{"provider"}),
	}
}
