// Package metrics holds the Prometheus collectors the service exports on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkplaces_http_requests_total",
		Help: "HTTP requests by method, route pattern and status",
	}, []string{"method", "route", "status"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parkplaces_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	PlacesCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkplaces_places_created_total",
		Help: "Places registered, by whether a location was attached",
	}, []string{"located"})
	PlacesDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parkplaces_places_deleted_total",
		Help: "Confirmed place deletions",
	})
	StoreFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkplaces_store_failures_total",
		Help: "Place store failures by operation (create, list, delete)",
	}, []string{"op"})
	GeoCapturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parkplaces_geo_captures_total",
		Help: "Geolocation captures by outcome",
	}, []string{"outcome"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parkplaces_sessions_active",
		Help: "Live user sessions",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(PlacesCreatedTotal)
	prometheus.MustRegister(PlacesDeletedTotal)
	prometheus.MustRegister(StoreFailuresTotal)
	prometheus.MustRegister(GeoCapturesTotal)
	prometheus.MustRegister(SessionsActive)
}

// Handler serves every registered collector for Prometheus to scrape.
func Handler() http.Handler { return promhttp.Handler() }
