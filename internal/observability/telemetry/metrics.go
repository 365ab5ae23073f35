package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend API
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "totli_api_requests_total",
		Help: "Backend API requests by endpoint and result",
	}, []string{"endpoint", "result"})

	APIRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "totli_api_request_latency_seconds",
		Help:    "Backend API round-trip latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// Sync cycles
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "totli_refresh_total",
		Help: "Dashboard refresh cycles by outcome",
	}, []string{"result"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "totli_refresh_duration_seconds",
		Help:    "Duration of a full dashboard refresh cycle",
		Buckets: prometheus.DefBuckets,
	})

	RefreshInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "totli_refresh_in_flight",
		Help: "Refresh cycles currently running",
	})

	// Realtime channel
	RealtimeSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "totli_realtime_signals_total",
		Help: "Refresh signals received from the realtime channel",
	}, []string{"transport"})

	RealtimeConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "totli_realtime_connected",
		Help: "1 while the realtime channel is connected",
	}, []string{"transport"})

	RealtimeReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "totli_realtime_reconnects_total",
		Help: "Realtime channel reconnect attempts",
	}, []string{"transport"})

	// Presentation bridge
	UpdateClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "totli_update_clients",
		Help: "Connected snapshot push clients",
	})
)
