package core

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Register and login attempts by outcome (ok, validation, conflict, authentication, internal, throttled).",
	}, []string{"operation", "outcome"})

	hashDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_password_hash_duration_seconds",
		Help:    "Time spent computing or verifying password hashes.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"op"})

	sessionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_session_operations_total",
		Help: "Session store operations by result.",
	}, []string{"op", "result"})

	redisBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auth_redis_circuit_breaker_state",
		Help: "Redis circuit breaker state (0=closed, 1=half-open, 2=open).",
	})
)

func recordAttempt(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(AsAppError(err, "").Kind)
	}
	authAttempts.WithLabelValues(operation, outcome).Inc()
}

func recordSessionOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sessionOps.WithLabelValues(op, result).Inc()
}

// MetricsHandler exposes the default Prometheus registry.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
