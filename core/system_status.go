package core

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is implemented by *pgxpool.Pool; Redis clients are adapted with PingFunc.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// SystemStatus is the payload of the health endpoint.
type SystemStatus struct {
	Status        string            `json:"status"`
	Backends      map[string]string `json:"backends,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
}

// CollectSystemStatus pings every backend and reports whether all answered.
func CollectSystemStatus(ctx context.Context, backends map[string]Pinger, startedAt time.Time) (SystemStatus, bool) {
	st := SystemStatus{Status: "ok", Backends: make(map[string]string, len(backends))}
	healthy := true

	for name, p := range backends {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			st.Backends[name] = "unavailable"
			healthy = false
			continue
		}
		st.Backends[name] = "ok"
	}
	if !healthy {
		st.Status = "degraded"
	}

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return st, healthy
}

// HealthHandler serves CollectSystemStatus as JSON; 503 when a backend is down.
func HealthHandler(backends map[string]Pinger) gin.HandlerFunc {
	startedAt := time.Now()
	return func(c *gin.Context) {
		st, healthy := CollectSystemStatus(c.Request.Context(), backends, startedAt)
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, st)
	}
}
