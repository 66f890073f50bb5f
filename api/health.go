package api

import (
	"context"
	"net/http"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

var startTime = time.Now()

// HealthHandler reports liveness plus dependency checks.
type HealthHandler struct {
	database Pinger
	redis    Pinger
}

func NewHealthHandler(database, redis Pinger) *HealthHandler {
	return &HealthHandler{
		database: database,
		redis:    redis,
	}
}

func (h *HealthHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(startTime).String(),
		Checks:    make(map[string]string),
	}
	status := http.StatusOK

	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			response.Checks[name] = err.Error()
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			return
		}
		response.Checks[name] = "ok"
	}
	check("database", h.database)
	check("redis", h.redis)

	writeJSON(w, status, response)
}
