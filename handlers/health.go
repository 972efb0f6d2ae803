package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks    map[string]Pinger
	startTime time.Time
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks, startTime: time.Now()}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Time      string            `json:"time"`
	Checks    map[string]string `json:"checks"`
	Uptime    string            `json:"uptime"`
	GoVersion string            `json:"go_version"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := healthResponse{
		Status:    "ok",
		Time:      time.Now().Format(time.RFC3339),
		Checks:    map[string]string{},
		Uptime:    fmt.Sprintf("%v", time.Since(h.startTime).Round(time.Second)),
		GoVersion: runtime.Version(),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		checkCtx, checkCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := h.checks[name].Ping(checkCtx)
		checkCancel()
		if err != nil {
			health.Status = "degraded"
			health.Checks[name] = "error"
			continue
		}
		health.Checks[name] = "connected"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
