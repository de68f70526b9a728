package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/poke-monitor/internal/config"
	"github.com/dwizi/poke-monitor/internal/heartbeat"
	"github.com/dwizi/poke-monitor/internal/poke"
)

type ReadinessProbe interface {
	Connected() bool
}

type StatsProvider interface {
	Stats(now time.Time) []poke.GroupStats
}

type Dependencies struct {
	Config              config.Config
	Version             string
	Connector           ReadinessProbe
	Stats               StatsProvider
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
	Now                 func() time.Time
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.handleHealth)
	mux.HandleFunc("GET /readyz", rt.handleReady)
	mux.HandleFunc("GET /api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("GET /api/v1/groups", rt.handleGroups)
	mux.HandleFunc("GET /api/v1/info", rt.handleInfo)
	return mux
}

// writeJSON encodes before writing headers so a payload that cannot be encoded
// turns into a 500 instead of a truncated body.
func (r *router) writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		r.deps.Logger.Error("encode response failed", "status", status, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encode response failed"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		r.deps.Logger.Debug("write response failed", "error", err)
	}
}
