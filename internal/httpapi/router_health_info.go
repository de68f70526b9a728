package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady answers 200 only while the OneBot session is up.
func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Connector == nil || !r.deps.Connector.Connected() {
		r.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not-ready",
			"error":  "onebot session not established",
		})
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		r.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter)
	r.writeJSON(w, http.StatusOK, snapshot)
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	cfg := r.deps.Config
	provider := "none"
	if cfg.LLMEnabled {
		provider = cfg.LLMProvider
	}
	r.writeJSON(w, http.StatusOK, map[string]any{
		"name":    "poke-monitor",
		"version": r.deps.Version,
		"poke": map[string]any{
			"window_seconds":         cfg.PokeWindowSeconds,
			"threshold":              cfg.PokeThreshold,
			"cooldown_seconds":       cfg.PokeCooldownSeconds,
			"poke_back_probability":  cfg.PokeBackProbability,
			"super_poke_probability": cfg.SuperPokeProbability,
			"super_poke_times":       cfg.SuperPokeTimes,
		},
		"llm_provider": provider,
		"meme_enabled": cfg.MemeEnabled,
	})
}
