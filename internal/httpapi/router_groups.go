package httpapi

import (
	"net/http"

	"github.com/dwizi/poke-monitor/internal/poke"
)

func (r *router) handleGroups(w http.ResponseWriter, req *http.Request) {
	items := []poke.GroupStats{}
	if r.deps.Stats != nil {
		items = r.deps.Stats.Stats(r.deps.Now())
	}
	r.writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}
