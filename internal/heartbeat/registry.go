package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type State string

const (
	StateStarting State = "starting"
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateDisabled State = "disabled"
	StateStopped  State = "stopped"
	StateStale    State = "stale"
)

// Reporter is implemented by the Registry and handed to every long-running
// component.
type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          State  `json:"state"`
	BaseState      State  `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
}

type entry struct {
	state    State
	message  string
	errText  string
	beatAt   time.Time
	changeAt time.Time
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		entries: map[string]entry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Registry) Starting(component, message string) {
	r.update(component, StateStarting, message, nil, false)
}

// Beat marks the component healthy and refreshes its liveness timestamp.
func (r *Registry) Beat(component, message string) {
	r.update(component, StateHealthy, message, nil, true)
}

func (r *Registry) Degrade(component, message string, err error) {
	r.update(component, StateDegraded, message, err, false)
}

func (r *Registry) Disabled(component, message string) {
	r.update(component, StateDisabled, message, nil, false)
}

func (r *Registry) Stopped(component, message string) {
	r.update(component, StateStopped, message, nil, false)
}

func (r *Registry) update(component string, state State, message string, err error, beat bool) {
	name := strings.ToLower(strings.TrimSpace(component))
	if name == "" {
		return
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.entries[name]
	current.state = state
	current.message = strings.TrimSpace(message)
	current.errText = ""
	if err != nil {
		current.errText = strings.TrimSpace(err.Error())
	}
	current.changeAt = now
	if beat || current.beatAt.IsZero() {
		current.beatAt = now
	}
	r.entries[name] = current
}

// Status returns one component's view with staleness applied.
func (r *Registry) Status(component string, staleAfter time.Duration) (ComponentStatus, bool) {
	name := strings.ToLower(strings.TrimSpace(component))
	now := r.now()
	r.mu.RLock()
	current, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return ComponentStatus{}, false
	}
	return current.status(name, now, staleAfter), true
}

func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := r.now()
	r.mu.RLock()
	items := make([]ComponentStatus, 0, len(r.entries))
	for name, current := range r.entries {
		items = append(items, current.status(name, now, staleAfter))
	}
	r.mu.RUnlock()

	sort.Slice(items, func(left, right int) bool {
		return items[left].Name < items[right].Name
	})
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(items),
		Components:      items,
	}
}

func (e entry) status(name string, now time.Time, staleAfter time.Duration) ComponentStatus {
	status := ComponentStatus{
		Name:          name,
		State:         e.state,
		BaseState:     e.state,
		Message:       e.message,
		Error:         e.errText,
		UpdatedAtUnix: e.changeAt.Unix(),
	}
	if !e.beatAt.IsZero() {
		status.LastBeatAtUnix = e.beatAt.Unix()
	}
	// Only components that claim to be alive can go stale.
	if staleAfter > 0 && (e.state == StateHealthy || e.state == StateStarting) && now.Sub(e.beatAt) > staleAfter {
		status.State = StateStale
		status.Stale = true
	}
	return status
}

func (s State) Degraded() bool {
	return s == StateDegraded || s == StateStale
}

func overall(items []ComponentStatus) string {
	if len(items) == 0 {
		return "unknown"
	}
	starting, healthy := false, false
	for _, item := range items {
		switch item.State {
		case StateDegraded, StateStale:
			return string(StateDegraded)
		case StateStarting:
			starting = true
		case StateHealthy:
			healthy = true
		}
	}
	switch {
	case starting:
		return string(StateStarting)
	case healthy:
		return string(StateHealthy)
	default:
		return "idle"
	}
}
