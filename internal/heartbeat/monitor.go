package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	From      State  `json:"from"`
	To        State  `json:"to"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type MonitorConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Logger     *slog.Logger
	// OnTransition runs after the transition is logged.
	OnTransition func(context.Context, Transition)
}

// Monitor polls the registry and logs every component state change, including
// healthy components going stale.
type Monitor struct {
	registry *Registry
	cfg      MonitorConfig
	seen     map[string]State
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{registry: registry, cfg: cfg, seen: map[string]State{}}
}

func (m *Monitor) Start(ctx context.Context) error {
	if m.registry == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.cfg.Logger.Info("heartbeat monitor started", "interval", m.cfg.Interval.String(), "stale_after", m.cfg.StaleAfter.String())
	for {
		m.check(ctx)
		select {
		case <-ctx.Done():
			m.cfg.Logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) check(ctx context.Context) []Transition {
	var transitions []Transition
	for _, item := range m.registry.Snapshot(m.cfg.StaleAfter).Components {
		before, known := m.seen[item.Name]
		m.seen[item.Name] = item.State
		if !known || before == item.State {
			continue
		}
		transition := Transition{
			Component: item.Name,
			From:      before,
			To:        item.State,
			Message:   item.Message,
			Error:     item.Error,
		}
		transitions = append(transitions, transition)
		attrs := []any{"component", transition.Component, "from", transition.From, "to", transition.To}
		if transition.Error != "" {
			attrs = append(attrs, "error", transition.Error)
		}
		if transition.To.Degraded() {
			m.cfg.Logger.Warn("component degraded", attrs...)
		} else {
			m.cfg.Logger.Info("component state changed", attrs...)
		}
		if m.cfg.OnTransition != nil {
			m.cfg.OnTransition(ctx, transition)
		}
	}
	return transitions
}
