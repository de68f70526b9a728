package app

import (
	"log/slog"
	"net/http"

	"github.com/dwizi/poke-monitor/internal/config"
	"github.com/dwizi/poke-monitor/internal/connectors"
	"github.com/dwizi/poke-monitor/internal/dispatch"
	"github.com/dwizi/poke-monitor/internal/heartbeat"
	"github.com/dwizi/poke-monitor/internal/janitor"
	"github.com/dwizi/poke-monitor/internal/poke"
	"github.com/dwizi/poke-monitor/internal/watcher"
)

type Runtime struct {
	cfg              config.Config
	logger           *slog.Logger
	engine           *dispatch.Engine
	handler          *poke.Handler
	httpServer       *http.Server
	watcher          *watcher.Service
	janitor          *janitor.Service
	connectors       []connectors.Connector
	heartbeat        *heartbeat.Registry
	heartbeatMonitor *heartbeat.Monitor
}

type heartbeatAware interface {
	SetHeartbeatReporter(reporter heartbeat.Reporter)
}
