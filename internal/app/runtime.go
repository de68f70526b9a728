package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/poke-monitor/internal/config"
	"github.com/dwizi/poke-monitor/internal/connectors"
	"github.com/dwizi/poke-monitor/internal/connectors/onebot"
	"github.com/dwizi/poke-monitor/internal/dispatch"
	"github.com/dwizi/poke-monitor/internal/heartbeat"
	"github.com/dwizi/poke-monitor/internal/httpapi"
	"github.com/dwizi/poke-monitor/internal/janitor"
	"github.com/dwizi/poke-monitor/internal/llm"
	"github.com/dwizi/poke-monitor/internal/llm/anthropic"
	"github.com/dwizi/poke-monitor/internal/llm/openai"
	"github.com/dwizi/poke-monitor/internal/meme"
	"github.com/dwizi/poke-monitor/internal/phrases"
	"github.com/dwizi/poke-monitor/internal/poke"
	"github.com/dwizi/poke-monitor/internal/watcher"
)

func New(cfg config.Config, version string, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := heartbeat.NewRegistry()
	engine := dispatch.New(cfg.DispatchConcurrency, logger.With("component", "dispatch"))

	connector := onebot.New(onebot.Config{
		URL:            cfg.OneBotURL,
		AccessToken:    cfg.OneBotAccessToken,
		ReconnectDelay: config.Seconds(cfg.OneBotReconnectSecs),
		CallTimeout:    config.Seconds(cfg.OneBotCallTimeoutSec),
		ActionRate:     cfg.OneBotActionRate,
		ActionBurst:    cfg.OneBotActionBurst,
		PokeAction:     cfg.OneBotPokeAction,
	}, engine, logger.With("connector", "onebot"))

	responder, llmEnabled := newResponder(cfg, logger)

	var fetcher poke.Fetcher
	if cfg.MemeEnabled {
		fetcher = meme.New(meme.Config{
			BaseURL:  cfg.MemeBaseURL,
			Timeout:  config.Seconds(cfg.MemeTimeoutSeconds),
			MaxBytes: int64(cfg.MemeMaxBytes),
		})
	}

	handler := poke.New(poke.Config{
		Window:              config.Seconds(cfg.PokeWindowSeconds),
		Threshold:           cfg.PokeThreshold,
		Cooldown:            config.Seconds(cfg.PokeCooldownSeconds),
		PokeBackProbability: cfg.PokeBackProbability,
		SuperProbability:    cfg.SuperPokeProbability,
		SuperPokeTimes:      cfg.SuperPokeTimes,
		LLMEnabled:          llmEnabled,
		MemeEnabled:         cfg.MemeEnabled,
		MemeCooldown:        config.Seconds(cfg.MemeCooldownSeconds),
		ReplyTimeout:        config.Seconds(cfg.ReplyTimeoutSeconds),
	}, connector, responder, fetcher, logger.With("component", "poke"))
	engine.Register(handler)

	var watchService *watcher.Service
	if path := strings.TrimSpace(cfg.PhrasesFile); path != "" {
		set, err := phrases.Load(path)
		if err != nil {
			return nil, err
		}
		handler.SetPhrases(set)
		watchService, err = watcher.New(path, logger.With("component", "watcher"), func(ctx context.Context, changed string) {
			reloadPhrases(handler, changed, logger)
		})
		if err != nil {
			return nil, err
		}
	}

	janitorService, err := janitor.New(cfg.JanitorCron, handler, logger.With("component", "janitor"))
	if err != nil {
		return nil, err
	}

	staleAfter := config.Seconds(cfg.StaleSecs)
	router := httpapi.NewRouter(httpapi.Dependencies{
		Config:              cfg.Redacted(),
		Version:             version,
		Connector:           connector,
		Stats:               handler,
		Logger:              logger.With("component", "api"),
		Heartbeat:           registry,
		HeartbeatStaleAfter: staleAfter,
	})

	runtime := &Runtime{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		handler: handler,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		watcher:    watchService,
		janitor:    janitorService,
		connectors: []connectors.Connector{connector},
		heartbeat:  registry,
		heartbeatMonitor: heartbeat.NewMonitor(registry, heartbeat.MonitorConfig{
			Interval:   config.Seconds(cfg.HeartbeatSecs),
			StaleAfter: staleAfter,
			Logger:     logger.With("component", "heartbeat"),
		}),
	}
	for _, component := range []any{connector, janitorService} {
		if aware, ok := component.(heartbeatAware); ok {
			aware.SetHeartbeatReporter(registry)
		}
	}
	return runtime, nil
}

// newResponder picks the LLM provider. The bool reports whether replies
// should be generated at all.
func newResponder(cfg config.Config, logger *slog.Logger) (llm.Responder, bool) {
	if !cfg.LLMEnabled {
		return llm.Disabled{}, false
	}
	timeout := config.Seconds(cfg.LLMTimeoutSeconds)
	switch cfg.LLMProvider {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:      cfg.LLMAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			Timeout:     timeout,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		}, logger.With("component", "llm-anthropic")), true
	case "none":
		return llm.Disabled{}, false
	default:
		return openai.New(openai.Config{
			APIKey:      cfg.LLMAPIKey,
			BaseURL:     cfg.LLMBaseURL,
			Model:       cfg.LLMModel,
			Timeout:     timeout,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		}, logger.With("component", "llm-openai")), true
	}
}

// PhrasesSetter receives reloaded reply texts.
type PhrasesSetter interface {
	SetPhrases(set phrases.Set)
}

// reloadPhrases keeps the current texts when the file fails to parse.
func reloadPhrases(target PhrasesSetter, path string, logger *slog.Logger) {
	set, err := phrases.Load(path)
	if err != nil {
		logger.Error("reload phrases failed, keeping previous texts", "path", path, "error", err)
		return
	}
	target.SetPhrases(set)
	logger.Info("phrases reloaded", "path", path, "replies", len(set.Replies))
}
