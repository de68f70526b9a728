package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dwizi/poke-monitor/internal/config"
	"github.com/dwizi/poke-monitor/internal/heartbeat"
	"github.com/dwizi/poke-monitor/internal/llm"
	"github.com/dwizi/poke-monitor/internal/llm/anthropic"
	"github.com/dwizi/poke-monitor/internal/llm/openai"
	"github.com/dwizi/poke-monitor/internal/phrases"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewResponderSelectsProvider(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.Config
		enabled bool
		check   func(llm.Responder) bool
	}{
		{"disabled", config.Config{LLMEnabled: false, LLMProvider: "openai"}, false, func(r llm.Responder) bool { _, ok := r.(llm.Disabled); return ok }},
		{"none", config.Config{LLMEnabled: true, LLMProvider: "none"}, false, func(r llm.Responder) bool { _, ok := r.(llm.Disabled); return ok }},
		{"openai", config.Config{LLMEnabled: true, LLMProvider: "openai"}, true, func(r llm.Responder) bool { _, ok := r.(*openai.Client); return ok }},
		{"anthropic", config.Config{LLMEnabled: true, LLMProvider: "anthropic"}, true, func(r llm.Responder) bool { _, ok := r.(*anthropic.Client); return ok }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			responder, enabled := newResponder(tc.cfg, testLogger())
			if enabled != tc.enabled || !tc.check(responder) {
				t.Fatalf("unexpected responder %T enabled=%v", responder, enabled)
			}
		})
	}
}

func TestNewResponderPassesSamplingSettings(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic"} {
		t.Run(provider, func(t *testing.T) {
			var payload map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				_ = json.NewDecoder(req.Body).Decode(&payload)
				_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"别戳"}}],"content":[{"type":"text","text":"别戳"}]}`))
			}))
			defer server.Close()

			responder, _ := newResponder(config.Config{
				LLMEnabled:     true,
				LLMProvider:    provider,
				LLMBaseURL:     server.URL,
				LLMAPIKey:      "k",
				LLMMaxTokens:   64,
				LLMTemperature: 0.9,
			}, testLogger())
			if _, err := responder.Reply(context.Background(), llm.MessageInput{Text: "poked"}); err != nil {
				t.Fatalf("reply: %v", err)
			}
			if payload["temperature"] != 0.9 || payload["max_tokens"] != float64(64) {
				t.Fatalf("expected sampling settings in payload, got %v", payload)
			}
		})
	}
}

type recordingSetter struct {
	sets []phrases.Set
}

func (r *recordingSetter) SetPhrases(set phrases.Set) {
	r.sets = append(r.sets, set)
}

func TestReloadPhrasesKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrases.yaml")
	if err := os.WriteFile(path, []byte("replies:\n  - 新的回复\n"), 0o644); err != nil {
		t.Fatalf("write phrases: %v", err)
	}
	setter := &recordingSetter{}
	reloadPhrases(setter, path, testLogger())
	if len(setter.sets) != 1 || setter.sets[0].Replies[0] != "新的回复" {
		t.Fatalf("unexpected reloaded set: %+v", setter.sets)
	}

	if err := os.WriteFile(path, []byte("replies: []\n"), 0o644); err != nil {
		t.Fatalf("write phrases: %v", err)
	}
	reloadPhrases(setter, path, testLogger())
	if len(setter.sets) != 1 {
		t.Fatalf("failed reload must not replace texts, got %d sets", len(setter.sets))
	}
}

func TestNewBuildsRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrases.yaml")
	if err := os.WriteFile(path, []byte("poke_back: 戳你\n"), 0o644); err != nil {
		t.Fatalf("write phrases: %v", err)
	}
	cfg := config.Config{
		HTTPAddr:            "127.0.0.1:0",
		PhrasesFile:         path,
		JanitorCron:         "@every 1m",
		DispatchConcurrency: 2,
		MemeEnabled:         true,
	}
	runtime, err := New(cfg, "test", testLogger())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if runtime.watcher == nil || runtime.janitor == nil || len(runtime.connectors) != 1 {
		t.Fatalf("expected every component to be built: %+v", runtime)
	}

	cfg.JanitorCron = "not a schedule"
	if _, err := New(cfg, "test", testLogger()); err == nil {
		t.Fatal("expected invalid janitor schedule to fail")
	}
	cfg.JanitorCron = ""
	cfg.PhrasesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg, "test", testLogger()); err == nil {
		t.Fatal("expected missing phrases file to fail")
	}
}

func TestRunMonitoredReportsState(t *testing.T) {
	registry := heartbeat.NewRegistry()
	if err := runMonitored(context.Background(), registry, "worker", 0, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("run monitored: %v", err)
	}
	status, _ := registry.Status("worker", 0)
	if status.State != heartbeat.StateStopped {
		t.Fatalf("expected stopped, got %s", status.State)
	}

	failure := errors.New("boom")
	if err := runMonitored(context.Background(), registry, "worker", 0, func(context.Context) error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("expected failure to propagate, got %v", err)
	}
	status, _ = registry.Status("worker", 0)
	if status.State != heartbeat.StateDegraded || status.Error != "boom" {
		t.Fatalf("expected degraded, got %+v", status)
	}
}
