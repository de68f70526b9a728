package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, name := range []string{
		"LOG_LEVEL", "HTTP_ADDR", "PHRASES_FILE", "JANITOR_CRON",
		"ONEBOT_URL", "ONEBOT_ACCESS_TOKEN", "ONEBOT_ACTION_RATE", "ONEBOT_POKE_ACTION",
		"POKE_WINDOW_SECONDS", "POKE_THRESHOLD", "POKE_COOLDOWN_SECONDS",
		"POKE_BACK_PROBABILITY", "SUPER_POKE_PROBABILITY", "SUPER_POKE_TIMES",
		"LLM_ENABLED", "LLM_PROVIDER", "LLM_API_KEY", "LLM_TEMPERATURE",
		"MEME_ENABLED", "MEME_BASE_URL", "MEME_COOLDOWN_SECONDS",
	} {
		t.Setenv(envPrefix+name, "")
	}

	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.PokeWindowSeconds != 120 || cfg.PokeThreshold != 5 || cfg.PokeCooldownSeconds != 180 {
		t.Fatalf("unexpected poke defaults: %+v", cfg)
	}
	if cfg.PokeBackProbability != 0.3 || cfg.SuperPokeProbability != 0.1 || cfg.SuperPokeTimes != 10 {
		t.Fatalf("unexpected poke back defaults: %+v", cfg)
	}
	if cfg.OneBotActionRate != 5 || cfg.OneBotPokeAction != "send_poke" {
		t.Fatalf("unexpected onebot defaults: %+v", cfg)
	}
	if cfg.LLMTemperature != 0 {
		t.Fatalf("expected provider default temperature, got %v", cfg.LLMTemperature)
	}
	if cfg.LLMEnabled || cfg.LLMProvider != "openai" {
		t.Fatalf("unexpected llm defaults: %+v", cfg)
	}
	if !cfg.MemeEnabled || cfg.MemeCooldownSeconds != 30 || cfg.MemeBaseURL != "https://api.lolimi.cn/API" {
		t.Fatalf("unexpected meme defaults: %+v", cfg)
	}
	if cfg.JanitorCron != "@every 1m" || cfg.PhrasesFile != "" {
		t.Fatalf("unexpected housekeeping defaults: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(envPrefix+"ONEBOT_URL", " ws://127.0.0.1:3001 ")
	t.Setenv(envPrefix+"POKE_THRESHOLD", "8")
	t.Setenv(envPrefix+"POKE_BACK_PROBABILITY", "0.75")
	t.Setenv(envPrefix+"SUPER_POKE_PROBABILITY", "1.5")
	t.Setenv(envPrefix+"LLM_ENABLED", "yes")
	t.Setenv(envPrefix+"LLM_PROVIDER", "Anthropic")
	t.Setenv(envPrefix+"MEME_ENABLED", "off")
	t.Setenv(envPrefix+"POKE_COOLDOWN_SECONDS", "-3")
	t.Setenv(envPrefix+"LLM_TEMPERATURE", "0.7")

	cfg := FromEnv()
	if cfg.OneBotURL != "ws://127.0.0.1:3001" {
		t.Fatalf("expected trimmed url, got %q", cfg.OneBotURL)
	}
	if cfg.PokeThreshold != 8 || cfg.PokeBackProbability != 0.75 {
		t.Fatalf("expected overrides, got %+v", cfg)
	}
	if cfg.SuperPokeProbability != 0.1 {
		t.Fatalf("out of range probability should fall back, got %v", cfg.SuperPokeProbability)
	}
	if !cfg.LLMEnabled || cfg.LLMProvider != "anthropic" || cfg.MemeEnabled {
		t.Fatalf("unexpected toggles: %+v", cfg)
	}
	if cfg.PokeCooldownSeconds != 180 {
		t.Fatalf("negative seconds should fall back, got %d", cfg.PokeCooldownSeconds)
	}
	if cfg.LLMTemperature != 0.7 {
		t.Fatalf("expected llm temperature override, got %v", cfg.LLMTemperature)
	}
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Config{OneBotAccessToken: "token", LLMAPIKey: "key", OneBotURL: "ws://x"}
	redacted := cfg.Redacted()
	if redacted.OneBotAccessToken != "***" || redacted.LLMAPIKey != "***" || redacted.OneBotURL != "ws://x" {
		t.Fatalf("unexpected redaction: %+v", redacted)
	}
	if cfg.LLMAPIKey != "key" {
		t.Fatal("redaction must not modify the source config")
	}
	if Seconds(3) != 3*time.Second {
		t.Fatal("unexpected seconds conversion")
	}
}
