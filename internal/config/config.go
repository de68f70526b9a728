package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "POKE_MONITOR_"

type Config struct {
	LogLevel      string
	HTTPAddr      string
	EnvFile       string
	PhrasesFile   string
	JanitorCron   string
	HeartbeatSecs int
	StaleSecs     int

	OneBotURL            string
	OneBotAccessToken    string
	OneBotReconnectSecs  int
	OneBotCallTimeoutSec int
	OneBotActionRate     float64
	OneBotActionBurst    int
	OneBotPokeAction     string

	DispatchConcurrency int

	PokeWindowSeconds    int
	PokeThreshold        int
	PokeCooldownSeconds  int
	PokeBackProbability  float64
	SuperPokeProbability float64
	SuperPokeTimes       int
	ReplyTimeoutSeconds  int

	LLMEnabled        bool
	LLMProvider       string
	LLMBaseURL        string
	LLMAPIKey         string
	LLMModel          string
	LLMTimeoutSeconds int
	LLMMaxTokens      int
	LLMTemperature    float64

	MemeEnabled         bool
	MemeBaseURL         string
	MemeCooldownSeconds int
	MemeTimeoutSeconds  int
	MemeMaxBytes        int
}

func FromEnv() Config {
	return Config{
		LogLevel:      stringOrDefault(envPrefix+"LOG_LEVEL", "info"),
		HTTPAddr:      stringOrDefault(envPrefix+"HTTP_ADDR", ":8080"),
		EnvFile:       stringOrDefault(envPrefix+"ENV_FILE", ".env"),
		PhrasesFile:   strings.TrimSpace(os.Getenv(envPrefix + "PHRASES_FILE")),
		JanitorCron:   stringOrDefault(envPrefix+"JANITOR_CRON", "@every 1m"),
		HeartbeatSecs: intOrDefault(envPrefix+"HEARTBEAT_MONITOR_SECONDS", 30),
		StaleSecs:     intOrDefault(envPrefix+"HEARTBEAT_STALE_SECONDS", 180),

		OneBotURL:            strings.TrimSpace(os.Getenv(envPrefix + "ONEBOT_URL")),
		OneBotAccessToken:    strings.TrimSpace(os.Getenv(envPrefix + "ONEBOT_ACCESS_TOKEN")),
		OneBotReconnectSecs:  intOrDefault(envPrefix+"ONEBOT_RECONNECT_SECONDS", 3),
		OneBotCallTimeoutSec: intOrDefault(envPrefix+"ONEBOT_CALL_TIMEOUT_SECONDS", 8),
		OneBotActionRate:     floatOrDefault(envPrefix+"ONEBOT_ACTION_RATE", 5),
		OneBotActionBurst:    intOrDefault(envPrefix+"ONEBOT_ACTION_BURST", 5),
		OneBotPokeAction:     stringOrDefault(envPrefix+"ONEBOT_POKE_ACTION", "send_poke"),

		DispatchConcurrency: intOrDefault(envPrefix+"DISPATCH_CONCURRENCY", 4),

		PokeWindowSeconds:    intOrDefault(envPrefix+"POKE_WINDOW_SECONDS", 120),
		PokeThreshold:        intOrDefault(envPrefix+"POKE_THRESHOLD", 5),
		PokeCooldownSeconds:  intOrDefault(envPrefix+"POKE_COOLDOWN_SECONDS", 180),
		PokeBackProbability:  probabilityOrDefault(envPrefix+"POKE_BACK_PROBABILITY", 0.3),
		SuperPokeProbability: probabilityOrDefault(envPrefix+"SUPER_POKE_PROBABILITY", 0.1),
		SuperPokeTimes:       intOrDefault(envPrefix+"SUPER_POKE_TIMES", 10),
		ReplyTimeoutSeconds:  intOrDefault(envPrefix+"REPLY_TIMEOUT_SECONDS", 20),

		LLMEnabled:        boolOrDefault(envPrefix+"LLM_ENABLED", false),
		LLMProvider:       providerOrDefault(envPrefix+"LLM_PROVIDER", "openai"),
		LLMBaseURL:        strings.TrimSpace(os.Getenv(envPrefix + "LLM_BASE_URL")),
		LLMAPIKey:         strings.TrimSpace(os.Getenv(envPrefix + "LLM_API_KEY")),
		LLMModel:          strings.TrimSpace(os.Getenv(envPrefix + "LLM_MODEL")),
		LLMTimeoutSeconds: intOrDefault(envPrefix+"LLM_TIMEOUT_SECONDS", 30),
		LLMMaxTokens:      intOrDefault(envPrefix+"LLM_MAX_TOKENS", 256),
		LLMTemperature:    floatOrDefault(envPrefix+"LLM_TEMPERATURE", 0),

		MemeEnabled:         boolOrDefault(envPrefix+"MEME_ENABLED", true),
		MemeBaseURL:         stringOrDefault(envPrefix+"MEME_BASE_URL", "https://api.lolimi.cn/API"),
		MemeCooldownSeconds: intOrDefault(envPrefix+"MEME_COOLDOWN_SECONDS", 30),
		MemeTimeoutSeconds:  intOrDefault(envPrefix+"MEME_TIMEOUT_SECONDS", 5),
		MemeMaxBytes:        intOrDefault(envPrefix+"MEME_MAX_BYTES", 8<<20),
	}
}

func Seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	redacted := c
	if redacted.OneBotAccessToken != "" {
		redacted.OneBotAccessToken = "***"
	}
	if redacted.LLMAPIKey != "" {
		redacted.LLMAPIKey = "***"
	}
	return redacted
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func floatOrDefault(name string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func probabilityOrDefault(name string, fallback float64) float64 {
	value := floatOrDefault(name, fallback)
	if value < 0 || value > 1 {
		return fallback
	}
	return value
}

func providerOrDefault(name, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch value {
	case "openai", "anthropic", "none":
		return value
	default:
		return fallback
	}
}
