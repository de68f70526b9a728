package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/poke-monitor/internal/llm"
)

var errNoChoices = errors.New("openai response returned no choices")

// Config targets any OpenAI-compatible chat completions endpoint. Temperature
// zero leaves sampling to the provider.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 || cfg.MaxTokens > llm.ReplyTokens {
		cfg.MaxTokens = llm.ReplyTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	User        string        `json:"user,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Reply asks for one short line reacting to a poke. Each call is a single
// exchange with no history.
func (c *Client) Reply(ctx context.Context, input llm.MessageInput) (string, error) {
	if requiresAPIKey(c.cfg.BaseURL) && strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing API key for %s", llm.ErrUnavailable, c.cfg.BaseURL)
	}
	prompt := strings.TrimSpace(input.Text)
	if prompt == "" {
		return "", nil
	}

	request := chatRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		User:        input.ContextID,
	}
	if system := llm.JoinSystemPrompt(c.cfg.SystemPrompt, input.SystemPrompt); system != "" {
		request.Messages = append(request.Messages, chatMessage{Role: "system", Content: system})
	}
	request.Messages = append(request.Messages, chatMessage{Role: "user", Content: prompt})

	var response chatResponse
	if err := c.post(ctx, request, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errNoChoices
	}
	return llm.CleanReply(response.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, request chatRequest, out *chatResponse) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal openai request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey := strings.TrimSpace(c.cfg.APIKey); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, llm.ReplyBodyLimit))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Warn("openai reply failed", "status", res.StatusCode, "model", c.cfg.Model, "body", strings.TrimSpace(string(payload)))
		return fmt.Errorf("openai reply failed with status %d", res.StatusCode)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode openai response: %w", err)
	}
	return nil
}

// Local model servers usually run without keys.
func requiresAPIKey(baseURL string) bool {
	lower := strings.ToLower(baseURL)
	for _, local := range []string{"localhost", "127.0.0.1", "ollama"} {
		if strings.Contains(lower, local) {
			return false
		}
	}
	return true
}
