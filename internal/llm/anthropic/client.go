package anthropic

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

const apiVersion = "2023-06-01"

var errNoText = errors.New("anthropic response has no text block")

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
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "claude-3-5-haiku-latest"
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
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/messages",
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (r messagesResponse) text() (string, bool) {
	for _, block := range r.Content {
		if block.Type == "text" {
			return block.Text, true
		}
	}
	return "", false
}

func (c *Client) Reply(ctx context.Context, input llm.MessageInput) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("%w: missing anthropic api key", llm.ErrUnavailable)
	}
	prompt := strings.TrimSpace(input.Text)
	if prompt == "" {
		return "", nil
	}

	var response messagesResponse
	err := c.post(ctx, messagesRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      llm.JoinSystemPrompt(c.cfg.SystemPrompt, input.SystemPrompt),
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
	}, &response)
	if err != nil {
		return "", err
	}
	text, ok := response.text()
	if !ok {
		return "", errNoText
	}
	return llm.CleanReply(text), nil
}

func (c *Client) post(ctx context.Context, request messagesRequest, out *messagesResponse) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal anthropic request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")

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
		c.logger.Warn("anthropic reply failed", "status", res.StatusCode, "model", c.cfg.Model, "body", strings.TrimSpace(string(payload)))
		return fmt.Errorf("anthropic reply failed with status %d", res.StatusCode)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode anthropic response: %w", err)
	}
	return nil
}
