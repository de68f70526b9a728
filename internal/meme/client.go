package meme

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrUnknownAction = errors.New("unknown meme action")

const DefaultBaseURL = "https://api.lolimi.cn/API"

// DefaultEndpoints maps an action to its path under the base URL.
var DefaultEndpoints = map[string]string{
	"咬": "face_suck/api.php",
	"捣": "face_pound/api.php",
	"玩": "face_play/api.php",
	"拍": "face_pat/api.php",
	"丢": "diu/api.php",
	"撕": "si/api.php",
	"爬": "pa/api.php",
}

// StatusError is returned when the meme API answers with a non-200 status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("meme api returned status %d", e.Code)
}

type Image struct {
	Action      string
	ContentType string
	Data        []byte
}

type Config struct {
	BaseURL   string
	Endpoints map[string]string
	Timeout   time.Duration
	MaxBytes  int64
}

type Client struct {
	baseURL    string
	endpoints  map[string]string
	actions    []string
	maxBytes   int64
	httpClient *http.Client
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	endpoints := cfg.Endpoints
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 8 << 20
	}
	actions := make([]string, 0, len(endpoints))
	for action := range endpoints {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return &Client{
		baseURL:    baseURL,
		endpoints:  endpoints,
		actions:    actions,
		maxBytes:   cfg.MaxBytes,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Actions lists the configured actions in a stable order.
func (c *Client) Actions() []string {
	out := make([]string, len(c.actions))
	copy(out, c.actions)
	return out
}

func (c *Client) endpoint(action string) (string, error) {
	path, ok := c.endpoints[action]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/"), nil
}

// Fetch downloads the meme image for action rendered with the target's avatar.
func (c *Client) Fetch(ctx context.Context, action string, targetID int64) (Image, error) {
	endpoint, err := c.endpoint(action)
	if err != nil {
		return Image{}, err
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return Image{}, fmt.Errorf("parse meme endpoint: %w", err)
	}
	query := parsed.Query()
	query.Set("QQ", strconv.FormatInt(targetID, 10))
	parsed.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Image{}, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("request meme image: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return Image{}, &StatusError{Code: res.StatusCode}
	}
	data, err := readAllLimited(res.Body, c.maxBytes)
	if err != nil {
		return Image{}, err
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("meme api returned an empty body")
	}
	return Image{
		Action:      action,
		ContentType: res.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readAllLimited(body io.Reader, maxBytes int64) ([]byte, error) {
	limited := &io.LimitedReader{R: body, N: maxBytes + 1}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read meme image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("meme image too large")
	}
	return data, nil
}
