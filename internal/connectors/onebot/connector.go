package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/dwizi/poke-monitor/internal/boterr"
	"github.com/dwizi/poke-monitor/internal/heartbeat"
)

const componentName = "connector:onebot"

// Sink receives decoded events. Submit must not block the read loop.
type Sink interface {
	Submit(event Event) (Event, error)
}

type Config struct {
	URL            string
	AccessToken    string
	ReconnectDelay time.Duration
	CallTimeout    time.Duration
	ActionRate     float64
	ActionBurst    int
	PokeAction     string
}

type Connector struct {
	cfg      Config
	sink     Sink
	logger   *slog.Logger
	reporter heartbeat.Reporter
	limiter  *rate.Limiter
	dialer   *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	waitMu  sync.Mutex
	waiters map[string]chan Response

	selfID atomic.Int64
}

func New(cfg Config, sink Sink, logger *slog.Logger) *Connector {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 8 * time.Second
	}
	if cfg.ActionRate <= 0 {
		cfg.ActionRate = 5
	}
	if cfg.ActionBurst < 1 {
		cfg.ActionBurst = 5
	}
	if strings.TrimSpace(cfg.PokeAction) == "" {
		cfg.PokeAction = "send_poke"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		cfg:     cfg,
		sink:    sink,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.ActionRate), cfg.ActionBurst),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		waiters: map[string]chan Response{},
	}
}

func (c *Connector) Name() string {
	return "onebot"
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}

// Connected reports whether a websocket session is currently established.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SelfID is the bot account id most recently reported by the OneBot implementation.
func (c *Connector) SelfID() int64 {
	return c.selfID.Load()
}

func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(componentName, "starting")
	}
	if c.cfg.URL == "" {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "websocket url missing")
		}
		c.logger.Info("connector disabled, websocket url missing")
		<-ctx.Done()
		return nil
	}
	if c.sink == nil {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "event sink missing")
		}
		c.logger.Info("connector disabled, event sink missing")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("connector started", "url", c.cfg.URL)
	for {
		if ctx.Err() != nil {
			c.stopped()
			return nil
		}
		if err := c.runSession(ctx); err != nil {
			if ctx.Err() != nil {
				c.stopped()
				return nil
			}
			if c.reporter != nil {
				c.reporter.Degrade(componentName, "websocket session error", err)
			}
			c.logger.Error("onebot session ended, reconnecting", "error", err, "delay", c.cfg.ReconnectDelay.String())
			select {
			case <-ctx.Done():
				c.stopped()
				return nil
			case <-time.After(c.cfg.ReconnectDelay):
			}
		}
	}
}

func (c *Connector) stopped() {
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
	c.logger.Info("connector stopped")
}

func (c *Connector) runSession(ctx context.Context) error {
	header := http.Header{}
	if token := strings.TrimSpace(c.cfg.AccessToken); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial onebot websocket: %w", err)
	}
	c.setConn(conn)
	defer c.setConn(nil)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	if c.reporter != nil {
		c.reporter.Beat(componentName, "websocket session established")
	}
	c.logger.Info("onebot session established")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read onebot frame: %w", err)
		}
		c.handleFrame(data)
	}
}

func (c *Connector) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Connector) handleFrame(data []byte) {
	var frame rawFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("decode onebot frame failed", "error", err)
		return
	}
	if echo := frame.echo(); echo != "" && frame.PostType == "" {
		c.dispatchResponse(echo, data)
		return
	}
	if frame.PostType == "" {
		c.logger.Debug("onebot frame without post_type ignored")
		return
	}

	event, err := frame.toEvent(data)
	if err != nil {
		c.logger.Warn("normalize onebot event failed", "error", err, "post_type", frame.PostType)
		return
	}
	if event.SelfID > 0 {
		c.selfID.Store(event.SelfID)
	}
	if event.PostType == PostTypeMetaEvent {
		c.handleMetaEvent(event)
	}

	if _, err := c.sink.Submit(event); err != nil {
		c.logger.Warn("drop onebot event", "error", err, "post_type", event.PostType, "sub_type", event.SubType)
	}
}

func (c *Connector) handleMetaEvent(event Event) {
	switch event.MetaEventType {
	case "lifecycle":
		c.logger.Info("onebot lifecycle event", "sub_type", event.SubType, "self_id", event.SelfID)
	case "heartbeat":
		if c.reporter != nil {
			c.reporter.Beat(componentName, "heartbeat received")
		}
	}
}

func (c *Connector) dispatchResponse(echo string, data []byte) {
	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		c.logger.Warn("decode onebot response failed", "error", err, "echo", echo)
		return
	}

	c.waitMu.Lock()
	waiter := c.waiters[echo]
	c.waitMu.Unlock()
	if waiter == nil {
		c.logger.Debug("onebot response without waiter", "echo", echo)
		return
	}
	select {
	case waiter <- response:
	default:
	}
}

func (c *Connector) write(payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return boterr.ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return boterr.ErrNotConnected
		}
		return fmt.Errorf("write onebot frame: %w", err)
	}
	return nil
}
