package poke

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dwizi/poke-monitor/internal/connectors/onebot"
	"github.com/dwizi/poke-monitor/internal/llm"
	"github.com/dwizi/poke-monitor/internal/meme"
	"github.com/dwizi/poke-monitor/internal/phrases"
)

// Messenger is the subset of the host messaging API the handler needs.
type Messenger interface {
	SendText(ctx context.Context, target onebot.Target, text string) error
	SendImage(ctx context.Context, target onebot.Target, image []byte) error
	Poke(ctx context.Context, target onebot.Target, userID int64) error
	DisplayName(ctx context.Context, target onebot.Target, userID int64) (string, error)
}

type Fetcher interface {
	Actions() []string
	Fetch(ctx context.Context, action string, targetID int64) (meme.Image, error)
}

type Config struct {
	Window              time.Duration
	Threshold           int
	Cooldown            time.Duration
	PokeBackProbability float64
	SuperProbability    float64
	SuperPokeTimes      int
	LLMEnabled          bool
	MemeEnabled         bool
	MemeCooldown        time.Duration
	ReplyTimeout        time.Duration
}

func DefaultConfig() Config {
	return Config{
		Window:              120 * time.Second,
		Threshold:           5,
		Cooldown:            180 * time.Second,
		PokeBackProbability: 0.3,
		SuperProbability:    0.1,
		SuperPokeTimes:      10,
		MemeEnabled:         true,
		MemeCooldown:        30 * time.Second,
		ReplyTimeout:        20 * time.Second,
	}
}

type Handler struct {
	cfg       Config
	messenger Messenger
	responder llm.Responder
	fetcher   Fetcher
	logger    *slog.Logger
	phrases   atomic.Pointer[phrases.Set]

	now  func() time.Time
	rand func() float64
	pick func(n int) int

	stateMu   sync.Mutex
	pokes     map[string][]time.Time
	cooldowns map[string]time.Time

	memeMu        sync.Mutex
	lastMemeFetch time.Time
}

func New(cfg Config, messenger Messenger, responder llm.Responder, fetcher Fetcher, logger *slog.Logger) *Handler {
	defaults := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.Threshold < 1 {
		cfg.Threshold = defaults.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaults.Cooldown
	}
	cfg.PokeBackProbability = clampProbability(cfg.PokeBackProbability)
	cfg.SuperProbability = clampProbability(cfg.SuperProbability)
	if cfg.SuperPokeTimes < 1 {
		cfg.SuperPokeTimes = defaults.SuperPokeTimes
	}
	if cfg.MemeCooldown <= 0 {
		cfg.MemeCooldown = defaults.MemeCooldown
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = defaults.ReplyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	handler := &Handler{
		cfg:       cfg,
		messenger: messenger,
		responder: responder,
		fetcher:   fetcher,
		logger:    logger,
		now:       time.Now,
		rand:      rand.Float64,
		pick:      rand.IntN,
		pokes:     map[string][]time.Time{},
		cooldowns: map[string]time.Time{},
	}
	handler.SetPhrases(phrases.Defaults())
	return handler
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func (h *Handler) SetPhrases(set phrases.Set) {
	h.phrases.Store(&set)
}

func (h *Handler) currentPhrases() phrases.Set {
	return *h.phrases.Load()
}

func (h *Handler) HandleEvent(ctx context.Context, event onebot.Event) error {
	if !event.IsPoke() {
		return nil
	}
	if event.SelfID <= 0 || event.UserID <= 0 || event.TargetID <= 0 {
		h.logger.Debug("poke notice missing ids", "self_id", event.SelfID, "user_id", event.UserID, "target_id", event.TargetID)
		return nil
	}
	if h.messenger == nil {
		return nil
	}
	switch {
	case event.TargetID == event.SelfID:
		return h.handleBotPoked(ctx, event)
	case event.UserID != event.SelfID:
		return h.handleOtherPoked(ctx, event)
	default:
		return nil
	}
}

func (h *Handler) handleBotPoked(ctx context.Context, event onebot.Event) error {
	target := event.Target()
	key := target.Key()
	result := h.record(key, h.now())
	set := h.currentPhrases()

	if result.coolingDown {
		h.logger.Debug("poke ignored during cooldown", "chat", key, "user_id", event.UserID, "until", result.until)
		return nil
	}
	if result.cooldownStarted {
		h.logger.Info("poke cooldown started", "chat", key, "count", result.count, "until", result.until)
		return h.messenger.SendText(ctx, target, set.CooldownNotice)
	}

	var errs []error
	reply := h.composeReply(ctx, event, result.count, set)
	if err := h.messenger.SendText(ctx, target, reply); err != nil {
		errs = append(errs, err)
	}
	if err := h.pokeBack(ctx, event, set); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (h *Handler) composeReply(ctx context.Context, event onebot.Event, count int, set phrases.Set) string {
	fallback := set.Reply(count)
	if !h.cfg.LLMEnabled || h.responder == nil {
		return fallback
	}

	replyCtx, cancel := context.WithTimeout(ctx, h.cfg.ReplyTimeout)
	defer cancel()

	target := event.Target()
	name := h.displayName(replyCtx, target, event.UserID)
	reply, err := h.responder.Reply(replyCtx, llm.MessageInput{
		Connector:    "onebot",
		ContextID:    target.Key(),
		DisplayName:  name,
		FromUserID:   strconv.FormatInt(event.UserID, 10),
		Text:         set.Prompt(name, count, h.cfg.Window),
		SystemPrompt: set.SystemPrompt,
		IsDM:         !target.IsGroup(),
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			h.logger.Debug("llm unavailable, using canned reply", "error", err)
		} else {
			h.logger.Warn("llm reply failed, using canned reply", "chat", target.Key(), "error", err)
		}
		return fallback
	}
	if strings.TrimSpace(reply) == "" {
		return fallback
	}
	return reply
}

func (h *Handler) displayName(ctx context.Context, target onebot.Target, userID int64) string {
	name, err := h.messenger.DisplayName(ctx, target, userID)
	if err != nil {
		h.logger.Debug("resolve display name failed", "user_id", userID, "error", err)
	}
	if strings.TrimSpace(name) == "" {
		return strconv.FormatInt(userID, 10)
	}
	return name
}

func (h *Handler) pokeBack(ctx context.Context, event onebot.Event, set phrases.Set) error {
	if h.rand() >= h.cfg.PokeBackProbability {
		return nil
	}
	times := 1
	line := set.PokeBack
	if h.rand() < h.cfg.SuperProbability {
		times = h.cfg.SuperPokeTimes
		line = set.SuperPokeBack
	}

	target := event.Target()
	err := h.messenger.SendText(ctx, target, line)
	failed := 0
	for index := 0; index < times; index++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if pokeErr := h.messenger.Poke(ctx, target, event.UserID); pokeErr != nil {
			failed++
			h.logger.Warn("send poke failed", "chat", target.Key(), "user_id", event.UserID, "attempt", index+1, "error", pokeErr)
		}
	}
	h.logger.Info("poked back", "chat", target.Key(), "user_id", event.UserID, "times", times, "failed", failed)
	return err
}

func (h *Handler) handleOtherPoked(ctx context.Context, event onebot.Event) error {
	if !h.cfg.MemeEnabled || h.fetcher == nil {
		return nil
	}
	actions := h.fetcher.Actions()
	if len(actions) == 0 {
		return nil
	}
	if !h.allowMeme(h.now()) {
		h.logger.Debug("meme skipped during cooldown", "user_id", event.UserID, "target_id", event.TargetID)
		return nil
	}

	action := actions[h.pick(len(actions))]
	target := event.Target()
	image, err := h.fetcher.Fetch(ctx, action, event.TargetID)
	if err != nil {
		set := h.currentPhrases()
		text := set.MemeErrorText(err)
		var statusErr *meme.StatusError
		if errors.As(err, &statusErr) {
			text = set.MemeStatusText(statusErr.Code)
		}
		h.logger.Warn("meme fetch failed", "action", action, "target_id", event.TargetID, "error", err)
		return h.messenger.SendText(ctx, target, text)
	}
	h.logger.Info("meme sent", "chat", target.Key(), "action", action, "target_id", event.TargetID, "bytes", len(image.Data))
	return h.messenger.SendImage(ctx, target, image.Data)
}
