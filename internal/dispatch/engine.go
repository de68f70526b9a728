package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/poke-monitor/internal/connectors/onebot"
)

var ErrQueueFull = errors.New("event queue is full")

// Handler receives every dispatched event and decides on its own whether the
// event is relevant.
type Handler interface {
	HandleEvent(ctx context.Context, event onebot.Event) error
}

type HandlerFunc func(ctx context.Context, event onebot.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event onebot.Event) error {
	return f(ctx, event)
}

type Engine struct {
	maxConcurrency int
	events         chan onebot.Event
	handlers       []Handler
	logger         *slog.Logger
	startOnce      sync.Once
}

func New(maxConcurrency int, logger *slog.Logger, handlers ...Handler) *Engine {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		maxConcurrency: maxConcurrency,
		events:         make(chan onebot.Event, maxConcurrency*50),
		handlers:       handlers,
		logger:         logger,
	}
}

// Register appends a handler. It must be called before Start.
func (e *Engine) Register(handler Handler) {
	if handler == nil {
		return
	}
	e.handlers = append(e.handlers, handler)
}

func (e *Engine) Start(ctx context.Context) error {
	var workers sync.WaitGroup
	e.startOnce.Do(func() {
		for index := 0; index < e.maxConcurrency; index++ {
			workers.Add(1)
			go func(workerID int) {
				defer workers.Done()
				e.worker(ctx, workerID)
			}(index + 1)
		}
	})

	<-ctx.Done()
	workers.Wait()
	return nil
}

// Submit queues an event without blocking.
func (e *Engine) Submit(event onebot.Event) (onebot.Event, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	select {
	case e.events <- event:
		e.logger.Debug("event queued", "event_id", event.ID, "post_type", event.PostType, "sub_type", event.SubType)
		return event, nil
	default:
		return onebot.Event{}, ErrQueueFull
	}
}

func (e *Engine) worker(ctx context.Context, workerID int) {
	e.logger.Debug("worker started", "worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("worker stopped", "worker_id", workerID)
			return
		case event := <-e.events:
			e.process(ctx, workerID, event)
		}
	}
}

func (e *Engine) process(ctx context.Context, workerID int, event onebot.Event) {
	for _, handler := range e.handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("event handler failed", "worker_id", workerID, "event_id", event.ID, "post_type", event.PostType, "error", err)
		}
	}
}
