package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/poke-monitor/internal/connectors/onebot"
)

func TestSubmitAssignsDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := New(1, logger)

	event, err := engine.Submit(onebot.Event{PostType: onebot.PostTypeNotice})
	if err != nil {
		t.Fatalf("submit returned error: %v", err)
	}
	if event.ID == "" {
		t.Fatal("expected generated event ID")
	}
	if event.ReceivedAt.IsZero() {
		t.Fatal("expected received timestamp")
	}
}

func TestSubmitQueueFull(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := New(1, logger)

	for index := 0; index < 50; index++ {
		if _, err := engine.Submit(onebot.Event{PostType: onebot.PostTypeNotice}); err != nil {
			t.Fatalf("unexpected submit error before queue full: %v", err)
		}
	}

	_, err := engine.Submit(onebot.Event{PostType: onebot.PostTypeNotice})
	if err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestEngineDeliversToEveryHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var (
		mu       sync.Mutex
		received []string
		wg       sync.WaitGroup
	)
	wg.Add(2)
	failing := HandlerFunc(func(ctx context.Context, event onebot.Event) error {
		defer wg.Done()
		mu.Lock()
		received = append(received, "failing")
		mu.Unlock()
		return errors.New("boom")
	})
	recording := HandlerFunc(func(ctx context.Context, event onebot.Event) error {
		defer wg.Done()
		mu.Lock()
		received = append(received, "recording")
		mu.Unlock()
		return nil
	})
	engine := New(1, logger, failing, recording)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = engine.Start(ctx)
		close(done)
	}()

	if _, err := engine.Submit(onebot.Event{PostType: onebot.PostTypeNotice}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("handlers were not invoked")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 || received[0] != "failing" || received[1] != "recording" {
		t.Fatalf("expected both handlers in order, got %v", received)
	}
}

func TestRegisterAddsHandler(t *testing.T) {
	engine := New(1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	delivered := make(chan string, 1)
	engine.Register(nil)
	engine.Register(HandlerFunc(func(ctx context.Context, event onebot.Event) error {
		delivered <- event.SubType
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = engine.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if _, err := engine.Submit(onebot.Event{PostType: onebot.PostTypeNotice, SubType: onebot.SubTypePoke}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case subType := <-delivered:
		if subType != onebot.SubTypePoke {
			t.Fatalf("unexpected event delivered: %s", subType)
		}
	case <-time.After(time.Second):
		t.Fatal("registered handler was not called")
	}
}
