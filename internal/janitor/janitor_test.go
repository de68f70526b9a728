package janitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/poke-monitor/internal/heartbeat"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls []time.Time
}

func (c *countingSweeper) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, now)
	return 2
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDefaultsAndParsesSchedule(t *testing.T) {
	service, err := New("", &countingSweeper{}, testLogger())
	if err != nil {
		t.Fatalf("new janitor: %v", err)
	}
	if service.expr != DefaultSchedule {
		t.Fatalf("expected default schedule, got %q", service.expr)
	}
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if next := service.Next(from); !next.Equal(from.Add(time.Minute)) {
		t.Fatalf("expected next run one minute later, got %s", next)
	}

	service, err = New("*/5  * * * *", &countingSweeper{}, testLogger())
	if err != nil {
		t.Fatalf("new janitor with cron expression: %v", err)
	}
	if next := service.Next(from.Add(time.Minute)); !next.Equal(from.Add(5 * time.Minute)) {
		t.Fatalf("unexpected next run %s", next)
	}
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	if _, err := New("every now and then", &countingSweeper{}, testLogger()); err == nil {
		t.Fatal("expected invalid schedule error")
	}
}

func TestRunOnceSweepsAndBeats(t *testing.T) {
	sweeper := &countingSweeper{}
	service, err := New("", sweeper, testLogger())
	if err != nil {
		t.Fatalf("new janitor: %v", err)
	}
	registry := heartbeat.NewRegistry()
	service.SetHeartbeatReporter(registry)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return fixed }

	service.RunOnce()

	if len(sweeper.calls) != 1 || !sweeper.calls[0].Equal(fixed) {
		t.Fatalf("expected one sweep at fixed time, got %v", sweeper.calls)
	}
	snapshot := registry.Snapshot(0)
	if len(snapshot.Components) != 1 || snapshot.Components[0].State != heartbeat.StateHealthy {
		t.Fatalf("expected healthy janitor heartbeat, got %+v", snapshot.Components)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	service, err := New("@every 1h", &countingSweeper{}, testLogger())
	if err != nil {
		t.Fatalf("new janitor: %v", err)
	}
	registry := heartbeat.NewRegistry()
	service.SetHeartbeatReporter(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.Start(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}
