package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestServiceReportsChangesToWatchedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phrases.yaml")
	if err := os.WriteFile(path, []byte("replies: [a]\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	changes := make(chan string, 8)
	service, err := New(path, slog.New(slog.NewTextHandler(io.Discard, nil)), func(ctx context.Context, changed string) {
		changes <- changed
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	service.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.Start(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}
	if err := os.WriteFile(path, []byte("replies: [b]\n"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	select {
	case changed := <-changes:
		if changed != service.path {
			t.Fatalf("expected %s, got %s", service.path, changed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected change notification")
	}
}

func TestRelevantFiltersByPathAndOp(t *testing.T) {
	service := &Service{path: "/etc/poke/phrases.yaml"}
	cases := []struct {
		event    fsnotify.Event
		expected bool
	}{
		{fsnotify.Event{Name: "/etc/poke/phrases.yaml", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/etc/poke/phrases.yaml", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/etc/poke/phrases.yaml", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/etc/poke/other.yaml", Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		if got := service.relevant(tc.event); got != tc.expected {
			t.Fatalf("relevant(%v) = %v, expected %v", tc.event, got, tc.expected)
		}
	}
}
