package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 200 * time.Millisecond

// Service watches a single file and calls onChange after it settles. The
// parent directory is watched so editors that replace the file by rename are
// still observed.
type Service struct {
	path     string
	logger   *slog.Logger
	onChange func(context.Context, string)
	watcher  *fsnotify.Watcher
	settle   time.Duration
}

func New(path string, logger *slog.Logger, onChange func(context.Context, string)) (*Service, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watched path: %w", err)
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		path:     filepath.Clean(absolute),
		logger:   logger,
		onChange: onChange,
		watcher:  fileWatcher,
		settle:   defaultSettle,
	}, nil
}

func (s *Service) Name() string {
	return "watcher"
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()

	dir := filepath.Dir(s.path)
	if err := s.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch path %s: %w", dir, err)
	}
	s.logger.Info("phrases watcher started", "path", s.path)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("phrases watcher stopped")
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if !s.relevant(event) {
				continue
			}
			s.logger.Debug("phrases file event", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(s.settle)
			} else {
				timer.Reset(s.settle)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			s.logger.Info("phrases file changed", "path", s.path)
			if s.onChange != nil {
				s.onChange(ctx, s.path)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.logger.Error("file watcher error", "error", err)
			}
		}
	}
}

func (s *Service) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != s.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}
