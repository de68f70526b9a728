package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dwizi/poke-monitor/internal/heartbeat"
)

const (
	componentName   = "janitor"
	DefaultSchedule = "@every 1m"
)

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Sweeper drops expired state and reports how many entries it removed.
type Sweeper interface {
	Sweep(now time.Time) int
}

type Service struct {
	sweeper  Sweeper
	schedule cron.Schedule
	expr     string
	logger   *slog.Logger
	reporter heartbeat.Reporter
	now      func() time.Time
}

func New(expr string, sweeper Sweeper, logger *slog.Logger) (*Service, error) {
	expr = strings.Join(strings.Fields(expr), " ")
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse janitor schedule: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sweeper:  sweeper,
		schedule: schedule,
		expr:     expr,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *Service) Name() string {
	return componentName
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) Start(ctx context.Context) error {
	if s.sweeper == nil {
		if s.reporter != nil {
			s.reporter.Disabled(componentName, "sweeper missing")
		}
		<-ctx.Done()
		return nil
	}
	runner := cron.New(cron.WithParser(scheduleParser), cron.WithLogger(cron.DiscardLogger))
	runner.Schedule(s.schedule, cron.FuncJob(s.RunOnce))
	runner.Start()
	if s.reporter != nil {
		s.reporter.Starting(componentName, "started")
		s.reporter.Beat(componentName, "waiting for first sweep")
	}
	s.logger.Info("janitor started", "schedule", s.expr)

	<-ctx.Done()
	<-runner.Stop().Done()
	if s.reporter != nil {
		s.reporter.Stopped(componentName, "stopped")
	}
	s.logger.Info("janitor stopped")
	return nil
}

// RunOnce performs a single sweep.
func (s *Service) RunOnce() {
	removed := s.sweeper.Sweep(s.now())
	if s.reporter != nil {
		s.reporter.Beat(componentName, fmt.Sprintf("swept %d entries", removed))
	}
	if removed > 0 {
		s.logger.Debug("expired poke state swept", "removed", removed)
	}
}

// Next reports when the schedule fires after from.
func (s *Service) Next(from time.Time) time.Time {
	return s.schedule.Next(from)
}
