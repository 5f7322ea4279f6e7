// Package maintenance runs periodic housekeeping jobs such as the staging
// sweep and rate-limit pruning.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one housekeeping run. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron patterns. A job never overlaps itself.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a stopped scheduler. Patterns accept an optional
// seconds field and descriptors like "@every 5m".
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("service", "maintenance"))
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronLog := cronLogger{logger: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		parser:  parser,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		entries: map[string]cron.EntryID{},
	}
}

// Register schedules job under name. Registering a name twice replaces the earlier job.
func (s *Scheduler) Register(name, pattern string, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if job == nil {
		return fmt.Errorf("job %s: nil func", name)
	}
	schedule, err := s.parser.Parse(pattern)
	if err != nil {
		return fmt.Errorf("job %s: invalid cron pattern %q: %w", name, pattern, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.entries[name]; ok {
		s.cron.Remove(prev)
	}
	s.entries[name] = s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(name, job) }))
	s.logger.Info("job registered", slog.String("job", name), slog.String("pattern", pattern))
	return nil
}

// RunNow executes the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return fmt.Errorf("job %s not registered", name)
	}
	entry.WrappedJob.Run()
	return nil
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) run(name string, job Job) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job(s.ctx); err != nil {
		s.logger.Error("job failed", slog.String("job", name), slog.Any("error", err))
		return
	}
	s.logger.Debug("job finished", slog.String("job", name), slog.Duration("took", time.Since(start)))
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
