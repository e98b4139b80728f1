// Package scheduler runs sync cycles on an interval, on file changes and on demand.
// Cycles run one at a time on the scheduler goroutine; triggers arriving
// during a cycle are coalesced into a single follow-up cycle.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Cycle runs one sync cycle.
type Cycle func(ctx context.Context) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval runs a cycle every d; zero disables periodic cycles.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithWatch runs a cycle after any of paths is created, written, removed or renamed.
func WithWatch(paths ...string) Option {
	return func(s *Scheduler) { s.watch = append(s.watch, paths...) }
}

// WithDebounce sets how long file events settle before a cycle starts.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithRunAtStart runs a cycle as soon as Run starts.
func WithRunAtStart(enabled bool) Option {
	return func(s *Scheduler) { s.runAtStart = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Scheduler triggers sync cycles.
type Scheduler struct {
	cycle      Cycle
	interval   time.Duration
	watch      []string
	debounce   time.Duration
	runAtStart bool
	logger     *zap.Logger
	trigger    chan struct{}
	watched    map[string]bool
	cycles     atomic.Int64
	failures   atomic.Int64
}

// New creates a scheduler running cycle.
func New(cycle Cycle, opts ...Option) *Scheduler {
	s := &Scheduler{
		cycle:    cycle,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger requests a cycle without waiting for it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Cycles returns the number of completed cycles.
func (s *Scheduler) Cycles() int64 { return s.cycles.Load() }

// Failures returns the number of cycles that returned an error.
func (s *Scheduler) Failures() int64 { return s.failures.Load() }

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	if len(s.watch) > 0 {
		watcher, err := s.newWatcher()
		if err != nil {
			return err
		}
		defer func() { _ = watcher.Close() }()
		events, watchErrors = watcher.Events, watcher.Errors
	}
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	debounce := time.NewTimer(s.debounce)
	debounce.Stop()
	defer debounce.Stop()
	var settled <-chan time.Time

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval), zap.Strings("watch", s.watch))
	if s.runAtStart {
		s.run(ctx, "start")
	}
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", zap.Int64("cycles", s.Cycles()))
			return nil
		case <-tick:
			s.run(ctx, "interval")
		case <-s.trigger:
			s.run(ctx, "manual")
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !s.relevant(event) {
				continue
			}
			s.logger.Debug("source changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			debounce.Reset(s.debounce)
			settled = debounce.C
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			s.logger.Warn("watch error", zap.Error(err))
		case <-settled:
			settled = nil
			s.run(ctx, "watch")
		}
	}
}

// newWatcher watches the parent directories so replaced files keep triggering.
func (s *Scheduler) newWatcher() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scheduler: watcher: %w", err)
	}
	s.watched = make(map[string]bool, len(s.watch))
	dirs := map[string]bool{}
	for _, path := range s.watch {
		abs, err := filepath.Abs(path)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("scheduler: watch %s: %w", path, err)
		}
		s.watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("scheduler: watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	return watcher, nil
}

func (s *Scheduler) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	return err == nil && s.watched[abs]
}

func (s *Scheduler) run(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	err := s.cycle(ctx)
	s.cycles.Add(1)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("scheduled sync failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	s.logger.Debug("scheduled sync done", zap.String("reason", reason), zap.Duration("took", time.Since(started)))
}
