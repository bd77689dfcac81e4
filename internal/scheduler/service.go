package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"communibot/internal/broadcast"
	"communibot/internal/schedule"
	"communibot/pkg/logx"
)

type Config struct {
	// TickInterval is how often the loop re-evaluates schedules.
	TickInterval time.Duration
	// Timezone is the IANA zone schedules are evaluated in, e.g. "Europe/Berlin".
	// Empty means UTC.
	Timezone string
	// ShutdownGrace bounds how long Stop waits for an in-flight tick to drain.
	ShutdownGrace time.Duration
}

// Store is the schedule persistence capability the loop consumes.
type Store interface {
	ListEnabledSchedules(ctx context.Context) ([]schedule.Schedule, error)
	RecordFired(ctx context.Context, id int64, firedAt time.Time) error
}

// Broadcaster delivers one announcement to the whole roster.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind, text string) (broadcast.Report, error)
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	loc *time.Location
	log logx.Logger

	store Store
	bc    Broadcaster

	stopCh chan struct{}
	// stopDone is non-nil while a Stop() is in progress; it is closed when
	// the loop fully exits.
	stopDone  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfg Config, store Store, bc Broadcaster, log logx.Logger) (*Service, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone: %w", err)
		}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, loc: loc, log: log, store: store, bc: bc}, nil
}

func (s *Service) Start(ctx context.Context) {
	// If a Stop() is in progress, wait for it to complete (prevents double loops).
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			// already running
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
			// loop and try again
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	runCtx := s.runCtx
	stopCh := s.stopCh
	tick := s.cfg.TickInterval

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in scheduler loop", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		s.run(runCtx, stopCh, tick)
	}()

	s.log.Info("service started", logx.Duration("tick", tick), logx.String("tz", s.loc.String()))
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	// If a stop is already in progress, just wait for it.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	s.runCancel = nil
	grace := s.cfg.ShutdownGrace
	s.mu.Unlock()

	// Stop starting new work; in-flight dispatch keeps its cancellation
	// semantics (drain within the dispatcher's own grace).
	close(stopCh)
	if cancel != nil {
		cancel()
	}

	go func() {
		s.wg.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	}()

	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		s.log.Warn("stop grace expired; loop finishing in background")
	case <-ctx.Done():
	}
}

// run is the trigger loop: Idle -> Evaluating -> Dispatching -> Idle.
// The first evaluation happens immediately so a restart does not wait a
// full tick.
func (s *Service) run(ctx context.Context, stopCh <-chan struct{}, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	schedules, err := s.store.ListEnabledSchedules(ctx)
	if err != nil {
		// Evaluation is idempotent across ticks; skip this one.
		s.log.Error("listing schedules failed", logx.Err(err))
		return
	}

	due := schedule.Due(time.Now(), s.loc, schedules)
	if len(due) == 0 {
		return
	}
	s.log.Info("schedules due", logx.Int("count", len(due)))

	for _, sc := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.fire(ctx, sc)
	}
}

func (s *Service) fire(ctx context.Context, sc schedule.Schedule) {
	log := s.log.With(logx.Int64("schedule", sc.ID), logx.String("cadence", string(sc.Cadence)))

	rep, err := s.bc.Broadcast(ctx, "scheduled", sc.Content)
	if err != nil {
		// Zero sends attempted; leaving the fired state untouched retries
		// the schedule on the next tick while it is still due.
		log.Warn("broadcast aborted; will retry next tick", logx.Err(err))
		return
	}

	firedAt := time.Now()
	// The fire record must land even when shutdown cancelled ctx mid-drain,
	// otherwise the schedule double-fires after a restart.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.RecordFired(rctx, sc.ID, firedAt); err != nil {
		log.Error("recording fire failed", logx.Err(err))
		return
	}
	log.Info("schedule fired",
		logx.Int("delivered", rep.Delivered),
		logx.Int("failed", rep.Failed),
		logx.Time("fired_at", firedAt))
}
