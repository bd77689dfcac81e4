// Package tasks runs periodic maintenance jobs on a cron schedule,
// currently just the broadcast-audit prune.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"communibot/pkg/logx"
)

// Store is the persistence slice housekeeping needs.
type Store interface {
	PruneBroadcastAudit(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	// PruneSpec is a standard cron expression; default "0 3 * * *".
	PruneSpec string
	// AuditRetention is how far back audit rows are kept; default 720h.
	AuditRetention time.Duration
	// Timezone is the IANA zone the cron spec is evaluated in; default UTC.
	Timezone string
}

type Service struct {
	cfg    Config
	store  Store
	log    logx.Logger
	parser cron.Parser

	mu        sync.Mutex
	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc
}

func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// ValidateSpec checks a cron expression without building a service.
// Empty input is fine; it means "use the default".
func ValidateSpec(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	_, err := newParser().Parse(spec)
	return err
}

// New validates the cron spec and timezone up front so a bad config
// fails at startup rather than at 03:00.
func New(cfg Config, store Store, log logx.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.PruneSpec) == "" {
		cfg.PruneSpec = "0 3 * * *"
	}
	if cfg.AuditRetention <= 0 {
		cfg.AuditRetention = 30 * 24 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	parser := newParser()
	if _, err := parser.Parse(cfg.PruneSpec); err != nil {
		return nil, fmt.Errorf("prune spec %q: %w", cfg.PruneSpec, err)
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("timezone %q: %w", tz, err)
		}
	}
	return &Service{cfg: cfg, store: store, log: log, parser: parser}, nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	loc := time.UTC
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		loc, _ = time.LoadLocation(tz)
	}

	s.runCtx, s.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	if _, err := s.c.AddFunc(s.cfg.PruneSpec, s.pruneOnce); err != nil {
		s.runCancel()
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("housekeeping started",
		logx.String("prune_spec", s.cfg.PruneSpec),
		logx.Duration("audit_retention", s.cfg.AuditRetention),
		logx.String("tz", loc.String()),
	)
	return nil
}

// Stop halts the cron loop and waits for a running job, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}
	cancel()
	return nil
}

func (s *Service) pruneOnce() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.AuditRetention)
	removed, err := s.store.PruneBroadcastAudit(ctx, cutoff)
	if err != nil {
		s.log.Warn("audit prune failed", logx.Err(err))
		return
	}
	s.log.Info("audit pruned",
		logx.Int64("removed", removed),
		logx.Time("cutoff", cutoff),
	)
}
