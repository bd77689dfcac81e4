// Package app assembles the bot: config, logging, storage, transport,
// broadcast, scheduler, housekeeping, and the command layer, with one
// Start/Stop lifecycle around all of them.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"communibot/internal/ai"
	"communibot/internal/announce"
	"communibot/internal/bot"
	"communibot/internal/broadcast"
	"communibot/internal/config"
	"communibot/internal/scheduler"
	"communibot/internal/storage"
	"communibot/internal/tasks"
	"communibot/internal/transport"
	"communibot/internal/transport/telegram"
	"communibot/pkg/logx"
)

const defaultStoragePath = "./communibot.db"

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	root logx.Logger
	log  logx.Logger

	store      *storage.Store
	adapter    *telegram.Adapter
	dispatcher *broadcast.Dispatcher
	announcer  *announce.Service
	sched      *scheduler.Service
	botSvc     *bot.Service
	keeper     *tasks.Service // nil when housekeeping is disabled

	sup     *supervisor
	updates chan transport.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, root := logx.New(loggingConfig(cfg.Logging))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))
	// Config.Validate runs inside Parse; the hook covers what it cannot
	// see, like the cron grammar that lives in the tasks package.
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		if err := tasks.ValidateSpec(c.Housekeeping.PruneSpec); err != nil {
			return fmt.Errorf("housekeeping.prune_spec: %w", err)
		}
		return nil
	})

	a := &App{
		cfgm:    cfgm,
		logs:    logs,
		root:    root,
		log:     root.With(logx.String("comp", "app")),
		updates: make(chan transport.Update, 256),
	}
	if err := a.build(cfg); err != nil {
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

// build constructs every component from a validated config. Durations
// re-parse here without error handling beyond Validate's guarantee.
func (a *App) build(cfg *config.Config) error {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		path = defaultStoragePath
	}
	store, err := storage.Open(storage.Config{Path: path, BusyTimeout: busy},
		a.root.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	fail := func(err error) error {
		_ = store.Close()
		return err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return fail(err)
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, a.root.With(logx.String("comp", "telegram")))
	if err != nil {
		return fail(fmt.Errorf("telegram adapter: %w", err))
	}
	a.adapter = adapter

	bcCfg, err := broadcastConfig(cfg.Broadcast)
	if err != nil {
		return fail(err)
	}
	a.dispatcher = broadcast.New(bcCfg, a.root.With(logx.String("comp", "broadcast")))
	a.announcer = announce.New(a.dispatcher, store, adapter, store,
		a.root.With(logx.String("comp", "announce")))

	tick, err := config.ParseDurationField("scheduler.tick_interval", cfg.Scheduler.TickInterval)
	if err != nil {
		return fail(err)
	}
	grace, err := config.ParseDurationField("scheduler.shutdown_grace", cfg.Scheduler.ShutdownGrace)
	if err != nil {
		return fail(err)
	}
	sched, err := scheduler.New(scheduler.Config{
		TickInterval:  tick,
		Timezone:      cfg.Scheduler.Timezone,
		ShutdownGrace: grace,
	}, store, a.announcer, a.root.With(logx.String("comp", "scheduler")))
	if err != nil {
		return fail(fmt.Errorf("scheduler: %w", err))
	}
	a.sched = sched

	var responder bot.Responder
	aiTimeout, err := config.ParseDurationField("ai.timeout", cfg.AI.Timeout)
	if err != nil {
		return fail(err)
	}
	if cfg.AI.Enabled {
		client, err := ai.New(ai.Config{
			APIKey:       cfg.AI.APIKey,
			BaseURL:      cfg.AI.BaseURL,
			Model:        cfg.AI.Model,
			SystemPrompt: cfg.AI.SystemPrompt,
			MaxTokens:    cfg.AI.MaxTokens,
			Timeout:      aiTimeout,
		})
		if err != nil {
			return fail(fmt.Errorf("ai client: %w", err))
		}
		responder = client
	}

	a.botSvc = bot.New(bot.Config{AITimeout: aiTimeout}, store, a.announcer, responder, adapter,
		a.root.With(logx.String("comp", "bot")))

	if cfg.Housekeeping.Enabled {
		retention, err := config.ParseDurationField("housekeeping.audit_retention", cfg.Housekeeping.AuditRetention)
		if err != nil {
			return fail(err)
		}
		keeper, err := tasks.New(tasks.Config{
			PruneSpec:      cfg.Housekeeping.PruneSpec,
			AuditRetention: retention,
			Timezone:       cfg.Scheduler.Timezone,
		}, store, a.root.With(logx.String("comp", "housekeeping")))
		if err != nil {
			return fail(fmt.Errorf("housekeeping: %w", err))
		}
		a.keeper = keeper
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = newSupervisor(ctx, a.log)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("start adapter: %w", err)
	}
	a.sched.Start(a.sup.Context())
	if a.keeper != nil {
		if err := a.keeper.Start(a.sup.Context()); err != nil {
			a.sup.Cancel()
			return fmt.Errorf("start housekeeping: %w", err)
		}
	}
	a.botSvc.Run(a.sup.Context(), a.updates)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started")
	return nil
}

// Done is closed when the run context ends, either through Stop or a
// fatal component error.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup != nil {
		a.log.Info("stopping")
		a.sup.Cancel()

		// Adapter first so no new updates arrive, then the producers of
		// outbound traffic, then the supervised loops.
		a.step(ctx, "adapter", 3*time.Second, a.adapter.Stop)
		a.step(ctx, "scheduler", 15*time.Second, func(c context.Context) error {
			a.sched.Stop(c)
			return nil
		})
		if a.keeper != nil {
			a.step(ctx, "housekeeping", 2*time.Second, a.keeper.Stop)
		}
		a.step(ctx, "bot", 5*time.Second, func(c context.Context) error {
			done := make(chan struct{})
			go func() {
				a.botSvc.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-c.Done():
				return c.Err()
			}
		})
		a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close", logx.Err(err))
	}
	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown action with its own upper bound so a stuck
// component cannot stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step failed", logx.String("step", name), logx.Err(err))
		}
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached",
			logx.String("step", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}

// reloadLoop applies hot-reloadable sections of the config. Sections
// that cannot change at runtime (telegram token, storage path, scheduler
// timezone) take effect on the next restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		var cfg *config.Config
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub:
			if !ok {
				return
			}
			cfg = c
		}
		// Coalesce bursts; only the newest snapshot matters.
		for {
			select {
			case c, ok := <-sub:
				if !ok {
					return
				}
				cfg = c
				continue
			default:
			}
			break
		}

		changed, attrs := config.SummarizeChange(last, cfg)
		last = cfg
		if len(changed) == 0 {
			a.log.Debug("config reload without effective changes")
			continue
		}

		a.logs.Apply(loggingConfig(cfg.Logging))
		if bcCfg, err := broadcastConfig(cfg.Broadcast); err == nil {
			a.dispatcher.Apply(bcCfg)
		} else {
			a.log.Warn("broadcast config not applied", logx.Err(err))
		}

		a.log.Info("config applied",
			append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)...)
	}
}

func loggingConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

func broadcastConfig(c config.BroadcastConfig) (broadcast.Config, error) {
	sendTimeout, err := config.ParseDurationField("broadcast.send_timeout", c.SendTimeout)
	if err != nil {
		return broadcast.Config{}, err
	}
	grace, err := config.ParseDurationField("broadcast.shutdown_grace", c.ShutdownGrace)
	if err != nil {
		return broadcast.Config{}, err
	}
	return broadcast.Config{
		Workers:       c.Workers,
		SendTimeout:   sendTimeout,
		RatePerSec:    c.RatePerSec,
		ShutdownGrace: grace,
	}, nil
}
