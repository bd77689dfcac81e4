package broadcast

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"communibot/internal/transport"
	"communibot/pkg/logx"
)

type Dispatcher struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{log: log}
	d.Apply(cfg)
	return d
}

// Apply swaps the dispatch limits at runtime. In-flight dispatches keep
// the snapshot they started with.
func (d *Dispatcher) Apply(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	d.mu.Lock()
	d.cfg = cfg
	d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	d.mu.Unlock()
}

// Dispatch sends text to every recipient and blocks until each one has an
// outcome. Cancelling ctx stops new sends immediately; sends already in
// flight get ShutdownGrace to finish before being abandoned as
// failed(cancelled). Recipients that never started are recorded as
// failed(cancelled) without a send attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, recipients []transport.RecipientID, send SendFunc) Report {
	d.mu.Lock()
	cfg := d.cfg
	lim := d.limiter
	d.mu.Unlock()

	rep := Report{Total: len(recipients), StartedAt: time.Now()}
	if len(recipients) == 0 {
		rep.FinishedAt = rep.StartedAt
		return rep
	}

	// hardCtx outlives ctx by ShutdownGrace so in-flight sends can drain.
	hardCtx, hardCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer hardCancel()
	drained := make(chan struct{})
	go func() {
		select {
		case <-drained:
		case <-ctx.Done():
			t := time.NewTimer(cfg.ShutdownGrace)
			defer t.Stop()
			select {
			case <-t.C:
				hardCancel()
			case <-drained:
			}
		}
	}()

	queue := make(chan transport.RecipientID, len(recipients))
	for _, r := range recipients {
		queue <- r
	}
	close(queue)

	workers := cfg.Workers
	if workers > len(recipients) {
		workers = len(recipients)
	}

	var repMu sync.Mutex
	record := func(r transport.RecipientID, err error) {
		repMu.Lock()
		defer repMu.Unlock()
		if err == nil {
			rep.Delivered++
			return
		}
		rep.Failed++
		rep.Failures = append(rep.Failures, Outcome{Recipient: r, Reason: transport.Reason(err)})
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for r := range queue {
				// Stop starting new sends once ctx is gone; the recipient
				// still gets an outcome.
				select {
				case <-ctx.Done():
					record(r, ctx.Err())
					continue
				default:
				}
				if err := lim.Wait(ctx); err != nil {
					record(r, err)
					continue
				}
				sctx, cancel := context.WithTimeout(hardCtx, cfg.SendTimeout)
				err := send(sctx, r, text)
				cancel()
				record(r, err)
			}
		}()
	}
	wg.Wait()
	close(drained)

	rep.FinishedAt = time.Now()

	fields := []logx.Field{
		logx.Int("total", rep.Total),
		logx.Int("delivered", rep.Delivered),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)),
	}
	if rep.Failed > 0 {
		d.log.Warn("broadcast finished with failures", fields...)
	} else {
		d.log.Info("broadcast finished", fields...)
	}
	return rep
}
