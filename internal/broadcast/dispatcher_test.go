package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"communibot/internal/transport"
	"communibot/pkg/logx"
)

func testConfig() Config {
	return Config{
		Workers:       4,
		SendTimeout:   time.Second,
		RatePerSec:    1000,
		ShutdownGrace: time.Second,
	}
}

func recipients(n int) []transport.RecipientID {
	out := make([]transport.RecipientID, n)
	for i := range out {
		out[i] = transport.RecipientID(i + 1)
	}
	return out
}

func TestDispatchCompleteOutcomes(t *testing.T) {
	t.Parallel()
	d := New(testConfig(), logx.Nop())

	var calls atomic.Int64
	rep := d.Dispatch(context.Background(), "hi", recipients(25), func(ctx context.Context, to transport.RecipientID, text string) error {
		calls.Add(1)
		if to%3 == 0 {
			return &transport.DeliveryError{Reason: transport.FailureNetworkError, Err: errors.New("boom")}
		}
		return nil
	})

	if rep.Total != 25 {
		t.Fatalf("Total = %d, want 25", rep.Total)
	}
	if rep.Delivered+rep.Failed != 25 {
		t.Fatalf("outcomes = %d, want 25", rep.Delivered+rep.Failed)
	}
	if rep.Failed != 8 { // floor(25/3)
		t.Fatalf("Failed = %d, want 8", rep.Failed)
	}
	if rep.Delivered != 17 {
		t.Fatalf("Delivered = %d, want 17", rep.Delivered)
	}
	if calls.Load() != 25 {
		t.Fatalf("send calls = %d, want 25", calls.Load())
	}
}

func TestDispatchBlockedRecipientIsolated(t *testing.T) {
	t.Parallel()
	d := New(testConfig(), logx.Nop())

	rep := d.Dispatch(context.Background(), "hello",
		[]transport.RecipientID{1, 2, 3},
		func(ctx context.Context, to transport.RecipientID, text string) error {
			if to == 2 {
				return &transport.DeliveryError{Reason: transport.FailureBlocked, Err: errors.New("bot was blocked by the user")}
			}
			return nil
		})

	if rep.Delivered != 2 || rep.Failed != 1 {
		t.Fatalf("delivered/failed = %d/%d, want 2/1", rep.Delivered, rep.Failed)
	}
	if len(rep.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(rep.Failures))
	}
	if f := rep.Failures[0]; f.Recipient != 2 || f.Reason != transport.FailureBlocked {
		t.Fatalf("failure = %+v, want recipient 2 blocked", f)
	}
}

func TestDispatchBoundedConcurrency(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Workers = 3
	d := New(cfg, logx.Nop())

	var inflight, peak atomic.Int64
	rep := d.Dispatch(context.Background(), "x", recipients(30), func(ctx context.Context, to transport.RecipientID, text string) error {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inflight.Add(-1)
		return nil
	})

	if rep.Delivered != 30 {
		t.Fatalf("Delivered = %d, want 30", rep.Delivered)
	}
	if p := peak.Load(); p > 3 {
		t.Fatalf("peak in-flight = %d, want <= 3", p)
	}
}

func TestDispatchPerSendTimeout(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.SendTimeout = 20 * time.Millisecond
	d := New(cfg, logx.Nop())

	rep := d.Dispatch(context.Background(), "slow",
		[]transport.RecipientID{1},
		func(ctx context.Context, to transport.RecipientID, text string) error {
			<-ctx.Done()
			return ctx.Err()
		})

	if rep.Failed != 1 || len(rep.Failures) != 1 {
		t.Fatalf("failed = %d, want 1", rep.Failed)
	}
	if r := rep.Failures[0].Reason; r != transport.FailureTimeout {
		t.Fatalf("reason = %s, want timeout", r)
	}
}

func TestDispatchCancelStopsNewSends(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(testConfig(), logx.Nop())
	var calls atomic.Int64
	rep := d.Dispatch(ctx, "never", recipients(10), func(ctx context.Context, to transport.RecipientID, text string) error {
		calls.Add(1)
		return nil
	})

	if calls.Load() != 0 {
		t.Fatalf("send calls after cancel = %d, want 0", calls.Load())
	}
	if rep.Failed != 10 {
		t.Fatalf("Failed = %d, want 10", rep.Failed)
	}
	for _, f := range rep.Failures {
		if f.Reason != transport.FailureCancelled {
			t.Fatalf("reason = %s, want cancelled", f.Reason)
		}
	}
}

func TestDispatchDrainsInflightOnCancel(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Workers = 1
	d := New(cfg, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	var once sync.Once
	go func() {
		// Cancel the dispatch while the first send is in flight; that send
		// is allowed to finish inside the grace window.
		<-started
		cancel()
	}()

	rep := d.Dispatch(ctx, "drain", recipients(3), func(sctx context.Context, to transport.RecipientID, text string) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	if rep.Delivered != 1 {
		t.Fatalf("Delivered = %d, want 1 (the in-flight send)", rep.Delivered)
	}
	if rep.Failed != 2 {
		t.Fatalf("Failed = %d, want 2 (never started)", rep.Failed)
	}
}
