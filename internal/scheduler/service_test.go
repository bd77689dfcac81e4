package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"communibot/internal/broadcast"
	"communibot/internal/schedule"
	"communibot/pkg/logx"
)

// fakeStore keeps schedules in memory and applies RecordFired like the
// real store, so a fired schedule stops being due.
type fakeStore struct {
	mu        sync.Mutex
	schedules []schedule.Schedule
	listErr   error
	fired     map[int64][]time.Time
}

func (f *fakeStore) ListEnabledSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]schedule.Schedule, len(f.schedules))
	copy(out, f.schedules)
	return out, nil
}

func (f *fakeStore) RecordFired(ctx context.Context, id int64, firedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fired == nil {
		f.fired = map[int64][]time.Time{}
	}
	f.fired[id] = append(f.fired[id], firedAt)
	for i := range f.schedules {
		if f.schedules[i].ID == id {
			t := firedAt
			f.schedules[i].LastFiredAt = &t
		}
	}
	return nil
}

func (f *fakeStore) firedCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fired[id])
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, kind, text string) (broadcast.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return broadcast.Report{}, f.err
	}
	f.calls = append(f.calls, kind+":"+text)
	return broadcast.Report{Total: 1, Delivered: 1}, nil
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func alwaysDue(id int64) schedule.Schedule {
	// Midnight trigger: any wall-clock time has crossed it.
	return schedule.Schedule{ID: id, Cadence: schedule.CadenceDaily, Content: "ping", Enabled: true}
}

func newTestService(t *testing.T, st *fakeStore, bc *fakeBroadcaster) *Service {
	t.Helper()
	svc, err := New(Config{
		TickInterval:  10 * time.Millisecond,
		Timezone:      "UTC",
		ShutdownGrace: time.Second,
	}, st, bc, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestLoopFiresOncePerPeriod(t *testing.T) {
	t.Parallel()
	st := &fakeStore{schedules: []schedule.Schedule{alwaysDue(1)}}
	bc := &fakeBroadcaster{}
	svc := newTestService(t, st, bc)

	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	if !waitFor(t, time.Second, func() bool { return st.firedCount(1) >= 1 }) {
		t.Fatal("schedule never fired")
	}
	// Several more ticks pass; the recorded fire keeps it quiet for the
	// rest of the day.
	time.Sleep(50 * time.Millisecond)
	if n := st.firedCount(1); n != 1 {
		t.Fatalf("fired %d times, want exactly 1", n)
	}
	if n := bc.count(); n != 1 {
		t.Fatalf("broadcasts = %d, want 1", n)
	}
}

func TestLoopRetriesAfterBroadcastFailure(t *testing.T) {
	t.Parallel()
	st := &fakeStore{schedules: []schedule.Schedule{alwaysDue(1)}}
	bc := &fakeBroadcaster{err: errors.New("roster fetch: db offline")}
	svc := newTestService(t, st, bc)

	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	// Failing dispatches must not mark the schedule fired.
	time.Sleep(50 * time.Millisecond)
	if n := st.firedCount(1); n != 0 {
		t.Fatalf("fired %d times despite failures, want 0", n)
	}

	// Once the roster recovers the schedule fires on the next tick.
	bc.mu.Lock()
	bc.err = nil
	bc.mu.Unlock()
	if !waitFor(t, time.Second, func() bool { return st.firedCount(1) == 1 }) {
		t.Fatal("schedule did not fire after recovery")
	}
}

func TestLoopSkipsTickOnStoreError(t *testing.T) {
	t.Parallel()
	st := &fakeStore{listErr: errors.New("db locked")}
	bc := &fakeBroadcaster{}
	svc := newTestService(t, st, bc)

	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	time.Sleep(40 * time.Millisecond)
	if n := bc.count(); n != 0 {
		t.Fatalf("broadcasts = %d, want 0 while store is failing", n)
	}

	// Loop keeps ticking; once the store recovers it picks the work up.
	st.mu.Lock()
	st.listErr = nil
	st.schedules = []schedule.Schedule{alwaysDue(2)}
	st.mu.Unlock()
	if !waitFor(t, time.Second, func() bool { return st.firedCount(2) == 1 }) {
		t.Fatal("schedule did not fire after store recovery")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()
	st := &fakeStore{}
	svc := newTestService(t, st, &fakeBroadcaster{})

	svc.Start(context.Background())
	svc.Stop(context.Background())
	svc.Stop(context.Background())

	// Start/Stop cycle again to make sure state fully reset.
	svc.Start(context.Background())
	svc.Stop(context.Background())
}

func TestNewDefaultsToUTC(t *testing.T) {
	t.Parallel()
	svc, err := New(Config{}, &fakeStore{}, &fakeBroadcaster{}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if svc.loc != time.UTC {
		t.Fatalf("loc = %v, want UTC", svc.loc)
	}
}

func TestNewRejectsBadTimezone(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Timezone: "Mars/Olympus"}, &fakeStore{}, &fakeBroadcaster{}, logx.Nop())
	if err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}
