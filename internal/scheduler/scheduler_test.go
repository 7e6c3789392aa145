package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

type memSessions struct {
	mu      sync.Mutex
	items   map[int64]models.SearchSession
	ttls    map[int64]time.Duration
	deletes []int64
	listErr error

	onDelete func(userID int64)
}

func newMemSessions() *memSessions {
	return &memSessions{items: map[int64]models.SearchSession{}, ttls: map[int64]time.Duration{}}
}

func (m *memSessions) Save(_ context.Context, s models.SearchSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.UserID] = s
	m.ttls[s.UserID] = ttl
	return nil
}

func (m *memSessions) Delete(_ context.Context, userID int64) error {
	if m.onDelete != nil {
		m.onDelete(userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, userID)
	m.deletes = append(m.deletes, userID)
	return nil
}

func (m *memSessions) List(context.Context) ([]models.SearchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.SearchSession, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, s)
	}
	return out, nil
}

func (m *memSessions) has(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[userID]
	return ok
}

type nopLogger struct{}

func (nopLogger) Info(string, string, string, int64, string) {}
func (nopLogger) Error(error, string, string, string, int64) {}

type fired struct {
	userID int64
	sport  string
}

type recorder struct {
	mu    sync.Mutex
	calls []fired
}

func (r *recorder) fire(_ context.Context, userID int64, sport string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fired{userID, sport})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func armed(s *Scheduler, userID int64) (*task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[userID]
	return t, ok
}

func newTestScheduler(store *memSessions) (*Scheduler, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := New(time.Hour, store, nopLogger{}, WithAfterFunc(clock.AfterFunc), WithClock(clock.Now))
	return s, clock
}

func TestScheduler_ScheduleAndFire(t *testing.T) {
	ctx := context.Background()
	store := newMemSessions()
	s, clock := newTestScheduler(store)
	rec := &recorder{}

	s.Schedule(ctx, 1, "tennis", rec.fire)

	pending, ok := armed(s, 1)
	if !ok || pending.sport != "tennis" {
		t.Fatalf("unexpected pending task %+v %v", pending, ok)
	}
	if clock.timer(0).delay != time.Hour {
		t.Fatalf("expected a one hour delay, got %v", clock.timer(0).delay)
	}
	if !store.has(1) || store.ttls[1] != time.Hour || !store.items[1].Deadline.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("expected the deadline to be persisted")
	}

	clock.timer(0).f()
	if rec.count() != 1 || rec.calls[0] != (fired{1, "tennis"}) {
		t.Fatalf("unexpected calls %+v", rec.calls)
	}
	if _, ok := armed(s, 1); ok {
		t.Fatalf("expected no pending task after firing")
	}
	if store.has(1) {
		t.Fatalf("expected the persisted deadline to be removed")
	}

	clock.timer(0).f()
	if rec.count() != 1 {
		t.Fatalf("expected a timer to fire at most once")
	}
}

func TestScheduler_FireKeepsRearmedDeadline(t *testing.T) {
	ctx := context.Background()
	store := newMemSessions()
	s, clock := newTestScheduler(store)
	rec := &recorder{}

	s.Schedule(ctx, 1, "tennis", rec.fire)

	rearmed := make(chan struct{})
	store.onDelete = func(userID int64) {
		store.onDelete = nil
		go func() {
			s.Schedule(ctx, userID, "padel", rec.fire)
			close(rearmed)
		}()
		select {
		case <-rearmed:
		case <-time.After(50 * time.Millisecond):
		}
	}
	clock.timer(0).f()
	<-rearmed

	if !store.has(1) || store.items[1].Sport != "padel" {
		t.Fatalf("expected the re-armed deadline to stay persisted, got %+v", store.items)
	}
	if p, ok := armed(s, 1); !ok || p.sport != "padel" {
		t.Fatalf("expected padel to be armed, got %+v %v", p, ok)
	}
	if rec.count() != 1 || rec.calls[0].sport != "tennis" {
		t.Fatalf("expected the tennis timer to fire once, got %+v", rec.calls)
	}
}

func TestScheduler_RescheduleSupersedes(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestScheduler(newMemSessions())
	rec := &recorder{}

	s.Schedule(ctx, 1, "tennis", rec.fire)
	s.Schedule(ctx, 1, "padel", rec.fire)

	if !clock.timer(0).stopped {
		t.Fatalf("expected the first timer stopped")
	}
	clock.timer(0).f()
	if rec.count() != 0 {
		t.Fatalf("expected the superseded timer to be ignored")
	}
	clock.timer(1).f()
	if rec.count() != 1 || rec.calls[0].sport != "padel" {
		t.Fatalf("expected the padel timer to fire, got %+v", rec.calls)
	}
}

func TestScheduler_Cancel(t *testing.T) {
	ctx := context.Background()
	store := newMemSessions()
	s, clock := newTestScheduler(store)
	rec := &recorder{}

	s.Schedule(ctx, 1, "tennis", rec.fire)
	s.Schedule(ctx, 2, "tennis", rec.fire)

	if !s.Cancel(ctx, 1) {
		t.Fatalf("expected a pending timer to be cancelled")
	}
	if s.Cancel(ctx, 1) {
		t.Fatalf("expected the second cancel to report nothing pending")
	}
	if !clock.timer(0).stopped || store.has(1) {
		t.Fatalf("expected timer stopped and deadline removed")
	}
	clock.timer(0).f()
	if rec.count() != 0 {
		t.Fatalf("expected a cancelled timer to be ignored")
	}
	if _, ok := armed(s, 2); !ok || !store.has(2) {
		t.Fatalf("expected the other user untouched")
	}
}

func TestScheduler_Restore(t *testing.T) {
	ctx := context.Background()
	store := newMemSessions()
	s, clock := newTestScheduler(store)
	rec := &recorder{}

	store.items[1] = models.SearchSession{UserID: 1, Sport: "tennis", Deadline: clock.now.Add(-time.Minute)}
	store.items[2] = models.SearchSession{UserID: 2, Sport: "golf", Deadline: clock.now.Add(20 * time.Minute)}

	n, err := s.Restore(ctx, rec.fire)
	if err != nil || n != 2 {
		t.Fatalf("expected two restored timers, got %d %v", n, err)
	}
	delays := map[time.Duration]bool{}
	for i := 0; i < 2; i++ {
		delays[clock.timer(i).delay] = true
	}
	if !delays[0] || !delays[20*time.Minute] {
		t.Fatalf("unexpected delays %v", delays)
	}
	if p, ok := armed(s, 2); !ok || p.sport != "golf" {
		t.Fatalf("expected golf to be pending, got %+v %v", p, ok)
	}

	store.listErr = errors.New("redis down")
	if _, err := s.Restore(ctx, rec.fire); err == nil {
		t.Fatalf("expected the list error")
	}
}

func TestScheduler_StopKeepsPersistedDeadlines(t *testing.T) {
	ctx := context.Background()
	store := newMemSessions()
	s, clock := newTestScheduler(store)
	rec := &recorder{}

	s.Schedule(ctx, 1, "tennis", rec.fire)
	s.Stop()

	if !clock.timer(0).stopped {
		t.Fatalf("expected the timer stopped")
	}
	clock.timer(0).f()
	if rec.count() != 0 {
		t.Fatalf("expected no callbacks after Stop")
	}
	if !store.has(1) {
		t.Fatalf("expected the deadline kept for the next start")
	}

	s.Schedule(ctx, 2, "tennis", rec.fire)
	if _, ok := armed(s, 2); ok {
		t.Fatalf("expected Schedule after Stop to be ignored")
	}
}

func TestScheduler_RealTimer(t *testing.T) {
	done := make(chan fired, 1)
	s := New(10*time.Millisecond, newMemSessions(), nopLogger{})
	defer s.Stop()

	s.Schedule(context.Background(), 7, "squash", func(_ context.Context, userID int64, sport string) {
		done <- fired{userID, sport}
	})

	select {
	case got := <-done:
		if got != (fired{7, "squash"}) {
			t.Fatalf("unexpected call %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}
}
