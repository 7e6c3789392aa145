// Package scheduler runs the single-shot Smart-Match timers, one per user.
package scheduler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
)

// FireFunc is called when a user's wait elapses.
type FireFunc func(ctx context.Context, userID int64, sport string)

// Stopper is the part of *time.Timer the scheduler needs.
type Stopper interface {
	Stop() bool
}

type task struct {
	gen   uint64
	sport string
	timer Stopper
}

type Scheduler struct {
	wait      time.Duration
	store     repository.SessionsRepository
	logger    repository.Logger
	afterFunc func(time.Duration, func()) Stopper
	now       func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// persist orders store writes against task changes; taken before mu.
	persist sync.Mutex

	mu      sync.Mutex
	tasks   map[int64]*task
	gen     uint64
	stopped bool
}

type Option func(*Scheduler)

// WithAfterFunc replaces time.AfterFunc.
func WithAfterFunc(f func(time.Duration, func()) Stopper) Option {
	return func(s *Scheduler) { s.afterFunc = f }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(wait time.Duration, store repository.SessionsRepository, logger repository.Logger, opts ...Option) *Scheduler {
	base, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		wait:   wait,
		store:  store,
		logger: logger,
		afterFunc: func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		},
		now:    time.Now,
		base:   base,
		cancel: cancel,
		tasks:  make(map[int64]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Wait() time.Duration {
	return s.wait
}

// Schedule arms a timer for userID, superseding any earlier one.
func (s *Scheduler) Schedule(ctx context.Context, userID int64, sport string, fire func(ctx context.Context, userID int64, sport string)) {
	deadline := s.now().Add(s.wait)
	s.persist.Lock()
	defer s.persist.Unlock()
	if !s.arm(userID, sport, deadline, fire) {
		return
	}
	session := models.SearchSession{UserID: userID, Sport: sport, Deadline: deadline}
	if err := s.store.Save(ctx, session, s.wait); err != nil {
		s.logger.Error(err, "schedule_smart_match", "session", strconv.FormatInt(userID, 10), userID)
	}
	s.logger.Info("schedule_smart_match", "session", strconv.FormatInt(userID, 10), userID, sport)
}

// Cancel stops the pending timer of userID and reports whether one existed.
func (s *Scheduler) Cancel(ctx context.Context, userID int64) bool {
	s.persist.Lock()
	defer s.persist.Unlock()
	s.mu.Lock()
	t, ok := s.tasks[userID]
	delete(s.tasks, userID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.timer.Stop()
	if err := s.store.Delete(ctx, userID); err != nil {
		s.logger.Error(err, "cancel_smart_match", "session", strconv.FormatInt(userID, 10), userID)
	}
	return true
}

// Restore re-arms the persisted deadlines. Deadlines already in the past fire
// immediately.
func (s *Scheduler) Restore(ctx context.Context, fire func(ctx context.Context, userID int64, sport string)) (int, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, session := range sessions {
		if s.arm(session.UserID, session.Sport, session.Deadline, fire) {
			restored++
		}
	}
	return restored, nil
}

// Stop cancels every pending timer and waits for running callbacks. Persisted
// deadlines are kept for the next Restore.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) arm(userID int64, sport string, deadline time.Time, fire FireFunc) bool {
	delay := deadline.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if prev, ok := s.tasks[userID]; ok {
		prev.timer.Stop()
	}
	s.gen++
	t := &task{gen: s.gen, sport: sport}
	gen := s.gen
	s.tasks[userID] = t
	t.timer = s.afterFunc(delay, func() { s.fire(userID, gen, fire) })
	return true
}

// fire runs fn unless the task was superseded or cancelled in the meantime.
func (s *Scheduler) fire(userID int64, gen uint64, fn FireFunc) {
	s.mu.Lock()
	t, ok := s.tasks[userID]
	if s.stopped || !ok || t.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, userID)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.forget(userID)
	fn(s.base, userID, t.sport)
}

// forget drops the persisted deadline of a fired task unless a newer one was
// armed for the same user in the meantime.
func (s *Scheduler) forget(userID int64) {
	s.persist.Lock()
	defer s.persist.Unlock()
	s.mu.Lock()
	_, rearmed := s.tasks[userID]
	s.mu.Unlock()
	if rearmed {
		return
	}
	if err := s.store.Delete(s.base, userID); err != nil {
		s.logger.Error(err, "fire_smart_match", "session", strconv.FormatInt(userID, 10), userID)
	}
}
