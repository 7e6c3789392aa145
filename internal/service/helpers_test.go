package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository/memory"
)

type sentMessage struct {
	UserID  int64
	Text    string
	Choices []Choice
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *fakeNotifier) Notify(_ context.Context, userID int64, text string, choices ...Choice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{UserID: userID, Text: text, Choices: choices})
	return nil
}

func (n *fakeNotifier) to(userID int64) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

func (n *fakeNotifier) last(userID int64) sentMessage {
	msgs := n.to(userID)
	if len(msgs) == 0 {
		return sentMessage{}
	}
	return msgs[len(msgs)-1]
}

func (n *fakeNotifier) received(userID int64, substr string) bool {
	for _, m := range n.to(userID) {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

type fakeTimers struct {
	mu      sync.Mutex
	wait    time.Duration
	pending map[int64]string
	fires   map[int64]func(ctx context.Context, userID int64, sport string)
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{
		wait:    time.Hour,
		pending: map[int64]string{},
		fires:   map[int64]func(ctx context.Context, userID int64, sport string){},
	}
}

func (t *fakeTimers) Schedule(_ context.Context, userID int64, sport string, fire func(ctx context.Context, userID int64, sport string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[userID] = sport
	t.fires[userID] = fire
}

func (t *fakeTimers) Cancel(_ context.Context, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[userID]
	delete(t.pending, userID)
	delete(t.fires, userID)
	return ok
}

func (t *fakeTimers) Restore(context.Context, func(ctx context.Context, userID int64, sport string)) (int, error) {
	return 0, nil
}

func (t *fakeTimers) Wait() time.Duration { return t.wait }

func (t *fakeTimers) isPending(userID int64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sport, ok := t.pending[userID]
	return sport, ok
}

// fire runs the pending timer of userID as if its wait elapsed.
func (t *fakeTimers) fire(ctx context.Context, userID int64) bool {
	t.mu.Lock()
	sport, ok := t.pending[userID]
	fn := t.fires[userID]
	delete(t.pending, userID)
	delete(t.fires, userID)
	t.mu.Unlock()
	if !ok {
		return false
	}
	fn(ctx, userID, sport)
	return true
}

type nopLogger struct{}

func (nopLogger) Info(string, string, string, int64, string) {}
func (nopLogger) Error(error, string, string, string, int64) {}

type harness struct {
	store    *memory.Store
	timers   *fakeTimers
	notifier *fakeNotifier
	svc      *matchService
}

func newHarness() *harness {
	store := memory.NewStore()
	timers := newFakeTimers()
	notifier := &fakeNotifier{}
	svc := NewMatchService(store.Users(), store.Matches(), timers, notifier, nopLogger{}).(*matchService)
	return &harness{store: store, timers: timers, notifier: notifier, svc: svc}
}

func (h *harness) user(id int64) *models.User {
	u, err := h.store.Users().Get(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return u
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func boolPtr(v bool) *bool { return &v }

// tennisPlayer is a complete profile for tennis with permissive preferences.
func tennisPlayer(id int64, name string, age int, gender string) models.User {
	return models.User{
		TelegramID:  id,
		Username:    strings.ToLower(name),
		DisplayName: name,
		Age:         age,
		Gender:      gender,
		Locations:   []string{"park1"},
		Sports:      map[string]string{"tennis": "intermediate"},
		Preferences: map[string]models.Preferences{"tennis": {}},
		Status:      models.UserStatusIdle,
	}
}

func seeking(u models.User, sport string, smart bool) models.User {
	u.Status = models.UserStatusSeeking
	u.SelectedSport = strPtr(sport)
	u.SmartMatch = smart
	return u
}
