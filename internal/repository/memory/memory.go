// Package memory keeps users and matches in process memory. It backs local
// runs without a database and the tests of the packages above it.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
)

// Store holds both collections. Enumeration order is insertion order, the way
// a document store returns documents without a sort.
type Store struct {
	mu      sync.Mutex
	users   map[int64]*models.User
	order   []int64
	matches map[string]*models.Match
	mOrder  []string
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:   make(map[int64]*models.User),
		matches: make(map[string]*models.Match),
		now:     time.Now,
	}
}

// Users returns the user collection view.
func (s *Store) Users() repository.UsersRepository { return &UsersRepo{s: s} }

// Matches returns the match collection view.
func (s *Store) Matches() repository.MatchesRepository { return &MatchesRepo{s: s} }

// PutUser inserts or replaces a user record, the way the profile web app would.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Status == "" {
		u.Status = models.UserStatusIdle
	}
	if _, ok := s.users[u.TelegramID]; !ok {
		s.order = append(s.order, u.TelegramID)
	}
	cp := cloneUser(&u)
	s.users[u.TelegramID] = cp
}

// AllMatches returns a snapshot of every match in insertion order.
func (s *Store) AllMatches() []models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Match, 0, len(s.mOrder))
	for _, id := range s.mOrder {
		out = append(out, cloneMatch(s.matches[id]))
	}
	return out
}

// Users --------------------------------------------------------------------

type UsersRepo struct {
	s *Store
}

func (r *UsersRepo) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[telegramID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UsersRepo) Update(ctx context.Context, telegramID int64, patch models.UserPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[telegramID]
	if !ok {
		return models.ErrNotFound
	}
	patch.Apply(u)
	r.s.users[telegramID] = cloneUser(u)
	return nil
}

func (r *UsersRepo) UpdateMany(ctx context.Context, telegramIDs []int64, patch models.UserPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range telegramIDs {
		if u, ok := r.s.users[id]; ok {
			patch.Apply(u)
			r.s.users[id] = cloneUser(u)
		}
	}
	return nil
}

func (r *UsersRepo) UpdateIf(ctx context.Context, telegramID int64, cond models.UserCondition, patch models.UserPatch) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[telegramID]
	if !ok || !cond.Holds(u) {
		return false, nil
	}
	patch.Apply(u)
	r.s.users[telegramID] = cloneUser(u)
	return true, nil
}

func (r *UsersRepo) ListSeeking(ctx context.Context, sport string, excludeID int64) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var items []models.User
	for _, id := range r.s.order {
		u := r.s.users[id]
		if id == excludeID || !u.SeekingFor(sport) {
			continue
		}
		items = append(items, *cloneUser(u))
	}
	return items, nil
}

// Matches ------------------------------------------------------------------

type MatchesRepo struct {
	s *Store
}

func (r *MatchesRepo) Insert(ctx context.Context, match models.Match) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	if _, exists := r.s.matches[match.ID]; exists {
		return "", models.ErrConflict
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = r.s.now().UTC()
	}
	cp := cloneMatch(&match)
	r.s.matches[match.ID] = &cp
	r.s.mOrder = append(r.s.mOrder, match.ID)
	return match.ID, nil
}

func (r *MatchesRepo) Get(ctx context.Context, id string) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := cloneMatch(m)
	return &cp, nil
}

func (r *MatchesRepo) FindActiveByUser(ctx context.Context, telegramID int64) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range r.s.mOrder {
		m := r.s.matches[id]
		if m.Status != models.MatchStatusActive {
			continue
		}
		if m.UserAID == telegramID || m.UserBID == telegramID {
			cp := cloneMatch(m)
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MatchesRepo) ListEndedByUser(ctx context.Context, telegramID int64, limit int) ([]models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var items []models.Match
	for i := len(r.s.mOrder) - 1; i >= 0; i-- {
		m := r.s.matches[r.s.mOrder[i]]
		if m.Status != models.MatchStatusEnded {
			continue
		}
		if m.UserAID == telegramID || m.UserBID == telegramID {
			items = append(items, cloneMatch(m))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return endedAt(items[i]).After(endedAt(items[j]))
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MatchesRepo) End(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if m.Status != models.MatchStatusActive {
		return false, nil
	}
	now := r.s.now().UTC()
	m.Status = models.MatchStatusEnded
	m.EndedAt = &now
	return true, nil
}

func (r *MatchesRepo) SetFeedback(ctx context.Context, id string, update models.FeedbackUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return models.ErrNotFound
	}
	update.Apply(m)
	*m = cloneMatch(m)
	return nil
}

func endedAt(m models.Match) time.Time {
	if m.EndedAt != nil {
		return *m.EndedAt
	}
	return m.CreatedAt
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.Locations = append([]string(nil), u.Locations...)
	if u.Sports != nil {
		cp.Sports = make(map[string]string, len(u.Sports))
		for k, v := range u.Sports {
			cp.Sports[k] = v
		}
	}
	if u.Preferences != nil {
		cp.Preferences = make(map[string]models.Preferences, len(u.Preferences))
		for k, v := range u.Preferences {
			cp.Preferences[k] = v
		}
	}
	if u.SelectedSport != nil {
		s := *u.SelectedSport
		cp.SelectedSport = &s
	}
	if u.SearchStartedAt != nil {
		t := *u.SearchStartedAt
		cp.SearchStartedAt = &t
	}
	return &cp
}

func cloneMatch(m *models.Match) models.Match {
	cp := *m
	if m.EndedAt != nil {
		t := *m.EndedAt
		cp.EndedAt = &t
	}
	cp.FeedbackA = cloneFeedback(m.FeedbackA)
	cp.FeedbackB = cloneFeedback(m.FeedbackB)
	return cp
}

func cloneFeedback(f models.Feedback) models.Feedback {
	var out models.Feedback
	if f.GamePlayed != nil {
		v := *f.GamePlayed
		out.GamePlayed = &v
	}
	if f.BotExperience != nil {
		v := *f.BotExperience
		out.BotExperience = &v
	}
	if f.UserExperience != nil {
		v := *f.UserExperience
		out.UserExperience = &v
	}
	if f.NoGameReason != nil {
		v := *f.NoGameReason
		out.NoGameReason = &v
	}
	return out
}
