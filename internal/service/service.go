package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
)

// Choice is a button offered with a notification. Token is round-tripped back
// as a choice event; URL buttons open a link instead.
type Choice struct {
	Label string
	Token string
	URL   string
}

// Notifier delivers text to a user. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string, choices ...Choice) error
}

// Timers arms and cancels the per-user Smart-Match re-scan.
type Timers interface {
	Schedule(ctx context.Context, userID int64, sport string, fire func(ctx context.Context, userID int64, sport string))
	Cancel(ctx context.Context, userID int64) bool
	Restore(ctx context.Context, fire func(ctx context.Context, userID int64, sport string)) (int, error)
	Wait() time.Duration
}

// Outcome of a match request. Match is nil while the user keeps searching.
type Outcome struct {
	Match   *models.Match
	Partner *models.User
}

type MatchService interface {
	Profile(ctx context.Context, userID int64) (*models.User, error)
	RequestMatch(ctx context.Context, userID int64, sport string, smartMatch bool) (Outcome, error)
	EndSearch(ctx context.Context, userID int64) (bool, error)
	EndMatch(ctx context.Context, userID int64) (*models.Match, error)
	RelaxedRescan(ctx context.Context, userID int64, sport string)
	RecordFeedback(ctx context.Context, matchID string, userID int64, update models.FeedbackUpdate) (bool, error)
	PendingFeedback(ctx context.Context, userID int64) (*models.Match, error)
	PromptFeedback(ctx context.Context, matchID string, userID int64)
	Relay(ctx context.Context, userID int64, text string) error
	RestorePending(ctx context.Context) (int, error)
	SmartMatchWait() time.Duration
}

type matchService struct {
	users    repository.UsersRepository
	matches  repository.MatchesRepository
	scanner  *Scanner
	timers   Timers
	notifier Notifier
	logger   repository.Logger
	now      func() time.Time
}

func NewMatchService(users repository.UsersRepository, matches repository.MatchesRepository, timers Timers, notifier Notifier, logger repository.Logger) MatchService {
	return &matchService{
		users:    users,
		matches:  matches,
		scanner:  NewScanner(users),
		timers:   timers,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *matchService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	return s.getUser(ctx, userID)
}

// getUser loads a user and logs records stored with both legacy status flags.
func (s *matchService) getUser(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.ConflictingFlags {
		s.logger.Error(fmt.Errorf("user %d: %w", userID, models.ErrInconsistentState), "load_user", "user", userKey(userID), userID)
	}
	return u, nil
}

func (s *matchService) SmartMatchWait() time.Duration {
	return s.timers.Wait()
}

func (s *matchService) RestorePending(ctx context.Context) (int, error) {
	return s.timers.Restore(ctx, s.RelaxedRescan)
}

// notify never fails the caller: state is committed before anything is sent.
func (s *matchService) notify(ctx context.Context, userID int64, text string, choices ...Choice) {
	if err := s.notifier.Notify(ctx, userID, text, choices...); err != nil {
		s.logger.Error(err, "notify", "user", strconv.FormatInt(userID, 10), userID)
	}
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func wrapNotFound(err error, what string, id any) error {
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, models.ErrNotFound)
	}
	return err
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		n := int(d / time.Hour)
		if n == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", n)
	case d >= time.Minute && d%time.Minute == 0:
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	default:
		return d.String()
	}
}
