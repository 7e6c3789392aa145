package repository

import (
	"context"
	"time"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

type UsersRepository interface {
	Get(ctx context.Context, telegramID int64) (*models.User, error)
	Update(ctx context.Context, telegramID int64, patch models.UserPatch) error
	UpdateMany(ctx context.Context, telegramIDs []int64, patch models.UserPatch) error
	// UpdateIf applies patch only while the stored user satisfies cond.
	// It reports whether the update took place; a failed condition is not an error.
	UpdateIf(ctx context.Context, telegramID int64, cond models.UserCondition, patch models.UserPatch) (bool, error)
	// ListSeeking enumerates users seeking a partner for sport, in store order.
	ListSeeking(ctx context.Context, sport string, excludeID int64) ([]models.User, error)
}

type MatchesRepository interface {
	Insert(ctx context.Context, match models.Match) (string, error)
	Get(ctx context.Context, id string) (*models.Match, error)
	FindActiveByUser(ctx context.Context, telegramID int64) (*models.Match, error)
	// ListEndedByUser returns up to limit ended matches of the user, newest first.
	ListEndedByUser(ctx context.Context, telegramID int64, limit int) ([]models.Match, error)
	// End moves an active match to ended. It reports false when the match was not active.
	End(ctx context.Context, id string) (bool, error)
	SetFeedback(ctx context.Context, id string, update models.FeedbackUpdate) error
}

type SessionsRepository interface {
	Save(ctx context.Context, session models.SearchSession, ttl time.Duration) error
	Delete(ctx context.Context, userID int64) error
	List(ctx context.Context) ([]models.SearchSession, error)
}

type Logger interface {
	Info(action string, entity string, entityID string, userID int64, status string)
	Error(err error, action string, entity string, entityID string, userID int64)
}
