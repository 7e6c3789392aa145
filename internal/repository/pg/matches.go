package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
)

const matchColumnsSQL = `id::text, user_a_id, user_b_id, user_a_username, user_b_username, sport, status,
	used_relaxed_criteria, game_played_a, game_played_b, bot_experience_a, bot_experience_b,
	user_experience_a, user_experience_b, no_game_reason_a, no_game_reason_b, created_at, ended_at`

type MatchesRepo struct {
	pool *pgxpool.Pool
}

func NewMatchesRepo(pool *pgxpool.Pool) repository.MatchesRepository {
	return &MatchesRepo{pool: pool}
}

func (r *MatchesRepo) Insert(ctx context.Context, match models.Match) (string, error) {
	id := uuid.New()
	if match.ID != "" {
		parsed, err := uuid.Parse(match.ID)
		if err != nil {
			return "", fmt.Errorf("match id %q: %w", match.ID, models.ErrValidation)
		}
		id = parsed
	}
	if match.Status == "" {
		match.Status = models.MatchStatusActive
	}
	createdAt := match.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO matches (id, user_a_id, user_b_id, user_a_username, user_b_username,
			sport, status, used_relaxed_criteria, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id,
		match.UserAID,
		match.UserBID,
		match.UserAUsername,
		match.UserBUsername,
		match.Sport,
		string(match.Status),
		match.UsedRelaxedCriteria,
		createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", models.ErrConflict
		}
		return "", err
	}
	return id.String(), nil
}

func (r *MatchesRepo) Get(ctx context.Context, id string) (*models.Match, error) {
	uid, err := matchID(id)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+matchColumnsSQL+` FROM matches WHERE id = $1`, uid)
	return scanOneMatch(row)
}

func (r *MatchesRepo) FindActiveByUser(ctx context.Context, telegramID int64) (*models.Match, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+matchColumnsSQL+`
		FROM matches
		WHERE (user_a_id = $1 OR user_b_id = $1) AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`, telegramID)
	return scanOneMatch(row)
}

func (r *MatchesRepo) ListEndedByUser(ctx context.Context, telegramID int64, limit int) ([]models.Match, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumnsSQL+`
		FROM matches
		WHERE (user_a_id = $1 OR user_b_id = $1) AND status = 'ended'
		ORDER BY ended_at DESC NULLS LAST, created_at DESC
		LIMIT $2`, telegramID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

func (r *MatchesRepo) End(ctx context.Context, id string) (bool, error) {
	uid, err := matchID(id)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE matches
		SET status = 'ended', ended_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'active'`, uid)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM matches WHERE id = $1)`, uid).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, models.ErrNotFound
	}
	return false, nil
}

func (r *MatchesRepo) SetFeedback(ctx context.Context, id string, update models.FeedbackUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	uid, err := matchID(id)
	if err != nil {
		return err
	}
	name, err := feedbackColumn(update.Field, update.Side)
	if err != nil {
		return err
	}
	set, args := buildUpdateSet([]column{{name: name, value: update.Value()}})
	query := fmt.Sprintf("UPDATE matches SET %s WHERE id=$%d", set, len(args)+1)
	args = append(args, uid)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func matchID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("match id %q: %w", id, models.ErrNotFound)
	}
	return uid, nil
}

func scanOneMatch(row pgx.Row) (*models.Match, error) {
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func scanMatch(row rowScanner) (*models.Match, error) {
	var (
		m       models.Match
		status  string
		playedA *string
		playedB *string
		endedAt *time.Time
	)
	if err := row.Scan(
		&m.ID,
		&m.UserAID,
		&m.UserBID,
		&m.UserAUsername,
		&m.UserBUsername,
		&m.Sport,
		&status,
		&m.UsedRelaxedCriteria,
		&playedA,
		&playedB,
		&m.FeedbackA.BotExperience,
		&m.FeedbackB.BotExperience,
		&m.FeedbackA.UserExperience,
		&m.FeedbackB.UserExperience,
		&m.FeedbackA.NoGameReason,
		&m.FeedbackB.NoGameReason,
		&m.CreatedAt,
		&endedAt,
	); err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	if playedA != nil {
		m.FeedbackA.GamePlayed = models.ParseGamePlayed(*playedA)
	}
	if playedB != nil {
		m.FeedbackB.GamePlayed = models.ParseGamePlayed(*playedB)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if endedAt != nil {
		t := endedAt.UTC()
		m.EndedAt = &t
	}
	return &m, nil
}
