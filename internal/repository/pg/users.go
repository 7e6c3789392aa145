package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
)

const userColumnsSQL = `telegram_id, username, display_name, age, gender, locations, sports,
	match_preferences, want_to_be_matched, is_matched, smart_match, selected_sport, search_started_at`

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) repository.UsersRepository {
	return &UsersRepo{pool: pool}
}

func (r *UsersRepo) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumnsSQL+` FROM users WHERE telegram_id = $1`, telegramID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, telegramID int64, patch models.UserPatch) error {
	set, args := buildUpdateSet(userColumns(patch))
	if len(set) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE users SET %s WHERE telegram_id=$%d", set, len(args)+1)
	args = append(args, telegramID)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) UpdateMany(ctx context.Context, telegramIDs []int64, patch models.UserPatch) error {
	set, args := buildUpdateSet(userColumns(patch))
	if len(set) == 0 || len(telegramIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE users SET %s WHERE telegram_id = ANY($%d)", set, len(args)+1)
	args = append(args, telegramIDs)
	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

func (r *UsersRepo) UpdateIf(ctx context.Context, telegramID int64, cond models.UserCondition, patch models.UserPatch) (bool, error) {
	set, args := buildUpdateSet(userColumns(patch))
	if len(set) == 0 {
		return false, fmt.Errorf("conditional update without fields: %w", models.ErrValidation)
	}
	where, whereArgs := conditionWhere(telegramID, cond, len(args)+1)
	query := fmt.Sprintf("UPDATE users SET %s WHERE %s", set, where)
	args = append(args, whereArgs...)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListSeeking returns seekers in the order they started searching.
func (r *UsersRepo) ListSeeking(ctx context.Context, sport string, excludeID int64) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumnsSQL+`
		FROM users
		WHERE want_to_be_matched AND NOT is_matched
		  AND selected_sport = $1
		  AND telegram_id <> $2
		ORDER BY search_started_at NULLS LAST, telegram_id`, sport, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *u)
	}
	return items, rows.Err()
}

// conditionWhere renders the guard of a conditional update, numbering
// placeholders from start.
func conditionWhere(telegramID int64, cond models.UserCondition, start int) (string, []any) {
	seeking, matched := cond.Status.Flags()
	where := fmt.Sprintf("telegram_id=$%d AND want_to_be_matched=$%d AND is_matched=$%d", start, start+1, start+2)
	args := []any{telegramID, seeking, matched}
	if cond.Sport != "" {
		where += fmt.Sprintf(" AND selected_sport=$%d", start+3)
		args = append(args, cond.Sport)
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u         models.User
		sports    []byte
		prefs     []byte
		seeking   bool
		matched   bool
		selected  *string
		startedAt *time.Time
	)
	if err := row.Scan(
		&u.TelegramID,
		&u.Username,
		&u.DisplayName,
		&u.Age,
		&u.Gender,
		&u.Locations,
		&sports,
		&prefs,
		&seeking,
		&matched,
		&u.SmartMatch,
		&selected,
		&startedAt,
	); err != nil {
		return nil, err
	}
	status, conflict := models.StatusFromFlags(seeking, matched)
	u.Status = status
	u.ConflictingFlags = conflict != nil
	u.Sports = decodeSports(sports)
	u.Preferences = models.ParsePreferences(prefs, u.Sports)
	u.SelectedSport = selected
	if startedAt != nil {
		t := startedAt.UTC()
		u.SearchStartedAt = &t
	}
	return &u, nil
}

// decodeSports reads the sport to skill-level object. Non-string skill
// values are kept in their JSON text form.
func decodeSports(raw []byte) map[string]string {
	out := map[string]string{}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out
	}
	for sport, v := range fields {
		switch t := v.(type) {
		case string:
			out[sport] = t
		case float64:
			out[sport] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
			out[sport] = ""
		default:
			buf, _ := json.Marshal(t)
			out[sport] = string(buf)
		}
	}
	return out
}
