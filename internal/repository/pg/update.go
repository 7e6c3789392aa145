package pg

import (
	"fmt"
	"strings"
	"time"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

type column struct {
	name  string
	value any
}

// buildUpdateSet renders the SET clause for the columns that carry a value.
// Placeholders start at $1; callers append their WHERE arguments after args.
func buildUpdateSet(cols []column) (string, []any) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)
	add := func(name string, v any) {
		clauses = append(clauses, fmt.Sprintf("%s=$%d", name, idx))
		args = append(args, v)
		idx++
	}
	for _, col := range cols {
		switch v := col.value.(type) {
		case nil:
			continue
		case *string:
			if v == nil {
				continue
			}
			add(col.name, *v)
		case *bool:
			if v == nil {
				continue
			}
			add(col.name, *v)
		case *int:
			if v == nil {
				continue
			}
			add(col.name, *v)
		case *time.Time:
			if v == nil {
				continue
			}
			add(col.name, *v)
		case models.OptionalString:
			if !v.Set {
				continue
			}
			add(col.name, v.Value)
		case models.OptionalTime:
			if !v.Set {
				continue
			}
			add(col.name, v.Value)
		default:
			add(col.name, v)
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	clauses = append(clauses, "updated_at=NOW()")
	return strings.Join(clauses, ", "), args
}

func userColumns(p models.UserPatch) []column {
	var cols []column
	if p.Status != nil {
		seeking, matched := p.Status.Flags()
		cols = append(cols,
			column{name: "want_to_be_matched", value: &seeking},
			column{name: "is_matched", value: &matched},
		)
	}
	return append(cols,
		column{name: "smart_match", value: p.SmartMatch},
		column{name: "selected_sport", value: p.SelectedSport},
		column{name: "search_started_at", value: p.SearchStartedAt},
	)
}

// feedbackColumn maps a feedback field and side onto its column name.
func feedbackColumn(field models.FeedbackField, side models.Side) (string, error) {
	var base string
	switch field {
	case models.FeedbackGamePlayed:
		base = "game_played"
	case models.FeedbackBotExperience:
		base = "bot_experience"
	case models.FeedbackUserExperience:
		base = "user_experience"
	case models.FeedbackNoGameReason:
		base = "no_game_reason"
	default:
		return "", models.ErrValidation
	}
	switch side {
	case models.SideA:
		return base + "_a", nil
	case models.SideB:
		return base + "_b", nil
	default:
		return "", models.ErrValidation
	}
}
