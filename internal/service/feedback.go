package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

// Feedback -------------------------------------------------------------------

// RecordFeedback writes one feedback field for the caller's side of the match.
// It reports true when this write completed the game-played answers of both sides.
func (s *matchService) RecordFeedback(ctx context.Context, matchID string, userID int64, update models.FeedbackUpdate) (bool, error) {
	match, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return false, wrapNotFound(err, "match", matchID)
	}
	side, ok := match.SideOf(userID)
	if !ok {
		return false, models.ErrNotParticipant
	}
	update.Side = side
	if err := update.Validate(); err != nil {
		return false, fmt.Errorf("feedback %s: %w", update.Field, err)
	}

	wasComplete := match.FeedbackComplete()
	if err := s.matches.SetFeedback(ctx, matchID, update); err != nil {
		return false, err
	}
	s.logger.Info("record_feedback", "match", matchID, userID, update.Field.Column(side))

	if wasComplete || update.Field != models.FeedbackGamePlayed {
		return false, nil
	}
	updated, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return false, err
	}
	if !updated.FeedbackComplete() {
		return false, nil
	}
	const text = "Both users have provided feedback on whether a game was played. Thank you!"
	s.notify(ctx, updated.UserAID, text)
	s.notify(ctx, updated.UserBID, text)
	return true, nil
}

// PendingFeedback returns the newest ended match the user has not yet answered.
func (s *matchService) PendingFeedback(ctx context.Context, userID int64) (*models.Match, error) {
	items, err := s.matches.ListEndedByUser(ctx, userID, 5)
	if err != nil {
		return nil, err
	}
	for i := range items {
		side, ok := items[i].SideOf(userID)
		if !ok {
			continue
		}
		if items[i].Feedback(side).GamePlayed == nil {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("pending feedback for user %d: %w", userID, models.ErrNotFound)
}

// PromptFeedback asks the user whether a game was played in the match.
func (s *matchService) PromptFeedback(ctx context.Context, matchID string, userID int64) {
	match, err := s.matches.Get(ctx, matchID)
	if err != nil {
		s.logger.Error(err, "prompt_feedback", "match", matchID, userID)
		return
	}
	partner := match.UserAUsername
	if match.UserAID == userID {
		partner = match.UserBUsername
	}
	if partner == "" {
		partner = "your partner"
	}
	text := fmt.Sprintf("Was a game of %s played with %s?", match.Sport, partner)
	s.notify(ctx, userID, text, PlayedChoices(matchID)...)
}

// Prompt choices ---------------------------------------------------------------

func PlayedChoices(matchID string) []Choice {
	return []Choice{
		{Label: "Yes", Token: NewToken(ActionPlayed, "m", matchID, "v", "yes")},
		{Label: "No", Token: NewToken(ActionPlayed, "m", matchID, "v", "no")},
	}
}

// RatingChoices offers a 1-5 scale for the given rating action.
func RatingChoices(action, matchID string) []Choice {
	out := make([]Choice, 0, 5)
	for i := 1; i <= 5; i++ {
		v := strconv.Itoa(i)
		out = append(out, Choice{Label: v, Token: NewToken(action, "m", matchID, "v", v)})
	}
	return out
}

var reasonLabels = map[string]string{
	models.NoGameReasonNoShow:      "Partner did not show up",
	models.NoGameReasonSchedule:    "Could not agree on a time",
	models.NoGameReasonWeather:     "Weather",
	models.NoGameReasonChangedMind: "Changed my mind",
	models.NoGameReasonOther:       "Other",
}

func ReasonChoices(matchID string) []Choice {
	out := make([]Choice, 0, len(models.NoGameReasons))
	for _, code := range models.NoGameReasons {
		out = append(out, Choice{Label: reasonLabels[code], Token: NewToken(ActionReason, "m", matchID, "v", code)})
	}
	return out
}

// FeedbackFromToken turns a feedback choice token into an update. The side is
// filled in by RecordFeedback.
func FeedbackFromToken(t *Token) (string, models.FeedbackUpdate, error) {
	matchID := t.Params["m"]
	if matchID == "" {
		return "", models.FeedbackUpdate{}, fmt.Errorf("feedback token without match: %w", models.ErrNotFound)
	}
	var update models.FeedbackUpdate
	switch t.Action {
	case ActionPlayed:
		played := models.ParseGamePlayed(t.Params["v"])
		if played == nil {
			return "", update, models.ErrValidation
		}
		update = models.FeedbackUpdate{Field: models.FeedbackGamePlayed, Played: played}
	case ActionBotRating, ActionPartnerRating:
		v, ok := t.Int("v")
		if !ok {
			return "", update, models.ErrValidation
		}
		field := models.FeedbackBotExperience
		if t.Action == ActionPartnerRating {
			field = models.FeedbackUserExperience
		}
		update = models.FeedbackUpdate{Field: field, Rating: &v}
	case ActionReason:
		reason := t.Params["v"]
		update = models.FeedbackUpdate{Field: models.FeedbackNoGameReason, Reason: &reason}
	default:
		return "", update, errors.New("unknown feedback action " + t.Action)
	}
	return matchID, update, nil
}
