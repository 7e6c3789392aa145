package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

// Requests -------------------------------------------------------------------

func (s *matchService) RequestMatch(ctx context.Context, userID int64, sport string, smartMatch bool) (Outcome, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return Outcome{}, wrapNotFound(err, "user", userID)
	}
	if err := CheckEligible(user, sport); err != nil {
		return Outcome{}, err
	}

	s.timers.Cancel(ctx, userID)
	if err := s.markSeeking(ctx, userID, sport, smartMatch); err != nil {
		return Outcome{}, err
	}
	s.logger.Info("request_match", "user", userKey(userID), userID, sport)

	candidate, err := s.scanner.FindCandidate(ctx, userID, sport, true)
	if err != nil {
		return Outcome{}, err
	}
	if candidate != nil {
		seeker, err := s.getUser(ctx, userID)
		if err != nil {
			return Outcome{}, err
		}
		match, err := s.commit(ctx, seeker, candidate, sport, false)
		if err != nil {
			return Outcome{}, err
		}
		if match != nil {
			s.announceMatch(ctx, match, seeker, candidate)
			return Outcome{Match: match, Partner: candidate}, nil
		}
	}

	if smartMatch {
		s.timers.Schedule(ctx, userID, sport, s.RelaxedRescan)
		s.notify(ctx, userID, fmt.Sprintf(
			"No match found for %s at the moment. Please wait for a match! Smart-Match is on: if nobody turns up within %s, we will widen your criteria.",
			sport, humanDuration(s.timers.Wait())))
	} else {
		s.notify(ctx, userID, fmt.Sprintf("No match found for %s at the moment. Please wait for a match!", sport))
	}
	return Outcome{}, nil
}

// markSeeking moves an idle or already-seeking user into a fresh search.
func (s *matchService) markSeeking(ctx context.Context, userID int64, sport string, smartMatch bool) error {
	now := s.now().UTC()
	seeking := models.UserStatusSeeking
	patch := models.UserPatch{
		Status:          &seeking,
		SmartMatch:      &smartMatch,
		SelectedSport:   models.NewOptionalString(&sport),
		SearchStartedAt: models.NewOptionalTime(&now),
	}
	for _, from := range []models.UserStatus{models.UserStatusIdle, models.UserStatusSeeking} {
		ok, err := s.users.UpdateIf(ctx, userID, models.UserCondition{Status: from}, patch)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return models.ErrAlreadyMatched
}

func (s *matchService) EndSearch(ctx context.Context, userID int64) (bool, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return false, wrapNotFound(err, "user", userID)
	}
	if user.Status != models.UserStatusSeeking {
		return false, nil
	}
	s.timers.Cancel(ctx, userID)
	ok, err := s.users.UpdateIf(ctx, userID, models.UserCondition{Status: models.UserStatusSeeking}, idlePatch())
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("end_search", "user", userKey(userID), userID, "idle")
	}
	return ok, nil
}

// Commit ---------------------------------------------------------------------

// commit claims both users with conditional updates and records the match.
// A lost race returns (nil, nil): the pair vanished and the caller reports no match.
func (s *matchService) commit(ctx context.Context, seeker, candidate *models.User, sport string, relaxed bool) (*models.Match, error) {
	cond := models.UserCondition{Status: models.UserStatusSeeking, Sport: sport}

	ok, err := s.users.UpdateIf(ctx, seeker.TelegramID, cond, matchedPatch())
	if err != nil || !ok {
		return nil, err
	}
	ok, err = s.users.UpdateIf(ctx, candidate.TelegramID, cond, matchedPatch())
	if err != nil || !ok {
		s.release(ctx, seeker)
		if err == nil {
			s.logger.Info("commit_match", "user", userKey(candidate.TelegramID), seeker.TelegramID, "candidate_vanished")
		}
		return nil, err
	}

	match := models.Match{
		UserAID:             seeker.TelegramID,
		UserBID:             candidate.TelegramID,
		UserAUsername:       seeker.Username,
		UserBUsername:       candidate.Username,
		Sport:               sport,
		Status:              models.MatchStatusActive,
		UsedRelaxedCriteria: relaxed,
		CreatedAt:           s.now().UTC(),
	}
	id, err := s.matches.Insert(ctx, match)
	if err != nil {
		s.release(ctx, seeker)
		s.release(ctx, candidate)
		return nil, fmt.Errorf("insert match: %w", err)
	}
	match.ID = id

	s.timers.Cancel(ctx, seeker.TelegramID)
	s.timers.Cancel(ctx, candidate.TelegramID)
	status := "strict"
	if relaxed {
		status = "relaxed"
	}
	s.logger.Info("commit_match", "match", id, seeker.TelegramID, status)
	return &match, nil
}

// release puts a claimed user back into the search it was in before the claim.
func (s *matchService) release(ctx context.Context, u *models.User) {
	seeking := models.UserStatusSeeking
	smart := u.SmartMatch
	patch := models.UserPatch{Status: &seeking, SmartMatch: &smart}
	if _, err := s.users.UpdateIf(ctx, u.TelegramID, models.UserCondition{Status: models.UserStatusMatched}, patch); err != nil {
		s.logger.Error(err, "release_user", "user", userKey(u.TelegramID), u.TelegramID)
	}
}

func (s *matchService) announceMatch(ctx context.Context, match *models.Match, a, b *models.User) {
	suffix := ""
	if match.UsedRelaxedCriteria {
		suffix = " (Smart-Match)"
	}
	s.notify(ctx, a.TelegramID, fmt.Sprintf("You have been matched with %s for %s%s! 🎉 Send a message here to chat with them.", b.Name(), match.Sport, suffix))
	s.notify(ctx, b.TelegramID, fmt.Sprintf("You have been matched with %s for %s%s! 🎉 Send a message here to chat with them.", a.Name(), match.Sport, suffix))
}

// Smart-Match ------------------------------------------------------------------

// RelaxedRescan runs when a Smart-Match wait elapses. It is silent unless the
// user is still seeking the same sport with Smart-Match on.
func (s *matchService) RelaxedRescan(ctx context.Context, userID int64, sport string) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		s.logger.Error(err, "relaxed_rescan", "user", userKey(userID), userID)
		return
	}
	if !user.SeekingFor(sport) || !user.SmartMatch {
		return
	}

	s.notify(ctx, userID, fmt.Sprintf("Still looking for a %s partner. Smart-Match is relaxing your criteria...", sport))
	candidate, err := s.scanner.FindCandidate(ctx, userID, sport, false)
	if err != nil {
		s.logger.Error(err, "relaxed_rescan", "user", userKey(userID), userID)
		return
	}
	if candidate != nil {
		match, err := s.commit(ctx, user, candidate, sport, true)
		if err != nil {
			s.logger.Error(err, "relaxed_rescan", "user", userKey(userID), userID)
			return
		}
		if match != nil {
			s.announceMatch(ctx, match, user, candidate)
			return
		}
	}
	s.logger.Info("relaxed_rescan", "user", userKey(userID), userID, "no_candidate")
	s.notify(ctx, userID, fmt.Sprintf("No %s players are available right now. You stay in the queue; use /endsearch to stop.", sport))
}

// Ending ---------------------------------------------------------------------

func (s *matchService) EndMatch(ctx context.Context, userID int64) (*models.Match, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err, "user", userID)
	}
	if user.Status != models.UserStatusMatched {
		return nil, models.ErrNotMatched
	}

	match, err := s.matches.FindActiveByUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		inconsistent := fmt.Errorf("user %d is flagged matched: %w", userID, models.ErrNoActiveMatch)
		s.logger.Error(inconsistent, "end_match", "user", userKey(userID), userID)
		if err := s.users.Update(ctx, userID, idlePatch()); err != nil {
			s.logger.Error(err, "end_match_reset", "user", userKey(userID), userID)
		}
		return nil, inconsistent
	}
	if err != nil {
		return nil, err
	}

	ended, err := s.matches.End(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	if !ended {
		return nil, models.ErrNoActiveMatch
	}
	match.Status = models.MatchStatusEnded

	if err := s.users.UpdateMany(ctx, []int64{match.UserAID, match.UserBID}, idlePatch()); err != nil {
		return nil, err
	}
	s.logger.Info("end_match", "match", match.ID, userID, string(models.MatchStatusEnded))

	partnerID := match.Partner(userID)
	s.notify(ctx, userID, "Your match has ended.")
	s.notify(ctx, partnerID, "The other sports-finder has ended the match.")
	s.PromptFeedback(ctx, match.ID, userID)
	s.PromptFeedback(ctx, match.ID, partnerID)
	return match, nil
}

// Relay ----------------------------------------------------------------------

// Relay forwards a chat message from a matched user to the partner.
// Messages from users without an active match are dropped.
func (s *matchService) Relay(ctx context.Context, userID int64, text string) error {
	user, err := s.getUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.Status != models.UserStatusMatched {
		return nil
	}
	match, err := s.matches.FindActiveByUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.notify(ctx, match.Partner(userID), fmt.Sprintf("Message from %s: %s", user.Name(), text))
	return nil
}

func matchedPatch() models.UserPatch {
	matched := models.UserStatusMatched
	smart := false
	return models.UserPatch{Status: &matched, SmartMatch: &smart}
}

func idlePatch() models.UserPatch {
	idle := models.UserStatusIdle
	smart := false
	return models.UserPatch{
		Status:          &idle,
		SmartMatch:      &smart,
		SelectedSport:   models.NewOptionalString(nil),
		SearchStartedAt: models.NewOptionalTime(nil),
	}
}
