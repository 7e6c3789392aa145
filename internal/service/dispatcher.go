package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
)

const (
	CommandStart     = "start"
	CommandMatchMe   = "matchme"
	CommandEndMatch  = "endmatch"
	CommandEndSearch = "endsearch"
	CommandFeedback  = "feedback"
)

const (
	msgGenericFailure = "Sorry, something went wrong. Please try again."
	msgNotFound       = "We could not find that. Please set up your profile in the web app first."
	msgNotParticipant = "You are not part of this match."
	msgNoActiveMatch  = "No active match found!"
	msgInvalidChoice  = "That option is no longer valid."
)

// Command is an inbound bot command, without the leading slash.
type Command struct {
	UserID    int64
	Name      string
	FirstName string
}

// Dispatcher maps inbound commands, button choices and plain text onto the
// match service. It is the error boundary: user-facing failures are answered
// here and only unexpected errors are returned.
type Dispatcher struct {
	svc       MatchService
	notifier  Notifier
	logger    repository.Logger
	webAppURL string
}

func NewDispatcher(svc MatchService, notifier Notifier, logger repository.Logger, webAppURL string) *Dispatcher {
	return &Dispatcher{svc: svc, notifier: notifier, logger: logger, webAppURL: webAppURL}
}

func (d *Dispatcher) HandleCommand(ctx context.Context, cmd Command) error {
	switch cmd.Name {
	case CommandStart:
		return d.start(ctx, cmd)
	case CommandMatchMe:
		return d.matchMe(ctx, cmd.UserID)
	case CommandEndMatch:
		if _, err := d.svc.EndMatch(ctx, cmd.UserID); err != nil {
			return d.fail(ctx, cmd.UserID, "end_match", err)
		}
		return nil
	case CommandEndSearch:
		ended, err := d.svc.EndSearch(ctx, cmd.UserID)
		if err != nil {
			return d.fail(ctx, cmd.UserID, "end_search", err)
		}
		if ended {
			return d.send(ctx, cmd.UserID, "You have stopped searching for a match.")
		}
		return d.send(ctx, cmd.UserID, "You are not searching for a match right now.")
	case CommandFeedback:
		match, err := d.svc.PendingFeedback(ctx, cmd.UserID)
		if errors.Is(err, models.ErrNotFound) {
			return d.send(ctx, cmd.UserID, "You have no matches waiting for feedback.")
		}
		if err != nil {
			return d.fail(ctx, cmd.UserID, "feedback", err)
		}
		d.svc.PromptFeedback(ctx, match.ID, cmd.UserID)
		return nil
	default:
		return d.send(ctx, cmd.UserID, "Unknown command. Try /matchme, /endsearch, /endmatch or /feedback.")
	}
}

func (d *Dispatcher) start(ctx context.Context, cmd Command) error {
	name := cmd.FirstName
	if name == "" {
		name = "Unknown"
	}
	_, err := d.svc.Profile(ctx, cmd.UserID)
	if err == nil {
		return d.send(ctx, cmd.UserID, fmt.Sprintf("Welcome back, %s!\n\n"+
			"SportsFinder is a player matching bot for your favourite sports! "+
			"Use /matchme to find a player, /endsearch to stop searching and /endmatch to end a match.", name))
	}
	if !errors.Is(err, models.ErrNotFound) {
		return d.fail(ctx, cmd.UserID, "start", err)
	}
	text := fmt.Sprintf("Welcome %s to SportsFinder!\n\n"+
		"This is a player matching service for your favourite sports. "+
		"To begin, click on the button below to open our web app - "+
		"it'll give you access to view and edit your profile from there!", name)
	if d.webAppURL == "" {
		return d.send(ctx, cmd.UserID, text)
	}
	return d.send(ctx, cmd.UserID, text, Choice{Label: "My Profile", URL: d.webAppURL})
}

func (d *Dispatcher) matchMe(ctx context.Context, userID int64) error {
	user, err := d.svc.Profile(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return d.send(ctx, userID, models.ErrProfileIncomplete.Error())
	}
	if err != nil {
		return d.fail(ctx, userID, "matchme", err)
	}
	if err := CheckCanRequest(user); err != nil {
		return d.fail(ctx, userID, "matchme", err)
	}
	sports := user.SportNames()
	choices := make([]Choice, 0, len(sports))
	for _, sport := range sports {
		choices = append(choices, Choice{Label: sport, Token: NewToken(ActionSport, "s", sport)})
	}
	return d.send(ctx, userID, "Ready for your next game? Which sport are you looking to find a player for:", choices...)
}

// HandleChoice processes a button press carrying token.
func (d *Dispatcher) HandleChoice(ctx context.Context, userID int64, data string) error {
	token, err := ParseToken(data)
	if err != nil {
		return d.send(ctx, userID, msgInvalidChoice)
	}
	switch token.Action {
	case ActionSport:
		sport := token.Params["s"]
		if sport == "" {
			return d.send(ctx, userID, msgInvalidChoice)
		}
		text := fmt.Sprintf("Turn on Smart-Match for %s? If nobody fits your preferences within %s, we will match you with anyone looking for %s.",
			sport, humanDuration(d.svc.SmartMatchWait()), sport)
		return d.send(ctx, userID, text,
			Choice{Label: "Yes, use Smart-Match", Token: NewToken(ActionSmart, "s", sport, "on", "1")},
			Choice{Label: "No, only my preferences", Token: NewToken(ActionSmart, "s", sport, "on", "0")},
		)
	case ActionSmart:
		sport := token.Params["s"]
		if sport == "" {
			return d.send(ctx, userID, msgInvalidChoice)
		}
		if err := d.send(ctx, userID, fmt.Sprintf("Gotcha! Sportsfinding your player in %s...", sport)); err != nil {
			return err
		}
		if _, err := d.svc.RequestMatch(ctx, userID, sport, token.Bool("on")); err != nil {
			return d.fail(ctx, userID, "request_match", err)
		}
		return nil
	case ActionPlayed, ActionBotRating, ActionPartnerRating, ActionReason:
		return d.feedback(ctx, userID, token)
	default:
		return d.send(ctx, userID, msgInvalidChoice)
	}
}

// feedback records one answer and asks the next question of the flow.
func (d *Dispatcher) feedback(ctx context.Context, userID int64, token *Token) error {
	matchID, update, err := FeedbackFromToken(token)
	if err != nil {
		return d.fail(ctx, userID, "record_feedback", err)
	}
	if _, err := d.svc.RecordFeedback(ctx, matchID, userID, update); err != nil {
		return d.fail(ctx, userID, "record_feedback", err)
	}
	switch update.Field {
	case models.FeedbackGamePlayed:
		if *update.Played {
			return d.send(ctx, userID, "Great! How would you rate your experience with the bot?", RatingChoices(ActionBotRating, matchID)...)
		}
		return d.send(ctx, userID, "Sorry to hear that. What was the reason?", ReasonChoices(matchID)...)
	case models.FeedbackBotExperience:
		return d.send(ctx, userID, "How would you rate your experience with your partner?", RatingChoices(ActionPartnerRating, matchID)...)
	default:
		return d.send(ctx, userID, "Thank you for your feedback!")
	}
}

// HandleText relays plain messages between matched users.
func (d *Dispatcher) HandleText(ctx context.Context, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := d.svc.Relay(ctx, userID, text); err != nil {
		return d.fail(ctx, userID, "relay", err)
	}
	return nil
}

// fail answers err to the user. Unexpected errors are returned to the caller
// after the apology so the transport loop logs them.
func (d *Dispatcher) fail(ctx context.Context, userID int64, action string, err error) error {
	var pre *models.PreconditionError
	switch {
	case errors.As(err, &pre):
		return d.send(ctx, userID, pre.Error())
	case errors.Is(err, models.ErrNoActiveMatch):
		d.logger.Error(err, action, "user", userKey(userID), userID)
		return d.send(ctx, userID, msgNoActiveMatch)
	case errors.Is(err, models.ErrNotParticipant):
		return d.send(ctx, userID, msgNotParticipant)
	case errors.Is(err, models.ErrNotFound):
		d.logger.Error(err, action, "user", userKey(userID), userID)
		return d.send(ctx, userID, msgNotFound)
	case errors.Is(err, models.ErrValidation):
		return d.send(ctx, userID, msgInvalidChoice)
	}
	_ = d.send(ctx, userID, msgGenericFailure)
	return fmt.Errorf("%s: %w", action, err)
}

func (d *Dispatcher) send(ctx context.Context, userID int64, text string, choices ...Choice) error {
	if err := d.notifier.Notify(ctx, userID, text, choices...); err != nil {
		d.logger.Error(err, "notify", "user", userKey(userID), userID)
	}
	return nil
}
