package models

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates absence of a record.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates uniqueness or state conflict.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates business rule violation.
	ErrValidation = errors.New("validation error")
	// ErrPrecondition matches every PreconditionError.
	ErrPrecondition = errors.New("precondition failed")
	// ErrNoActiveMatch indicates that no active match record references the user.
	ErrNoActiveMatch = errors.New("no active match")
	// ErrNotParticipant indicates that a user acted on a match they are not part of.
	ErrNotParticipant = errors.New("not a participant of this match")
	// ErrInconsistentState indicates an impossible combination of stored status flags.
	ErrInconsistentState = errors.New("inconsistent user state")
)

// PreconditionError is a user-correctable failure. Its text is shown to the user as is.
type PreconditionError struct {
	Reason string
	kind   error
}

func (e *PreconditionError) Error() string { return e.Reason }

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition || (e.kind != nil && target == e.kind)
}

var (
	ErrProfileIncomplete  = &PreconditionError{Reason: "Please complete your profile first!"}
	ErrPreferencesMissing = &PreconditionError{Reason: "Please complete your match preferences first!"}
	ErrNoSports           = &PreconditionError{Reason: "You have not selected any sports in your profile!"}
	ErrSportNotInProfile  = &PreconditionError{Reason: "That sport is not in your profile. Add it in the web app first!"}
	ErrAlreadyMatched     = &PreconditionError{Reason: "You are already matched with someone!"}
	ErrNotMatched         = &PreconditionError{Reason: "You are not currently matched with anyone!", kind: ErrNoActiveMatch}
)

type UserStatus string

const (
	UserStatusIdle    UserStatus = "idle"
	UserStatusSeeking UserStatus = "seeking"
	UserStatusMatched UserStatus = "matched"
)

// StatusFromFlags maps the legacy isMatched/wantToBeMatched pair onto a status.
// Both flags set reads as matched together with ErrInconsistentState, so the
// user can still leave the state through /endmatch.
func StatusFromFlags(seeking, matched bool) (UserStatus, error) {
	switch {
	case seeking && matched:
		return UserStatusMatched, ErrInconsistentState
	case matched:
		return UserStatusMatched, nil
	case seeking:
		return UserStatusSeeking, nil
	default:
		return UserStatusIdle, nil
	}
}

// Flags returns the legacy wantToBeMatched and isMatched values for s.
func (s UserStatus) Flags() (seeking bool, matched bool) {
	switch s {
	case UserStatusSeeking:
		return true, false
	case UserStatusMatched:
		return false, true
	default:
		return false, false
	}
}

type User struct {
	TelegramID      int64                  `json:"telegram_id"`
	Username        string                 `json:"username"`
	DisplayName     string                 `json:"display_name"`
	Age             int                    `json:"age"`
	Gender          string                 `json:"gender"`
	Locations       []string               `json:"locations,omitempty"`
	Sports          map[string]string      `json:"sports,omitempty"`
	Preferences     map[string]Preferences `json:"preferences,omitempty"`
	Status          UserStatus             `json:"status"`
	SmartMatch      bool                   `json:"smart_match"`
	SelectedSport   *string                `json:"selected_sport,omitempty"`
	SearchStartedAt *time.Time             `json:"search_started_at,omitempty"`

	// ConflictingFlags is set when the stored record had both legacy flags on.
	ConflictingFlags bool `json:"-"`
}

// Name returns the name shown to other users.
func (u *User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Username != "":
		return u.Username
	default:
		return "Unknown"
	}
}

// SeekingFor reports whether u is searching for the given sport.
func (u *User) SeekingFor(sport string) bool {
	return u.Status == UserStatusSeeking && u.SelectedSport != nil && *u.SelectedSport == sport
}

// SportNames lists the sports from the profile in a stable order.
func (u *User) SportNames() []string {
	return sortedKeys(u.Sports)
}

type UserPatch struct {
	Status          *UserStatus
	SmartMatch      *bool
	SelectedSport   OptionalString
	SearchStartedAt OptionalTime
}

// Empty reports whether the patch sets nothing.
func (p UserPatch) Empty() bool {
	return p.Status == nil && p.SmartMatch == nil && !p.SelectedSport.Set && !p.SearchStartedAt.Set
}

// UserCondition guards a conditional user update. An empty Sport matches any sport.
type UserCondition struct {
	Status UserStatus
	Sport  string
}

// Holds reports whether u satisfies the condition.
func (c UserCondition) Holds(u *User) bool {
	if u.Status != c.Status {
		return false
	}
	if c.Sport == "" {
		return true
	}
	return u.SelectedSport != nil && *u.SelectedSport == c.Sport
}

// Apply writes the set fields of p into u.
func (p UserPatch) Apply(u *User) {
	if p.Status != nil {
		u.Status = *p.Status
		u.ConflictingFlags = false
	}
	if p.SmartMatch != nil {
		u.SmartMatch = *p.SmartMatch
	}
	if p.SelectedSport.Set {
		u.SelectedSport = p.SelectedSport.Value
	}
	if p.SearchStartedAt.Set {
		u.SearchStartedAt = p.SearchStartedAt.Value
	}
}

type MatchStatus string

const (
	MatchStatusActive MatchStatus = "active"
	MatchStatusEnded  MatchStatus = "ended"
)

// Side identifies a participant slot of a match record.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

type Feedback struct {
	GamePlayed     *bool   `json:"game_played,omitempty"`
	BotExperience  *int    `json:"bot_experience,omitempty"`
	UserExperience *int    `json:"user_experience,omitempty"`
	NoGameReason   *string `json:"no_game_reason,omitempty"`
}

type Match struct {
	ID                  string      `json:"id"`
	UserAID             int64       `json:"user_a_id"`
	UserBID             int64       `json:"user_b_id"`
	UserAUsername       string      `json:"user_a_username"`
	UserBUsername       string      `json:"user_b_username"`
	Sport               string      `json:"sport"`
	Status              MatchStatus `json:"status"`
	UsedRelaxedCriteria bool        `json:"used_relaxed_criteria"`
	FeedbackA           Feedback    `json:"feedback_a"`
	FeedbackB           Feedback    `json:"feedback_b"`
	CreatedAt           time.Time   `json:"created_at"`
	EndedAt             *time.Time  `json:"ended_at,omitempty"`
}

// SideOf returns the slot the user occupies in m.
func (m *Match) SideOf(userID int64) (Side, bool) {
	switch userID {
	case m.UserAID:
		return SideA, true
	case m.UserBID:
		return SideB, true
	default:
		return "", false
	}
}

// Partner returns the other participant's id.
func (m *Match) Partner(userID int64) int64 {
	if m.UserAID == userID {
		return m.UserBID
	}
	return m.UserAID
}

func (m *Match) Feedback(side Side) Feedback {
	if side == SideB {
		return m.FeedbackB
	}
	return m.FeedbackA
}

// FeedbackComplete reports whether both participants answered the game-played question.
func (m *Match) FeedbackComplete() bool {
	return m.FeedbackA.GamePlayed != nil && m.FeedbackB.GamePlayed != nil
}

type FeedbackField string

const (
	FeedbackGamePlayed     FeedbackField = "gamePlayed"
	FeedbackBotExperience  FeedbackField = "botExperience"
	FeedbackUserExperience FeedbackField = "userExperience"
	FeedbackNoGameReason   FeedbackField = "noGameReason"
)

// Column is the persisted field name, e.g. gamePlayedA.
func (f FeedbackField) Column(side Side) string {
	return string(f) + string(side)
}

// No-game reason codes offered after a "no" answer.
const (
	NoGameReasonNoShow      = "no_show"
	NoGameReasonSchedule    = "schedule"
	NoGameReasonWeather     = "weather"
	NoGameReasonChangedMind = "changed_mind"
	NoGameReasonOther       = "other"
)

var NoGameReasons = []string{
	NoGameReasonNoShow,
	NoGameReasonSchedule,
	NoGameReasonWeather,
	NoGameReasonChangedMind,
	NoGameReasonOther,
}

func ValidNoGameReason(code string) bool {
	for _, r := range NoGameReasons {
		if r == code {
			return true
		}
	}
	return false
}

// FeedbackUpdate writes exactly one feedback field for one side.
type FeedbackUpdate struct {
	Side   Side
	Field  FeedbackField
	Played *bool
	Rating *int
	Reason *string
}

// Validate checks that the value matching Field is present and in range.
func (u FeedbackUpdate) Validate() error {
	if u.Side != SideA && u.Side != SideB {
		return ErrValidation
	}
	switch u.Field {
	case FeedbackGamePlayed:
		if u.Played == nil {
			return ErrValidation
		}
	case FeedbackBotExperience, FeedbackUserExperience:
		if u.Rating == nil || *u.Rating < 1 || *u.Rating > 5 {
			return ErrValidation
		}
	case FeedbackNoGameReason:
		if u.Reason == nil || !ValidNoGameReason(*u.Reason) {
			return ErrValidation
		}
	default:
		return ErrValidation
	}
	return nil
}

// Value returns the value in its persisted shape: "yes"/"no", an int, or a string.
func (u FeedbackUpdate) Value() any {
	switch u.Field {
	case FeedbackGamePlayed:
		if u.Played != nil && *u.Played {
			return "yes"
		}
		return "no"
	case FeedbackBotExperience, FeedbackUserExperience:
		if u.Rating == nil {
			return nil
		}
		return *u.Rating
	default:
		if u.Reason == nil {
			return nil
		}
		return *u.Reason
	}
}

// Apply writes the update into m.
func (u FeedbackUpdate) Apply(m *Match) {
	fb := &m.FeedbackA
	if u.Side == SideB {
		fb = &m.FeedbackB
	}
	switch u.Field {
	case FeedbackGamePlayed:
		fb.GamePlayed = u.Played
	case FeedbackBotExperience:
		fb.BotExperience = u.Rating
	case FeedbackUserExperience:
		fb.UserExperience = u.Rating
	case FeedbackNoGameReason:
		fb.NoGameReason = u.Reason
	}
}

// SearchSession is a pending Smart-Match deadline.
type SearchSession struct {
	UserID   int64     `json:"user_id"`
	Sport    string    `json:"sport"`
	Deadline time.Time `json:"deadline"`
}

type OptionalString struct {
	Set   bool
	Value *string
}

func NewOptionalString(v *string) OptionalString {
	return OptionalString{Set: true, Value: v}
}

type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func NewOptionalTime(v *time.Time) OptionalTime {
	return OptionalTime{Set: true, Value: v}
}
