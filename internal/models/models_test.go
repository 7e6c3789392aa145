package models

import (
	"errors"
	"testing"
)

func TestStatusFromFlags(t *testing.T) {
	cases := []struct {
		seeking, matched bool
		want             UserStatus
	}{
		{false, false, UserStatusIdle},
		{true, false, UserStatusSeeking},
		{false, true, UserStatusMatched},
	}
	for _, tc := range cases {
		got, err := StatusFromFlags(tc.seeking, tc.matched)
		if err != nil || got != tc.want {
			t.Fatalf("flags %v/%v: expected %s, got %s %v", tc.seeking, tc.matched, tc.want, got, err)
		}
		seeking, matched := got.Flags()
		if seeking != tc.seeking || matched != tc.matched {
			t.Fatalf("%s: flags do not round-trip", got)
		}
	}
	got, err := StatusFromFlags(true, true)
	if got != UserStatusMatched || !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected matched with ErrInconsistentState, got %s %v", got, err)
	}
}

func TestPreconditionError_Is(t *testing.T) {
	if !errors.Is(ErrNotMatched, ErrPrecondition) || !errors.Is(ErrNotMatched, ErrNoActiveMatch) {
		t.Fatalf("expected ErrNotMatched to be a precondition and a missing match")
	}
	if errors.Is(ErrAlreadyMatched, ErrNoActiveMatch) {
		t.Fatalf("expected ErrAlreadyMatched not to be a missing match")
	}
	var pre *PreconditionError
	if !errors.As(ErrNoSports, &pre) || pre.Error() != ErrNoSports.Reason {
		t.Fatalf("expected errors.As to expose the reason")
	}
}

func TestUserCondition_Holds(t *testing.T) {
	sport := "tennis"
	u := &User{Status: UserStatusSeeking, SelectedSport: &sport}
	if !(UserCondition{Status: UserStatusSeeking}).Holds(u) {
		t.Fatalf("expected any-sport condition to hold")
	}
	if !(UserCondition{Status: UserStatusSeeking, Sport: "tennis"}).Holds(u) {
		t.Fatalf("expected sport condition to hold")
	}
	if (UserCondition{Status: UserStatusSeeking, Sport: "padel"}).Holds(u) {
		t.Fatalf("expected other sport to fail")
	}
	if (UserCondition{Status: UserStatusIdle}).Holds(u) {
		t.Fatalf("expected other status to fail")
	}
}

func TestUserPatch_Apply(t *testing.T) {
	sport := "tennis"
	u := &User{Status: UserStatusMatched, SmartMatch: true, SelectedSport: &sport, ConflictingFlags: true}
	idle := UserStatusIdle
	UserPatch{Status: &idle, SelectedSport: NewOptionalString(nil)}.Apply(u)
	if u.Status != UserStatusIdle || u.SelectedSport != nil || !u.SmartMatch || u.ConflictingFlags {
		t.Fatalf("unexpected user after patch: %+v", u)
	}
	if !(UserPatch{}).Empty() || (UserPatch{SearchStartedAt: NewOptionalTime(nil)}).Empty() {
		t.Fatalf("unexpected Empty result")
	}
}

func TestFeedbackUpdate_Validate(t *testing.T) {
	yes := true
	three, zero := 3, 0
	weather, bored := NoGameReasonWeather, "bored"
	cases := []struct {
		name   string
		update FeedbackUpdate
		ok     bool
	}{
		{"played", FeedbackUpdate{Side: SideA, Field: FeedbackGamePlayed, Played: &yes}, true},
		{"played missing", FeedbackUpdate{Side: SideA, Field: FeedbackGamePlayed}, false},
		{"rating", FeedbackUpdate{Side: SideB, Field: FeedbackBotExperience, Rating: &three}, true},
		{"rating out of range", FeedbackUpdate{Side: SideB, Field: FeedbackUserExperience, Rating: &zero}, false},
		{"reason", FeedbackUpdate{Side: SideA, Field: FeedbackNoGameReason, Reason: &weather}, true},
		{"unknown reason", FeedbackUpdate{Side: SideA, Field: FeedbackNoGameReason, Reason: &bored}, false},
		{"no side", FeedbackUpdate{Field: FeedbackGamePlayed, Played: &yes}, false},
		{"unknown field", FeedbackUpdate{Side: SideA, Field: "mood", Played: &yes}, false},
	}
	for _, tc := range cases {
		err := tc.update.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestFeedbackUpdate_ValueAndApply(t *testing.T) {
	no := false
	four := 4
	m := &Match{UserAID: 1, UserBID: 2}

	played := FeedbackUpdate{Side: SideB, Field: FeedbackGamePlayed, Played: &no}
	if played.Value() != "no" {
		t.Fatalf("expected \"no\", got %v", played.Value())
	}
	played.Apply(m)
	rating := FeedbackUpdate{Side: SideA, Field: FeedbackBotExperience, Rating: &four}
	if rating.Value() != 4 {
		t.Fatalf("expected 4, got %v", rating.Value())
	}
	rating.Apply(m)

	if m.FeedbackB.GamePlayed == nil || *m.FeedbackB.GamePlayed || m.FeedbackA.GamePlayed != nil {
		t.Fatalf("unexpected played answers %+v %+v", m.FeedbackA, m.FeedbackB)
	}
	if m.FeedbackA.BotExperience == nil || *m.FeedbackA.BotExperience != 4 {
		t.Fatalf("unexpected rating %+v", m.FeedbackA)
	}
	if m.FeedbackComplete() {
		t.Fatalf("expected incomplete feedback")
	}
	if FeedbackGamePlayed.Column(SideB) != "gamePlayedB" {
		t.Fatalf("unexpected column %q", FeedbackGamePlayed.Column(SideB))
	}
}

func TestMatch_SideOfAndPartner(t *testing.T) {
	m := &Match{UserAID: 10, UserBID: 20}
	if side, ok := m.SideOf(20); !ok || side != SideB {
		t.Fatalf("expected side B, got %q %v", side, ok)
	}
	if _, ok := m.SideOf(30); ok {
		t.Fatalf("expected outsider to have no side")
	}
	if m.Partner(10) != 20 || m.Partner(20) != 10 {
		t.Fatalf("unexpected partners")
	}
}

func TestUser_Name(t *testing.T) {
	if (&User{DisplayName: "Ann", Username: "ann_k"}).Name() != "Ann" {
		t.Fatalf("expected display name first")
	}
	if (&User{Username: "ann_k"}).Name() != "ann_k" {
		t.Fatalf("expected username fallback")
	}
	if (&User{}).Name() != "Unknown" {
		t.Fatalf("expected Unknown fallback")
	}
}
