package service

import (
	"strings"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

// Candidate is what an evaluator looks at when judging a potential partner.
type Candidate struct {
	Age       int
	Gender    string
	Skill     string
	Locations []string
}

// CandidateFrom describes u as a partner for sport. Locations are the places u
// is willing to play: the accepted locations for the sport, else the profile ones.
func CandidateFrom(u *models.User, sport string) Candidate {
	return Candidate{
		Age:       u.Age,
		Gender:    u.Gender,
		Skill:     u.Sports[sport],
		Locations: effectiveLocations(u, sport),
	}
}

// Accepts reports whether someone with preferences p accepts c as a partner.
func Accepts(p models.Preferences, c Candidate) bool {
	if !acceptsPerson(p, c) {
		return false
	}
	if len(p.Locations) == 0 {
		return true
	}
	return intersects(p.Locations, c.Locations)
}

// MutuallyAccept is the strict check: each side accepts the other's age,
// gender and skill, and their locations are compatible.
func MutuallyAccept(a, b *models.User, sport string) bool {
	if !acceptsPerson(a.Preferences[sport], CandidateFrom(b, sport)) {
		return false
	}
	if !acceptsPerson(b.Preferences[sport], CandidateFrom(a, sport)) {
		return false
	}
	return LocationsCompatible(a, b, sport)
}

// LocationsCompatible is a single symmetric check. It passes when neither side
// constrains locations; otherwise the places both are willing to play must overlap.
func LocationsCompatible(a, b *models.User, sport string) bool {
	pa, pb := a.Preferences[sport], b.Preferences[sport]
	if len(pa.Locations) == 0 && len(pb.Locations) == 0 {
		return true
	}
	return intersects(effectiveLocations(a, sport), effectiveLocations(b, sport))
}

func acceptsPerson(p models.Preferences, c Candidate) bool {
	if p.GenderConstrained() && !sameText(p.Gender, c.Gender) {
		return false
	}
	if p.AgeMin != nil && c.Age < *p.AgeMin {
		return false
	}
	if p.AgeMax != nil && c.Age > *p.AgeMax {
		return false
	}
	if len(p.SkillLevels) > 0 && !contains(p.SkillLevels, c.Skill) {
		return false
	}
	return true
}

func effectiveLocations(u *models.User, sport string) []string {
	if p, ok := u.Preferences[sport]; ok && len(p.Locations) > 0 {
		return p.Locations
	}
	return u.Locations
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if sameText(item, v) {
			return true
		}
	}
	return false
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CheckCanRequest validates the parts of a profile needed before any sport is chosen.
func CheckCanRequest(u *models.User) error {
	if u.Age <= 0 || strings.TrimSpace(u.Gender) == "" {
		return models.ErrProfileIncomplete
	}
	if len(u.Sports) == 0 {
		return models.ErrNoSports
	}
	for sport := range u.Sports {
		if _, ok := u.Preferences[sport]; !ok {
			return models.ErrPreferencesMissing
		}
	}
	if u.Status == models.UserStatusMatched {
		return models.ErrAlreadyMatched
	}
	return nil
}

// CheckEligible validates a match request for sport.
func CheckEligible(u *models.User, sport string) error {
	if err := CheckCanRequest(u); err != nil {
		return err
	}
	skill, ok := u.Sports[sport]
	if !ok {
		return models.ErrSportNotInProfile
	}
	if strings.TrimSpace(skill) == "" {
		return models.ErrProfileIncomplete
	}
	return nil
}
