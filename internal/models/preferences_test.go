package models

import (
	"reflect"
	"testing"
)

func TestParsePreferences_Object(t *testing.T) {
	raw := []byte(`{
		"tennis": {"ageRange": [20, 30], "gender": "Female", "skillLevels": ["beginner", " intermediate "], "locations": "park1, park2"},
		"padel": {"ageMin": "25", "maxAge": 40, "location": ["club"]}
	}`)
	got := ParsePreferences(raw, nil)

	tennis := got["tennis"]
	if tennis.AgeMin == nil || *tennis.AgeMin != 20 || tennis.AgeMax == nil || *tennis.AgeMax != 30 {
		t.Fatalf("unexpected tennis age range %+v", tennis)
	}
	if tennis.Gender != "Female" || !tennis.GenderConstrained() {
		t.Fatalf("unexpected gender %q", tennis.Gender)
	}
	if !reflect.DeepEqual(tennis.SkillLevels, []string{"beginner", "intermediate"}) {
		t.Fatalf("unexpected skills %v", tennis.SkillLevels)
	}
	if !reflect.DeepEqual(tennis.Locations, []string{"park1", "park2"}) {
		t.Fatalf("unexpected locations %v", tennis.Locations)
	}

	padel := got["padel"]
	if padel.AgeMin == nil || *padel.AgeMin != 25 || padel.AgeMax == nil || *padel.AgeMax != 40 {
		t.Fatalf("unexpected padel ages %+v", padel)
	}
	if !reflect.DeepEqual(padel.Locations, []string{"club"}) {
		t.Fatalf("unexpected padel locations %v", padel.Locations)
	}
}

func TestParsePreferences_DoubleEncoded(t *testing.T) {
	raw := []byte(`"{\"tennis\":{\"ageRange\":\"18-25\"}}"`)
	got := ParsePreferences(raw, nil)
	p, ok := got["tennis"]
	if !ok || p.AgeMin == nil || *p.AgeMin != 18 || p.AgeMax == nil || *p.AgeMax != 25 {
		t.Fatalf("unexpected preferences %+v", got)
	}
}

func TestParsePreferences_MalformedFallsBack(t *testing.T) {
	sports := map[string]string{"tennis": "beginner", "golf": "advanced"}

	got := ParsePreferences([]byte(`[1,2,3]`), sports)
	if len(got) != 2 {
		t.Fatalf("expected unconstrained preferences per sport, got %+v", got)
	}
	for sport, p := range got {
		if !reflect.DeepEqual(p, Preferences{}) {
			t.Fatalf("%s: expected no constraints, got %+v", sport, p)
		}
	}

	if got := ParsePreferences(nil, sports); len(got) != 0 {
		t.Fatalf("expected empty map for missing blob, got %+v", got)
	}
	if got := ParsePreferences([]byte("null"), sports); len(got) != 0 {
		t.Fatalf("expected empty map for null, got %+v", got)
	}
}

func TestParsePreferences_BadFieldsAreUnconstrained(t *testing.T) {
	raw := []byte(`{"tennis": {"ageRange": [30, 20], "gender": 7, "skillLevels": {"x": 1}}, "golf": "oops"}`)
	got := ParsePreferences(raw, nil)
	if !reflect.DeepEqual(got["tennis"], Preferences{}) {
		t.Fatalf("expected tennis unconstrained, got %+v", got["tennis"])
	}
	if _, ok := got["golf"]; !ok {
		t.Fatalf("expected golf entry to be kept")
	}
}

func TestParseGamePlayed(t *testing.T) {
	cases := []struct {
		in   any
		want *bool
	}{
		{"yes", boolRef(true)},
		{" No ", boolRef(false)},
		{true, boolRef(true)},
		{"maybe", nil},
		{nil, nil},
		{1, nil},
	}
	for _, tc := range cases {
		got := ParseGamePlayed(tc.in)
		if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
			t.Fatalf("%v: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func boolRef(v bool) *bool { return &v }
