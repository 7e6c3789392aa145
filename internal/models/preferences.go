package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Preferences describes whom a user accepts as a partner for one sport.
// A nil bound or an empty set means "no constraint".
type Preferences struct {
	AgeMin      *int     `json:"age_min,omitempty"`
	AgeMax      *int     `json:"age_max,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	SkillLevels []string `json:"skill_levels,omitempty"`
	Locations   []string `json:"locations,omitempty"`
}

// GenderConstrained reports whether the gender preference restricts anything.
func (p Preferences) GenderConstrained() bool {
	switch strings.ToLower(strings.TrimSpace(p.Gender)) {
	case "", "any", "either", "no preference", "no_preference", "none", "all":
		return false
	default:
		return true
	}
}

// ParsePreferences decodes the stored matchPreferences blob.
//
// The blob is an object keyed by sport, optionally double-encoded as a JSON
// string. Unknown or malformed fields fall back to "no constraint". When the
// blob is present but not an object at all, every sport of the profile gets
// unconstrained preferences. An empty blob yields an empty map.
func ParsePreferences(raw []byte, sports map[string]string) map[string]Preferences {
	raw = unwrapString(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]Preferences{}
	}
	var bySport map[string]json.RawMessage
	if err := json.Unmarshal(raw, &bySport); err != nil {
		out := make(map[string]Preferences, len(sports))
		for sport := range sports {
			out[sport] = Preferences{}
		}
		return out
	}
	out := make(map[string]Preferences, len(bySport))
	for sport, entry := range bySport {
		out[sport] = parsePreference(entry)
	}
	return out
}

func parsePreference(raw json.RawMessage) Preferences {
	raw = unwrapString(raw)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Preferences{}
	}
	var pref Preferences
	if v, ok := lookup(fields, "ageRange", "age_range", "age"); ok {
		pref.AgeMin, pref.AgeMax = parseAgeRange(v)
	}
	if v, ok := lookup(fields, "ageMin", "minAge", "age_min"); ok {
		pref.AgeMin = parseInt(v)
	}
	if v, ok := lookup(fields, "ageMax", "maxAge", "age_max"); ok {
		pref.AgeMax = parseInt(v)
	}
	if pref.AgeMin != nil && pref.AgeMax != nil && *pref.AgeMin > *pref.AgeMax {
		pref.AgeMin, pref.AgeMax = nil, nil
	}
	if v, ok := lookup(fields, "gender", "genderPreference"); ok {
		var s string
		if json.Unmarshal(v, &s) == nil {
			pref.Gender = strings.TrimSpace(s)
		}
	}
	if v, ok := lookup(fields, "skillLevels", "skillLevel", "skill", "skills"); ok {
		pref.SkillLevels = parseStrings(v)
	}
	if v, ok := lookup(fields, "locations", "location"); ok {
		pref.Locations = parseStrings(v)
	}
	return pref
}

func lookup(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && len(v) > 0 && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func parseAgeRange(raw json.RawMessage) (*int, *int) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err == nil {
		if len(pair) != 2 {
			return nil, nil
		}
		return parseInt(pair[0]), parseInt(pair[1])
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		var lo, hi *int
		if v, ok := lookup(obj, "min", "from", "low"); ok {
			lo = parseInt(v)
		}
		if v, ok := lookup(obj, "max", "to", "high"); ok {
			hi = parseInt(v)
		}
		return lo, hi
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parts := strings.Split(s, "-")
		if len(parts) == 2 {
			return atoi(parts[0]), atoi(parts[1])
		}
	}
	return nil, nil
}

func parseInt(raw json.RawMessage) *int {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		v := int(f)
		return &v
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return atoi(s)
	}
	return nil
}

func atoi(s string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &v
}

func parseStrings(raw json.RawMessage) []string {
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = appendTrimmed(out, s)
			}
		}
		return out
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var out []string
		for _, part := range strings.Split(s, ",") {
			out = appendTrimmed(out, part)
		}
		return out
	}
	return nil
}

func appendTrimmed(dst []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return dst
	}
	return append(dst, s)
}

// unwrapString strips one level of JSON string encoding, if present.
func unwrapString(raw []byte) []byte {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, `"`) {
		return []byte(trimmed)
	}
	var inner string
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
		return nil
	}
	return []byte(strings.TrimSpace(inner))
}

// ParseGamePlayed reads a stored gamePlayed value: "yes"/"no", a bool, or absent.
func ParseGamePlayed(v any) *bool {
	var out bool
	switch t := v.(type) {
	case bool:
		out = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true":
			out = true
		case "no", "n", "false":
			out = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
