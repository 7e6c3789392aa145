package service

import (
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Choice-token actions. Tokens look like "action|k=v|k=v".
const (
	ActionSport         = "sport"
	ActionSmart         = "smart"
	ActionPlayed        = "fb_played"
	ActionBotRating     = "fb_bot"
	ActionPartnerRating = "fb_partner"
	ActionReason        = "fb_reason"
)

type Token struct {
	Action string
	Params map[string]string
}

func NewToken(action string, kv ...string) string {
	t := Token{Action: action, Params: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		t.Params[kv[i]] = kv[i+1]
	}
	return t.String()
}

func (t Token) String() string {
	keys := make([]string, 0, len(t.Params))
	for k := range t.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(t.Action)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(url.QueryEscape(t.Params[k]))
	}
	return b.String()
}

func ParseToken(data string) (*Token, error) {
	parts := strings.Split(data, "|")
	if len(parts) == 0 || parts[0] == "" {
		return nil, errors.New("empty callback")
	}
	token := &Token{
		Action: parts[0],
		Params: map[string]string{},
	}
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		val, err := url.QueryUnescape(kv[1])
		if err != nil {
			continue
		}
		token.Params[kv[0]] = val
	}
	return token, nil
}

func (t *Token) Int(key string) (int, bool) {
	v, err := strconv.Atoi(t.Params[key])
	if err != nil {
		return 0, false
	}
	return v, true
}

func (t *Token) Bool(key string) bool {
	switch t.Params[key] {
	case "1", "yes", "true", "on":
		return true
	default:
		return false
	}
}
