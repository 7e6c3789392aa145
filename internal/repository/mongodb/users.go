package mongodb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

type UsersRepo struct {
	coll *mongo.Collection
}

func NewUsersRepo(coll *mongo.Collection) *UsersRepo {
	return &UsersRepo{coll: coll}
}

func (r *UsersRepo) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	raw, err := r.coll.FindOne(ctx, bson.M{"telegramId": telegramID}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

func (r *UsersRepo) Update(ctx context.Context, telegramID int64, patch models.UserPatch) error {
	if patch.Empty() {
		return nil
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"telegramId": telegramID}, userUpdate(patch))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) UpdateMany(ctx context.Context, telegramIDs []int64, patch models.UserPatch) error {
	if patch.Empty() || len(telegramIDs) == 0 {
		return nil
	}
	_, err := r.coll.UpdateMany(ctx, bson.M{"telegramId": bson.M{"$in": telegramIDs}}, userUpdate(patch))
	return err
}

func (r *UsersRepo) UpdateIf(ctx context.Context, telegramID int64, cond models.UserCondition, patch models.UserPatch) (bool, error) {
	if patch.Empty() {
		return false, fmt.Errorf("conditional update without fields: %w", models.ErrValidation)
	}
	res, err := r.coll.UpdateOne(ctx, conditionFilter(telegramID, cond), userUpdate(patch))
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (r *UsersRepo) ListSeeking(ctx context.Context, sport string, excludeID int64) ([]models.User, error) {
	filter := bson.M{
		"telegramId":      bson.M{"$ne": excludeID},
		"wantToBeMatched": true,
		"isMatched":       bson.M{"$ne": true},
		"selectedSport":   sport,
	}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []models.User
	for cur.Next(ctx) {
		u, err := decodeUser(cur.Current)
		if err != nil {
			continue
		}
		items = append(items, *u)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// conditionFilter selects the user only while it is in cond's state. Missing
// flags count as false, the way the profile app creates users.
func conditionFilter(telegramID int64, cond models.UserCondition) bson.M {
	seeking, matched := cond.Status.Flags()
	filter := bson.M{
		"telegramId":      telegramID,
		"wantToBeMatched": flagFilter(seeking),
		"isMatched":       flagFilter(matched),
	}
	if cond.Sport != "" {
		filter["selectedSport"] = cond.Sport
	}
	return filter
}

func flagFilter(v bool) any {
	if v {
		return true
	}
	return bson.M{"$ne": true}
}

func userUpdate(p models.UserPatch) bson.M {
	set := bson.M{}
	unset := bson.M{}
	if p.Status != nil {
		seeking, matched := p.Status.Flags()
		set["wantToBeMatched"] = seeking
		set["isMatched"] = matched
	}
	if p.SmartMatch != nil {
		set["smartMatch"] = *p.SmartMatch
	}
	if p.SelectedSport.Set {
		if p.SelectedSport.Value == nil {
			unset["selectedSport"] = ""
		} else {
			set["selectedSport"] = *p.SelectedSport.Value
		}
	}
	if p.SearchStartedAt.Set {
		if p.SearchStartedAt.Value == nil {
			unset["searchStartedAt"] = ""
		} else {
			set["searchStartedAt"] = p.SearchStartedAt.Value.UTC()
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// decodeUser reads a user document written by the profile web app. Field
// types are not enforced there, so every attribute is read tolerantly.
func decodeUser(raw bson.Raw) (*models.User, error) {
	idVal, err := raw.LookupErr("telegramId")
	if err != nil {
		return nil, fmt.Errorf("user document without telegramId: %w", models.ErrNotFound)
	}
	id, ok := asInt(idVal)
	if !ok {
		return nil, fmt.Errorf("user document telegramId %s: %w", idVal.Type, models.ErrValidation)
	}

	seeking := asBool(raw.Lookup("wantToBeMatched"))
	matched := asBool(raw.Lookup("isMatched"))
	status, conflict := models.StatusFromFlags(seeking, matched)

	age, _ := asInt(raw.Lookup("age"))
	u := &models.User{
		TelegramID:  id,
		Username:    asString(raw.Lookup("username")),
		DisplayName: asString(raw.Lookup("displayName")),
		Age:         int(age),
		Gender:      asString(raw.Lookup("gender")),
		Locations:   asStrings(raw.Lookup("location")),
		Sports:      asSports(raw.Lookup("sports")),
		Status:      status,
		SmartMatch:  asBool(raw.Lookup("smartMatch")),
	}
	u.ConflictingFlags = conflict != nil
	u.Preferences = models.ParsePreferences(preferencesJSON(raw.Lookup("matchPreferences")), u.Sports)

	if sport := asString(raw.Lookup("selectedSport")); sport != "" {
		u.SelectedSport = &sport
	}
	if v := raw.Lookup("searchStartedAt"); v.Type == bsontype.DateTime {
		t := v.Time().UTC()
		u.SearchStartedAt = &t
	}
	return u, nil
}

// preferencesJSON returns matchPreferences as JSON bytes, whether it was
// stored as a JSON string or as an embedded document.
func preferencesJSON(v bson.RawValue) []byte {
	switch v.Type {
	case bsontype.String:
		return []byte(v.StringValue())
	case bsontype.EmbeddedDocument:
		buf, err := bson.MarshalExtJSON(v.Document(), false, false)
		if err != nil {
			return nil
		}
		return buf
	case bsontype.Array:
		return []byte("[]")
	default:
		return nil
	}
}

func asInt(v bson.RawValue) (int64, bool) {
	switch v.Type {
	case bsontype.Int32:
		return int64(v.Int32()), true
	case bsontype.Int64:
		return v.Int64(), true
	case bsontype.Double:
		f := v.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	case bsontype.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.StringValue()), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asBool(v bson.RawValue) bool {
	switch v.Type {
	case bsontype.Boolean:
		return v.Boolean()
	case bsontype.String:
		b, _ := strconv.ParseBool(v.StringValue())
		return b
	default:
		return false
	}
}

func asString(v bson.RawValue) string {
	switch v.Type {
	case bsontype.String:
		return strings.TrimSpace(v.StringValue())
	case bsontype.Int32, bsontype.Int64, bsontype.Double:
		n, _ := asInt(v)
		return strconv.FormatInt(n, 10)
	default:
		return ""
	}
}

// asStrings accepts an array of strings or a comma separated string.
func asStrings(v bson.RawValue) []string {
	var out []string
	switch v.Type {
	case bsontype.String:
		for _, part := range strings.Split(v.StringValue(), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case bsontype.Array:
		values, err := v.Array().Values()
		if err != nil {
			return nil
		}
		for _, item := range values {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// asSports reads the sport to skill-level mapping. An array of names is
// accepted too, with empty skill levels.
func asSports(v bson.RawValue) map[string]string {
	out := map[string]string{}
	switch v.Type {
	case bsontype.EmbeddedDocument:
		elems, err := v.Document().Elements()
		if err != nil {
			return out
		}
		for _, el := range elems {
			out[el.Key()] = asString(el.Value())
		}
	case bsontype.Array:
		for _, name := range asStrings(v) {
			out[name] = ""
		}
	}
	return out
}
