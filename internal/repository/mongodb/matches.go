package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

// matchDoc mirrors the Match collection shared with the profile web app.
type matchDoc struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	UserAID             int64              `bson:"userAId"`
	UserBID             int64              `bson:"userBId"`
	UserAUsername       string             `bson:"userAUsername"`
	UserBUsername       string             `bson:"userBUsername"`
	Sport               string             `bson:"sport"`
	Status              string             `bson:"status"`
	UsedRelaxedCriteria bool               `bson:"usedRelaxedCriteria"`
	GamePlayedA         *string            `bson:"gamePlayedA,omitempty"`
	GamePlayedB         *string            `bson:"gamePlayedB,omitempty"`
	BotExperienceA      *int               `bson:"botExperienceA,omitempty"`
	BotExperienceB      *int               `bson:"botExperienceB,omitempty"`
	UserExperienceA     *int               `bson:"userExperienceA,omitempty"`
	UserExperienceB     *int               `bson:"userExperienceB,omitempty"`
	NoGameReasonA       *string            `bson:"noGameReasonA,omitempty"`
	NoGameReasonB       *string            `bson:"noGameReasonB,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt"`
	EndedAt             *time.Time         `bson:"endedAt,omitempty"`
}

type MatchesRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMatchesRepo(coll *mongo.Collection) *MatchesRepo {
	return &MatchesRepo{coll: coll, now: time.Now}
}

// EnsureIndexes creates the participant lookups used by FindActiveByUser and
// ListEndedByUser.
func (r *MatchesRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userAId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "userBId", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}

func (r *MatchesRepo) Insert(ctx context.Context, match models.Match) (string, error) {
	doc := toMatchDoc(match)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now().UTC()
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", models.ErrConflict
		}
		return "", err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected match id type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

func (r *MatchesRepo) Get(ctx context.Context, id string) (*models.Match, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MatchesRepo) FindActiveByUser(ctx context.Context, telegramID int64) (*models.Match, error) {
	filter := bson.M{
		"$or":    bson.A{bson.M{"userAId": telegramID}, bson.M{"userBId": telegramID}},
		"status": string(models.MatchStatusActive),
	}
	return r.findOne(ctx, filter)
}

func (r *MatchesRepo) ListEndedByUser(ctx context.Context, telegramID int64, limit int) ([]models.Match, error) {
	filter := bson.M{
		"$or":    bson.A{bson.M{"userAId": telegramID}, bson.M{"userBId": telegramID}},
		"status": string(models.MatchStatusEnded),
	}
	opts := options.Find().SetSort(bson.D{{Key: "endedAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []models.Match
	for cur.Next(ctx) {
		var doc matchDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		items = append(items, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MatchesRepo) End(ctx context.Context, id string) (bool, error) {
	oid, err := objectID(id)
	if err != nil {
		return false, err
	}
	filter := bson.M{"_id": oid, "status": string(models.MatchStatusActive)}
	update := bson.M{"$set": bson.M{
		"status":  string(models.MatchStatusEnded),
		"endedAt": r.now().UTC(),
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, models.ErrNotFound
	}
	return false, nil
}

func (r *MatchesRepo) SetFeedback(ctx context.Context, id string, update models.FeedbackUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	set := bson.M{"$set": bson.M{update.Field.Column(update.Side): update.Value()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, set)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *MatchesRepo) findOne(ctx context.Context, filter any) (*models.Match, error) {
	var doc matchDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m := doc.toModel()
	return &m, nil
}

// objectID parses a match reference. A malformed id cannot name a match.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("match id %q: %w", id, models.ErrNotFound)
	}
	return oid, nil
}

func toMatchDoc(m models.Match) matchDoc {
	doc := matchDoc{
		UserAID:             m.UserAID,
		UserBID:             m.UserBID,
		UserAUsername:       m.UserAUsername,
		UserBUsername:       m.UserBUsername,
		Sport:               m.Sport,
		Status:              string(m.Status),
		UsedRelaxedCriteria: m.UsedRelaxedCriteria,
		GamePlayedA:         playedText(m.FeedbackA.GamePlayed),
		GamePlayedB:         playedText(m.FeedbackB.GamePlayed),
		BotExperienceA:      m.FeedbackA.BotExperience,
		BotExperienceB:      m.FeedbackB.BotExperience,
		UserExperienceA:     m.FeedbackA.UserExperience,
		UserExperienceB:     m.FeedbackB.UserExperience,
		NoGameReasonA:       m.FeedbackA.NoGameReason,
		NoGameReasonB:       m.FeedbackB.NoGameReason,
		CreatedAt:           m.CreatedAt.UTC(),
		EndedAt:             m.EndedAt,
	}
	if m.ID != "" {
		if oid, err := primitive.ObjectIDFromHex(m.ID); err == nil {
			doc.ID = oid
		}
	}
	if doc.Status == "" {
		doc.Status = string(models.MatchStatusActive)
	}
	return doc
}

func (d matchDoc) toModel() models.Match {
	m := models.Match{
		UserAID:             d.UserAID,
		UserBID:             d.UserBID,
		UserAUsername:       d.UserAUsername,
		UserBUsername:       d.UserBUsername,
		Sport:               d.Sport,
		Status:              models.MatchStatus(d.Status),
		UsedRelaxedCriteria: d.UsedRelaxedCriteria,
		FeedbackA: models.Feedback{
			GamePlayed:     playedValue(d.GamePlayedA),
			BotExperience:  d.BotExperienceA,
			UserExperience: d.UserExperienceA,
			NoGameReason:   d.NoGameReasonA,
		},
		FeedbackB: models.Feedback{
			GamePlayed:     playedValue(d.GamePlayedB),
			BotExperience:  d.BotExperienceB,
			UserExperience: d.UserExperienceB,
			NoGameReason:   d.NoGameReasonB,
		},
		CreatedAt: d.CreatedAt,
		EndedAt:   d.EndedAt,
	}
	if !d.ID.IsZero() {
		m.ID = d.ID.Hex()
	}
	return m
}

func playedText(v *bool) *string {
	if v == nil {
		return nil
	}
	s := "no"
	if *v {
		s = "yes"
	}
	return &s
}

func playedValue(s *string) *bool {
	if s == nil {
		return nil
	}
	return models.ParseGamePlayed(*s)
}
