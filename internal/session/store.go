// Package session persists pending Smart-Match deadlines so a restarted bot
// can re-arm them.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/models"
)

const keyPrefix = "sportsfinder:smartmatch:"

// Store keeps one JSON document per user under keyPrefix, expiring shortly
// after its deadline.
type Store struct {
	client redis.Cmdable
	grace  time.Duration
}

func NewStore(client redis.Cmdable) *Store {
	return &Store{client: client, grace: time.Minute}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

type persistedSession struct {
	UserID   int64     `json:"userId"`
	Sport    string    `json:"sport"`
	Deadline time.Time `json:"deadline"`
}

func (s *Store) Save(ctx context.Context, session models.SearchSession, ttl time.Duration) error {
	buf, err := json.Marshal(persistedSession(session))
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, Key(session.UserID), buf, ttl+s.grace).Err()
}

func (s *Store) Delete(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, Key(userID)).Err()
}

// List returns every stored session. Unreadable entries are skipped.
func (s *Store) List(ctx context.Context) ([]models.SearchSession, error) {
	var items []models.SearchSession
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		session, ok := decode(iter.Val(), raw)
		if !ok {
			continue
		}
		items = append(items, session)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func Key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func decode(key string, raw []byte) (models.SearchSession, bool) {
	var p persistedSession
	if err := json.Unmarshal(raw, &p); err != nil || p.Sport == "" {
		return models.SearchSession{}, false
	}
	if p.UserID == 0 {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, keyPrefix), 10, 64)
		if err != nil {
			return models.SearchSession{}, false
		}
		p.UserID = id
	}
	return models.SearchSession(p), true
}

// NopStore is used when no Redis is configured. Deadlines then live only in
// process memory.
type NopStore struct{}

func (NopStore) Save(context.Context, models.SearchSession, time.Duration) error { return nil }
func (NopStore) Delete(context.Context, int64) error                             { return nil }
func (NopStore) List(context.Context) ([]models.SearchSession, error)            { return nil, nil }
