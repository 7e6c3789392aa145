package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository/memory"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository/mongodb"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/repository/pg"
	"github.com/Barbaracwx/test-telegram-sportsfinder/internal/session"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	defaultWebAppURL      = "https://webapp-sportsfinder.vercel.app/"
	defaultSmartMatchWait = time.Hour
)

type Settings struct {
	BotToken        string
	StoreDriver     string
	DatabaseURL     string
	MongoDatabase   string
	UsersCollection string
	MatchCollection string
	SmartMatchWait  time.Duration
	WebAppURL       string
	RedisAddr       string
	RedisPassword   string
	LogMode         string
	Debug           bool
}

// Stores bundles the repositories selected by STORE_DRIVER.
type Stores struct {
	Users    repository.UsersRepository
	Matches  repository.MatchesRepository
	Sessions repository.SessionsRepository
	closers  []func()
}

func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// LoadSettings reads the environment, including a .env file when present.
func LoadSettings() (*Settings, error) {
	_ = godotenv.Load()

	set := &Settings{
		BotToken:        env("BOT_TOKEN", ""),
		StoreDriver:     strings.ToLower(env("STORE_DRIVER", DriverMongo)),
		DatabaseURL:     env("DATABASE_URL", ""),
		MongoDatabase:   env("MONGO_DATABASE", "test_database"),
		UsersCollection: env("MONGO_USERS_COLLECTION", "User"),
		MatchCollection: env("MONGO_MATCHES_COLLECTION", "Match"),
		WebAppURL:       env("WEBAPP_URL", defaultWebAppURL),
		RedisAddr:       env("REDIS_ADDR", ""),
		RedisPassword:   env("REDIS_PASSWORD", ""),
		LogMode:         env("LOG_MODE", "prod"),
		Debug:           os.Getenv("DEBUG") == "1",
		SmartMatchWait:  defaultSmartMatchWait,
	}
	if set.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}

	switch set.StoreDriver {
	case DriverMongo, DriverPostgres:
		if set.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", set.StoreDriver)
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", set.StoreDriver)
	}

	if raw := env("SMART_MATCH_WAIT", ""); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse SMART_MATCH_WAIT: %w", err)
		}
		if wait <= 0 {
			return nil, fmt.Errorf("SMART_MATCH_WAIT must be positive, got %s", raw)
		}
		set.SmartMatchWait = wait
	}
	return set, nil
}

// Load reads the settings and opens the configured stores.
func Load(ctx context.Context) (*Settings, *Stores, error) {
	set, err := LoadSettings()
	if err != nil {
		return nil, nil, err
	}
	stores, err := OpenStores(ctx, set)
	if err != nil {
		return nil, nil, err
	}
	return set, stores, nil
}

func OpenStores(ctx context.Context, set *Settings) (*Stores, error) {
	stores := &Stores{}
	switch set.StoreDriver {
	case DriverMongo:
		st, err := mongodb.Connect(ctx, set.DatabaseURL, set.MongoDatabase, set.UsersCollection, set.MatchCollection)
		if err != nil {
			return nil, err
		}
		if err := st.Matches.EnsureIndexes(ctx); err != nil {
			_ = st.Close(context.Background())
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		stores.Users, stores.Matches = st.Users, st.Matches
		stores.closers = append(stores.closers, func() { _ = st.Close(context.Background()) })
	case DriverPostgres:
		pool, err := openPool(ctx, set.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		stores.Users, stores.Matches = pg.NewUsersRepo(pool), pg.NewMatchesRepo(pool)
		stores.closers = append(stores.closers, pool.Close)
	default:
		mem := memory.NewStore()
		stores.Users, stores.Matches = mem.Users(), mem.Matches()
	}

	stores.Sessions = session.NopStore{}
	if set.RedisAddr != "" {
		client, err := session.Dial(ctx, set.RedisAddr, set.RedisPassword)
		if err != nil {
			stores.Close()
			return nil, err
		}
		stores.Sessions = session.NewStore(client)
		stores.closers = append(stores.closers, func() { _ = client.Close() })
	}
	return stores, nil
}

func openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return pool, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
