package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	telegram_id        BIGINT PRIMARY KEY,
	username           TEXT NOT NULL DEFAULT '',
	display_name       TEXT NOT NULL DEFAULT '',
	age                INT NOT NULL DEFAULT 0,
	gender             TEXT NOT NULL DEFAULT '',
	locations          TEXT[] NOT NULL DEFAULT '{}',
	sports             JSONB NOT NULL DEFAULT '{}',
	match_preferences  JSONB,
	want_to_be_matched BOOLEAN NOT NULL DEFAULT FALSE,
	is_matched         BOOLEAN NOT NULL DEFAULT FALSE,
	smart_match        BOOLEAN NOT NULL DEFAULT FALSE,
	selected_sport     TEXT,
	search_started_at  TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (NOT (want_to_be_matched AND is_matched))
);

CREATE INDEX IF NOT EXISTS users_seeking_idx
	ON users (selected_sport, search_started_at)
	WHERE want_to_be_matched;

CREATE TABLE IF NOT EXISTS matches (
	id                    UUID PRIMARY KEY,
	user_a_id             BIGINT NOT NULL,
	user_b_id             BIGINT NOT NULL,
	user_a_username       TEXT NOT NULL DEFAULT '',
	user_b_username       TEXT NOT NULL DEFAULT '',
	sport                 TEXT NOT NULL,
	status                TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'ended')),
	used_relaxed_criteria BOOLEAN NOT NULL DEFAULT FALSE,
	game_played_a         TEXT,
	game_played_b         TEXT,
	bot_experience_a      INT CHECK (bot_experience_a BETWEEN 1 AND 5),
	bot_experience_b      INT CHECK (bot_experience_b BETWEEN 1 AND 5),
	user_experience_a     INT CHECK (user_experience_a BETWEEN 1 AND 5),
	user_experience_b     INT CHECK (user_experience_b BETWEEN 1 AND 5),
	no_game_reason_a      TEXT,
	no_game_reason_b      TEXT,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	ended_at              TIMESTAMPTZ,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS matches_user_a_idx ON matches (user_a_id, status);
CREATE INDEX IF NOT EXISTS matches_user_b_idx ON matches (user_b_id, status);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
