package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wireviz-web/internal/tokens"
)

const (
	tokensDDL = `CREATE TABLE IF NOT EXISTS api_tokens (
		token TEXT PRIMARY KEY,
		rate_limit INTEGER NOT NULL DEFAULT 60,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		comment TEXT
	);`
	tokensIndexDDL = `CREATE INDEX IF NOT EXISTS idx_api_tokens_created_at ON api_tokens (created_at);`
)

// VerifySchema makes sure the api_tokens table exists. It is the first
// statement that actually touches the database, so connectivity problems
// surface here.
func VerifySchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, tokensDDL); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, tokensIndexDDL); err != nil {
		return err
	}
	return nil
}

// TokenRepository reads the API token set from Postgres.
type TokenRepository struct {
	DB  *DB
	DSN string
}

func NewTokenRepository(db *DB, dsn string) *TokenRepository {
	return &TokenRepository{DB: db, DSN: dsn}
}

// LoadTokens returns all tokens with their rate limits.
func (r *TokenRepository) LoadTokens(ctx context.Context) (map[string]tokens.Entry, error) {
	db, err := r.DB.Get(r.DSN)
	if err != nil {
		return nil, err
	}
	if err := VerifySchema(db); err != nil {
		return nil, fmt.Errorf("token schema check failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `SELECT token, rate_limit FROM api_tokens;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]tokens.Entry)
	for rows.Next() {
		var tok string
		var limit int
		if err := rows.Scan(&tok, &limit); err != nil {
			return nil, err
		}
		out[tok] = tokens.Entry{RateLimit: limit}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
