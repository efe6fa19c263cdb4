package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS imported_conversations (
	conversation_id TEXT PRIMARY KEY,
	imported_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres keeps the ledger in a table so several machines can share it.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create ledger table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Load(ctx context.Context) (map[string]bool, error) {
	rows, err := p.pool.Query(ctx, `SELECT conversation_id FROM imported_conversations`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func (p *Postgres) Record(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO imported_conversations (conversation_id) VALUES ($1) ON CONFLICT (conversation_id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
