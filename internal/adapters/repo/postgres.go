package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-movie-bot/internal/infra/metrics"
)

const stateSchema = `
CREATE TABLE IF NOT EXISTS bot_state (
	name       TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresState хранит именованную запись состояния бота в таблице bot_state.
type PostgresState struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresState создаёт адаптер БД для записи с указанным именем.
func NewPostgresState(pool *pgxpool.Pool, name string) *PostgresState {
	return &PostgresState{pool: pool, name: name}
}

func (p *PostgresState) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицу состояния, если её ещё нет.
func (p *PostgresState) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, stateSchema)
	metrics.ObserveNetworkRequest("postgres", "bot_state_schema", "bot_state", start, err)
	if err != nil {
		return fmt.Errorf("создание таблицы bot_state: %w", err)
	}
	return nil
}

// Read возвращает сохранённое состояние или nil, если записи нет.
func (p *PostgresState) Read(ctx context.Context) ([]byte, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var payload []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT payload::text FROM bot_state WHERE name=$1`, p.name).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "bot_state_read", "bot_state", start, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("postgres", "bot_state_read", "bot_state", start, err)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Write сохраняет состояние целиком.
func (p *PostgresState) Write(ctx context.Context, payload []byte) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO bot_state (name, payload, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (name) DO UPDATE SET payload=EXCLUDED.payload, updated_at=now()
`, p.name, string(payload))
	metrics.ObserveNetworkRequest("postgres", "bot_state_write", "bot_state", start, err)
	return err
}
