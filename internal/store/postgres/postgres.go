package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"supermart/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS app_collections (
	name       TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	revision   BIGINT NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store keeps each named collection as one JSONB row.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, name string, dest any) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM app_collections WHERE name = $1`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(payload, dest)
}

// SaveAll upserts every document inside one serializable transaction.
func (s *Store) SaveAll(ctx context.Context, docs ...store.Document) error {
	if len(docs) == 0 {
		return nil
	}

	encoded := make([][]byte, len(docs))
	for i, doc := range docs {
		payload, err := json.Marshal(doc.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", doc.Name, err)
		}
		encoded[i] = payload
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, doc := range docs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO app_collections (name, payload, revision, updated_at)
			VALUES ($1, $2, 1, now())
			ON CONFLICT (name)
			DO UPDATE SET payload = EXCLUDED.payload,
			              revision = app_collections.revision + 1,
			              updated_at = now()
		`, doc.Name, encoded[i])
		if err != nil {
			return classify(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// Revision reports how many times a collection has been written.
func (s *Store) Revision(ctx context.Context, name string) (int64, error) {
	var revision int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM app_collections WHERE name = $1`, name).Scan(&revision)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return revision, nil
}

func classify(err error) error {
	if isSerializationFailure(err) {
		return fmt.Errorf("%w: concurrent collection write", store.ErrConflict)
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
