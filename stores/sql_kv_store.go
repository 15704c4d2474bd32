package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/squealx"

	tenancy "github.com/prashantrr143/bhoomi-tenancy"
)

// SQLKV implements session persistence in SQL (squealx).
type SQLKV struct {
	db *squealx.DB
}

func NewSQLKV(db *squealx.DB) *SQLKV {
	return &SQLKV{db: db}
}

func (s *SQLKV) Get(ctx context.Context, key string) (string, error) {
	q := `SELECT value FROM session_kv WHERE key = :key`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"key": key})
	if err != nil {
		return "", err
	}
	defer r.Close()
	if !r.Next() {
		return "", fmt.Errorf("%s: %w", key, tenancy.ErrKeyNotFound)
	}
	var value string
	if err := r.Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLKV) Set(ctx context.Context, key, value string) error {
	q := `INSERT INTO session_kv(key, value) VALUES(:key, :value)
	      ON CONFLICT(key) DO UPDATE SET value=excluded.value`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"key": key, "value": value})
	return err
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	q := `DELETE FROM session_kv WHERE key = :key`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"key": key})
	return err
}
