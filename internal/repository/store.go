// Package repository holds the pgx-backed stores for the roster, attendance
// and assessment tables. All SQL lives here; callers see model structs and
// apperr sentinels only.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutoria/server/internal/apperr"
	"tutoria/server/internal/metrics"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.pool.Ping(ctx)
	metrics.ObserveDBPing(time.Since(start))
	if err != nil {
		return fmt.Errorf("ping: %w", apperr.ErrUnavailable)
	}
	return nil
}

// wrapErr translates pgx failures into the shared taxonomy. Unknown errors
// pass through untouched so callers can still log the original cause.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperr.ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, apperr.ErrNotFound)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, apperr.ErrUnavailable)
	}
	return err
}

func exists(ctx context.Context, pool *pgxpool.Pool, query string, arg any) bool {
	var ok bool
	_ = pool.QueryRow(ctx, `SELECT EXISTS (`+query+`)`, arg).Scan(&ok)
	return ok
}
