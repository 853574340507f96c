package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"resourcehive/internal/common"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

var pgxNoRows = pgx.ErrNoRows

// notFound maps pgx.ErrNoRows onto a NOT_FOUND error for resource
func notFound(err error, resource string, id interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.NotFound(resource, id)
	}
	return err
}

func defaultLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
