package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"resourcehive/internal/common"
	"resourcehive/internal/repositories"
)

// SQLSTATEs a caller may retry
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
)

// Beginner is satisfied by *pgxpool.Pool and pgxmock pools
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type postgresStore struct {
	db          Beginner
	lockTimeout time.Duration
}

// NewPostgres returns a Store whose transactions give up waiting for row
// locks after lockTimeout. Zero leaves the server default.
func NewPostgres(db Beginner, lockTimeout time.Duration) Store {
	return &postgresStore{db: db, lockTimeout: lockTimeout}
}

func newRepoSet(q repositories.Querier) *repoSet {
	return &repoSet{
		users:         repositories.NewUserRepo(q),
		items:         repositories.NewItemRepo(q),
		stock:         repositories.NewStockRepo(q),
		batches:       repositories.NewBatchRepo(q),
		requestItems:  repositories.NewRequestItemRepo(q),
		notifications: repositories.NewNotificationRepo(q),
		permissions:   repositories.NewPermissionRepo(q),
		activity:      repositories.NewActivityRepo(q),
	}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return classify("set lock timeout", err)
		}
	}

	if err = fn(ctx, newRepoSet(tx)); err != nil {
		return classify("run transaction", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// classify keeps AppErrors, turns lock failures into RETRYABLE and anything else into INTERNAL
func classify(op string, err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
			return common.Retryable(err)
		}
	}
	return common.Internal(op, err)
}
