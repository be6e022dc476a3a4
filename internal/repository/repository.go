package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors returned by every store implementation.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record changed since it was read")
	ErrDuplicate       = errors.New("record already exists")
)

const (
	uniqueViolation      = "23505"
	invalidTextRepresent = "22P02"
)

// Querier is the subset of pgx shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs fn inside one store transaction. Repositories called with
// the ctx passed to fn join that transaction. Nested calls reuse the outer
// transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories bundles every store the services need.
type Repositories struct {
	Tickets   TicketRepository
	Agents    AgentRepository
	Customers CustomerRepository
	Replies   ReplyRepository
	Ratings   RatingRepository
	History   TicketHistoryRepository
	Tx        TxManager
}

// NewPostgres wires the Postgres implementations around pool.
func NewPostgres(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Tickets:   NewTicketRepository(pool),
		Agents:    NewAgentRepository(pool),
		Customers: NewCustomerRepository(pool),
		Replies:   NewReplyRepository(pool),
		Ratings:   NewRatingRepository(pool),
		History:   NewTicketHistoryRepository(pool),
		Tx:        NewTxManager(pool),
	}
}

type txKey struct{}

type pgTxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager backed by pool.
func NewTxManager(pool *pgxpool.Pool) TxManager {
	return &pgTxManager{pool: pool}
}

func (m *pgTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// querier returns the transaction carried by ctx, or pool.
func querier(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrDuplicate
		case invalidTextRepresent:
			// malformed uuid in a lookup
			return ErrNotFound
		}
	}
	return err
}
