package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-routing/internal/domain"
)

// ReplyRepository manages ticket thread replies.
type ReplyRepository interface {
	Create(ctx context.Context, reply *domain.Reply) error
	// ListByTicket returns replies oldest first. Internal notes are
	// omitted unless includeInternal is set.
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Reply, error)
}

type replyRepository struct {
	pool *pgxpool.Pool
}

// NewReplyRepository builds a Postgres-backed reply store.
func NewReplyRepository(pool *pgxpool.Pool) ReplyRepository {
	return &replyRepository{pool: pool}
}

func (r *replyRepository) Create(ctx context.Context, reply *domain.Reply) error {
	const query = `
        INSERT INTO replies (ticket_id, author_id, sender, is_internal, message, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		reply.TicketID,
		reply.AuthorID,
		reply.Sender,
		reply.IsInternal,
		reply.Message,
		reply.CreatedAt,
	).Scan(&reply.ID)
	return mapError(err)
}

func (r *replyRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Reply, error) {
	const query = `
        SELECT id, ticket_id, author_id, sender, is_internal, message, created_at
        FROM replies
        WHERE ticket_id=$1 AND ($2 OR is_internal = FALSE)
        ORDER BY created_at ASC, id ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, ticketID, includeInternal)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Reply
	for rows.Next() {
		var reply domain.Reply
		if err := rows.Scan(
			&reply.ID,
			&reply.TicketID,
			&reply.AuthorID,
			&reply.Sender,
			&reply.IsInternal,
			&reply.Message,
			&reply.CreatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		result = append(result, reply)
	}
	return result, mapError(rows.Err())
}
