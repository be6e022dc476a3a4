package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-routing/internal/domain"
)

// RatingRepository stores customer ratings. (ticket, user) is unique;
// a second insert returns ErrDuplicate.
type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) error
	GetByTicketAndUser(ctx context.Context, ticketID, userID string) (*domain.Rating, error)
	ListByAgent(ctx context.Context, agentID string) ([]domain.Rating, error)
}

type ratingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository builds a Postgres-backed rating store.
func NewRatingRepository(pool *pgxpool.Pool) RatingRepository {
	return &ratingRepository{pool: pool}
}

func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO ratings (ticket_id, user_id, agent_id, rating, feedback, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		rating.TicketID,
		rating.UserID,
		rating.AgentID,
		rating.Rating,
		rating.Feedback,
		rating.CreatedAt,
	).Scan(&rating.ID)
	return mapError(err)
}

func (r *ratingRepository) GetByTicketAndUser(ctx context.Context, ticketID, userID string) (*domain.Rating, error) {
	const query = `
        SELECT id, ticket_id, user_id, agent_id, rating, feedback, created_at
        FROM ratings WHERE ticket_id=$1 AND user_id=$2`
	var rating domain.Rating
	if err := querier(ctx, r.pool).QueryRow(ctx, query, ticketID, userID).Scan(
		&rating.ID,
		&rating.TicketID,
		&rating.UserID,
		&rating.AgentID,
		&rating.Rating,
		&rating.Feedback,
		&rating.CreatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &rating, nil
}

func (r *ratingRepository) ListByAgent(ctx context.Context, agentID string) ([]domain.Rating, error) {
	const query = `
        SELECT id, ticket_id, user_id, agent_id, rating, feedback, created_at
        FROM ratings WHERE agent_id=$1 ORDER BY created_at DESC, id ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, agentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(
			&rating.ID,
			&rating.TicketID,
			&rating.UserID,
			&rating.AgentID,
			&rating.Rating,
			&rating.Feedback,
			&rating.CreatedAt,
		); err != nil {
			return nil, mapError(err)
		}
		result = append(result, rating)
	}
	return result, mapError(rows.Err())
}
