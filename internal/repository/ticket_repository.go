package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-routing/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// TicketFilter narrows ticket listings. Nil fields are not applied.
type TicketFilter struct {
	CreatedBy       *string
	AssignedTo      *string
	Unassigned      bool
	Statuses        []domain.TicketStatus
	ExcludeStatuses []domain.TicketStatus
	Priorities      []domain.TicketPriority
	IsRemoved       *bool
	Limit           int
	Offset          int
}

// DanglingAssignment is a ticket whose assignee no longer resolves to an agent.
type DanglingAssignment struct {
	TicketID   string
	AssignedTo string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes ticket only if its stored version still equals
	// ticket.Version, then bumps ticket.Version. A stale version returns
	// ErrVersionConflict.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// CountAssignedForCustomer counts tickets held by agentID and created by
	// customerID, ignoring excludeTicketID.
	CountAssignedForCustomer(ctx context.Context, agentID, customerID, excludeTicketID string) (int, error)
	ListDanglingAssignments(ctx context.Context) ([]DanglingAssignment, error)
	// ClearAssignee unassigns ticketID only while it is still assigned to
	// expected. It reports whether a row changed.
	ClearAssignee(ctx context.Context, ticketID, expected string, now time.Time) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, subject, description, category, subcategory, priority, status, assigned_to,
               is_removed, has_rating, created_by, created_at, last_updated, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (subject, description, category, subcategory, priority, status, assigned_to,
            is_removed, has_rating, created_by, created_at, last_updated, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1)
        RETURNING id, version`
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Subcategory,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.IsRemoved,
		ticket.HasRating,
		ticket.CreatedBy,
		ticket.CreatedAt,
		ticket.LastUpdated,
	).Scan(&ticket.ID, &ticket.Version)
	return mapError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, description=$2, priority=$3, status=$4, assigned_to=$5,
            is_removed=$6, has_rating=$7, last_updated=$8, version=version+1
        WHERE id=$9 AND version=$10
        RETURNING version`
	var version int64
	err := querier(ctx, r.pool).QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.IsRemoved,
		ticket.HasRating,
		ticket.LastUpdated,
		ticket.ID,
		ticket.Version,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrVersionConflict
		}
		return mapError(err)
	}
	ticket.Version = version
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(querier(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_to IS NULL")
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(&args, filter.Statuses)+")")
	}
	if len(filter.ExcludeStatuses) > 0 {
		clauses = append(clauses, "status NOT IN ("+placeholders(&args, filter.ExcludeStatuses)+")")
	}
	if len(filter.Priorities) > 0 {
		clauses = append(clauses, "priority IN ("+placeholders(&args, filter.Priorities)+")")
	}
	if filter.IsRemoved != nil {
		args = append(args, *filter.IsRemoved)
		clauses = append(clauses, fmt.Sprintf("is_removed=$%d", len(args)))
	}

	limit, offset := ClampPage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY last_updated DESC, id ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := querier(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, mapError(err)
		}
		result = append(result, *ticket)
	}
	return result, mapError(rows.Err())
}

func (r *ticketRepository) CountAssignedForCustomer(ctx context.Context, agentID, customerID, excludeTicketID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM tickets
        WHERE assigned_to=$1 AND created_by=$2 AND id<>$3`
	var count int
	if err := querier(ctx, r.pool).QueryRow(ctx, query, agentID, customerID, excludeTicketID).Scan(&count); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

func (r *ticketRepository) ListDanglingAssignments(ctx context.Context) ([]DanglingAssignment, error) {
	const query = `
        SELECT t.id, t.assigned_to
        FROM tickets t
        LEFT JOIN agents a ON a.id = t.assigned_to
        WHERE t.assigned_to IS NOT NULL AND a.id IS NULL
        ORDER BY t.id`
	rows, err := querier(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []DanglingAssignment
	for rows.Next() {
		var d DanglingAssignment
		if err := rows.Scan(&d.TicketID, &d.AssignedTo); err != nil {
			return nil, mapError(err)
		}
		result = append(result, d)
	}
	return result, mapError(rows.Err())
}

func (r *ticketRepository) ClearAssignee(ctx context.Context, ticketID, expected string, now time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET assigned_to=NULL, last_updated=$3, version=version+1
        WHERE id=$1 AND assigned_to=$2`
	cmd, err := querier(ctx, r.pool).Exec(ctx, query, ticketID, expected, now)
	if err != nil {
		return false, mapError(err)
	}
	return cmd.RowsAffected() > 0, nil
}

// ClampPage applies the listing defaults shared by every store.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func placeholders[T any](args *[]any, values []T) string {
	marks := make([]string, len(values))
	for i, v := range values {
		*args = append(*args, v)
		marks[i] = fmt.Sprintf("$%d", len(*args))
	}
	return strings.Join(marks, ",")
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.Subcategory,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.IsRemoved,
		&ticket.HasRating,
		&ticket.CreatedBy,
		&ticket.CreatedAt,
		&ticket.LastUpdated,
		&ticket.Version,
	); err != nil {
		return nil, mapError(err)
	}
	return &ticket, nil
}
