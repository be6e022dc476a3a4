// Package memory is an in-process implementation of the repository
// interfaces. It backs the test suites and DSN-less development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/repository"
)

// Store holds every record in maps guarded by mu. Transactions are
// serialized on txMu and roll back by restoring a snapshot. Reads outside
// a transaction also wait on txMu, so they never see writes that are later
// rolled back.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	tickets   map[string]domain.Ticket
	agents    map[string]domain.Agent
	customers map[string]domain.Customer
	replies   []domain.Reply
	ratings   []domain.Rating
	history   []domain.TicketHistory
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tickets:   make(map[string]domain.Ticket),
		agents:    make(map[string]domain.Agent),
		customers: make(map[string]domain.Customer),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Tickets:   ticketStore{s},
		Agents:    agentStore{s},
		Customers: customerStore{s},
		Replies:   replyStore{s},
		Ratings:   ratingStore{s},
		History:   historyStore{s},
		Tx:        s,
	}
}

type txMarker struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txMarker{}).(bool)
	return ok
}

// WithinTx runs fn with exclusive write access and restores the previous
// state if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	tickets   map[string]domain.Ticket
	agents    map[string]domain.Agent
	customers map[string]domain.Customer
	replies   []domain.Reply
	ratings   []domain.Rating
	history   []domain.TicketHistory
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{
		tickets:   make(map[string]domain.Ticket, len(s.tickets)),
		agents:    make(map[string]domain.Agent, len(s.agents)),
		customers: make(map[string]domain.Customer, len(s.customers)),
		replies:   append([]domain.Reply(nil), s.replies...),
		ratings:   append([]domain.Rating(nil), s.ratings...),
		history:   append([]domain.TicketHistory(nil), s.history...),
	}
	for k, v := range s.tickets {
		snap.tickets[k] = cloneTicket(v)
	}
	for k, v := range s.agents {
		snap.agents[k] = v
	}
	for k, v := range s.customers {
		snap.customers[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = snap.tickets
	s.agents = snap.agents
	s.customers = snap.customers
	s.replies = snap.replies
	s.ratings = snap.ratings
	s.history = snap.history
}

// write runs fn under the data lock. Outside a transaction it also holds
// txMu so a concurrent rollback cannot discard the write.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// rlock takes the read lock and returns its release func.
func (s *Store) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		s.mu.RLock()
		return s.mu.RUnlock
	}
	s.txMu.Lock()
	s.mu.RLock()
	return func() {
		s.mu.RUnlock()
		s.txMu.Unlock()
	}
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.AssignedTo != nil {
		id := *t.AssignedTo
		t.AssignedTo = &id
	}
	return t
}

func cloneRating(r domain.Rating) domain.Rating {
	if r.AgentID != nil {
		id := *r.AgentID
		r.AgentID = &id
	}
	return r
}

type ticketStore struct{ s *Store }

func (r ticketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.s.write(ctx, func() error {
		ticket.ID = uuid.NewString()
		ticket.Version = 1
		r.s.tickets[ticket.ID] = cloneTicket(*ticket)
		return nil
	})
}

func (r ticketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.s.write(ctx, func() error {
		current, ok := r.s.tickets[ticket.ID]
		if !ok || current.Version != ticket.Version {
			return repository.ErrVersionConflict
		}
		next := cloneTicket(*ticket)
		next.CreatedBy = current.CreatedBy
		next.CreatedAt = current.CreatedAt
		next.Category = current.Category
		next.Subcategory = current.Subcategory
		next.Version = current.Version + 1
		r.s.tickets[ticket.ID] = next
		ticket.Version = next.Version
		return nil
	})
}

func (r ticketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	defer r.s.rlock(ctx)()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t = cloneTicket(t)
	return &t, nil
}

func (r ticketStore) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	unlock := r.s.rlock(ctx)
	matched := make([]domain.Ticket, 0)
	for _, t := range r.s.tickets {
		if matchesTicket(t, filter) {
			matched = append(matched, cloneTicket(t))
		}
	}
	unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].LastUpdated.Equal(matched[j].LastUpdated) {
			return matched[i].LastUpdated.After(matched[j].LastUpdated)
		}
		return matched[i].ID < matched[j].ID
	})

	limit, offset := repository.ClampPage(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matchesTicket(t domain.Ticket, f repository.TicketFilter) bool {
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.AssignedTo != nil && t.AssignedToID() != *f.AssignedTo {
		return false
	}
	if f.Unassigned && t.IsAssigned() {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.ExcludeStatuses) > 0 && contains(f.ExcludeStatuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if f.IsRemoved != nil && t.IsRemoved != *f.IsRemoved {
		return false
	}
	return true
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (r ticketStore) CountAssignedForCustomer(ctx context.Context, agentID, customerID, excludeTicketID string) (int, error) {
	defer r.s.rlock(ctx)()
	count := 0
	for id, t := range r.s.tickets {
		if id != excludeTicketID && t.AssignedToID() == agentID && t.CreatedBy == customerID {
			count++
		}
	}
	return count, nil
}

func (r ticketStore) ListDanglingAssignments(ctx context.Context) ([]repository.DanglingAssignment, error) {
	defer r.s.rlock(ctx)()
	var result []repository.DanglingAssignment
	for id, t := range r.s.tickets {
		if !t.IsAssigned() {
			continue
		}
		if _, ok := r.s.agents[*t.AssignedTo]; !ok {
			result = append(result, repository.DanglingAssignment{TicketID: id, AssignedTo: *t.AssignedTo})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TicketID < result[j].TicketID })
	return result, nil
}

func (r ticketStore) ClearAssignee(ctx context.Context, ticketID, expected string, now time.Time) (bool, error) {
	cleared := false
	err := r.s.write(ctx, func() error {
		t, ok := r.s.tickets[ticketID]
		if !ok || t.AssignedToID() != expected || expected == "" {
			return nil
		}
		t.AssignedTo = nil
		t.LastUpdated = now
		t.Version++
		r.s.tickets[ticketID] = t
		cleared = true
		return nil
	})
	return cleared, err
}

type agentStore struct{ s *Store }

func (r agentStore) Create(ctx context.Context, agent *domain.Agent) error {
	return r.s.write(ctx, func() error {
		for _, existing := range r.s.agents {
			if strings.EqualFold(existing.Email, agent.Email) {
				return repository.ErrDuplicate
			}
		}
		agent.ID = uuid.NewString()
		agent.UpdatedAt = agent.CreatedAt
		r.s.agents[agent.ID] = *agent
		return nil
	})
}

func (r agentStore) Update(ctx context.Context, agent *domain.Agent) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.agents[agent.ID]; !ok {
			return repository.ErrNotFound
		}
		for id, existing := range r.s.agents {
			if id != agent.ID && strings.EqualFold(existing.Email, agent.Email) {
				return repository.ErrDuplicate
			}
		}
		r.s.agents[agent.ID] = *agent
		return nil
	})
}

func (r agentStore) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.agents[id]; !ok {
			return repository.ErrNotFound
		}
		delete(r.s.agents, id)
		return nil
	})
}

func (r agentStore) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	defer r.s.rlock(ctx)()
	agent, ok := r.s.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &agent, nil
}

func (r agentStore) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	defer r.s.rlock(ctx)()
	for _, agent := range r.s.agents {
		if strings.EqualFold(agent.Email, email) {
			a := agent
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r agentStore) List(ctx context.Context, filter repository.AgentFilter) ([]domain.Agent, error) {
	unlock := r.s.rlock(ctx)
	var matched []domain.Agent
	for _, agent := range r.s.agents {
		if filter.Role != nil && agent.Role != *filter.Role {
			continue
		}
		if filter.AgentType != nil && agent.AgentType != *filter.AgentType {
			continue
		}
		if filter.Active != nil && agent.Active != *filter.Active {
			continue
		}
		matched = append(matched, agent)
	}
	unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	limit, offset := repository.ClampPage(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

type customerStore struct{ s *Store }

func (r customerStore) Create(ctx context.Context, customer *domain.Customer) error {
	return r.s.write(ctx, func() error {
		for _, existing := range r.s.customers {
			if strings.EqualFold(existing.Email, customer.Email) {
				return repository.ErrDuplicate
			}
		}
		customer.ID = uuid.NewString()
		customer.UpdatedAt = customer.CreatedAt
		r.s.customers[customer.ID] = *customer
		return nil
	})
}

func (r customerStore) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	defer r.s.rlock(ctx)()
	customer, ok := r.s.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &customer, nil
}

func (r customerStore) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	defer r.s.rlock(ctx)()
	for _, customer := range r.s.customers {
		if strings.EqualFold(customer.Email, email) {
			c := customer
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

type replyStore struct{ s *Store }

func (r replyStore) Create(ctx context.Context, reply *domain.Reply) error {
	return r.s.write(ctx, func() error {
		reply.ID = uuid.NewString()
		r.s.replies = append(r.s.replies, *reply)
		return nil
	})
}

func (r replyStore) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.Reply, error) {
	defer r.s.rlock(ctx)()
	var result []domain.Reply
	for _, reply := range r.s.replies {
		if reply.TicketID != ticketID || (reply.IsInternal && !includeInternal) {
			continue
		}
		result = append(result, reply)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

type ratingStore struct{ s *Store }

func (r ratingStore) Create(ctx context.Context, rating *domain.Rating) error {
	return r.s.write(ctx, func() error {
		for _, existing := range r.s.ratings {
			if existing.TicketID == rating.TicketID && existing.UserID == rating.UserID {
				return repository.ErrDuplicate
			}
		}
		rating.ID = uuid.NewString()
		r.s.ratings = append(r.s.ratings, cloneRating(*rating))
		return nil
	})
}

func (r ratingStore) GetByTicketAndUser(ctx context.Context, ticketID, userID string) (*domain.Rating, error) {
	defer r.s.rlock(ctx)()
	for _, rating := range r.s.ratings {
		if rating.TicketID == ticketID && rating.UserID == userID {
			c := cloneRating(rating)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r ratingStore) ListByAgent(ctx context.Context, agentID string) ([]domain.Rating, error) {
	defer r.s.rlock(ctx)()
	var result []domain.Rating
	for _, rating := range r.s.ratings {
		if rating.AgentID != nil && *rating.AgentID == agentID {
			result = append(result, cloneRating(rating))
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

type historyStore struct{ s *Store }

func (r historyStore) Create(ctx context.Context, history *domain.TicketHistory) error {
	return r.s.write(ctx, func() error {
		history.ID = uuid.NewString()
		r.s.history = append(r.s.history, *history)
		return nil
	})
}

func (r historyStore) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	defer r.s.rlock(ctx)()
	var result []domain.TicketHistory
	for _, h := range r.s.history {
		if h.TicketID == ticketID {
			result = append(result, h)
		}
	}
	return result, nil
}
