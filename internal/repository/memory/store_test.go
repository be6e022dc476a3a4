package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/repository"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTicket(t *testing.T, repos *repository.Repositories, createdBy string, assignee *string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		Subject:     "printer on fire",
		Category:    "technical",
		Subcategory: "outage",
		Priority:    domain.TicketPriorityHigh,
		Status:      domain.TicketStatusOpen,
		AssignedTo:  assignee,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := repos.Tickets.Create(context.Background(), ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestTicketUpdateComparesVersion(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	ticket := newTicket(t, repos, "c1", nil)

	stale := *ticket
	ticket.Status = domain.TicketStatusInProgress
	if err := repos.Tickets.Update(ctx, ticket); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ticket.Version != 2 {
		t.Fatalf("version = %d, want 2", ticket.Version)
	}

	stale.Status = domain.TicketStatusClosed
	if err := repos.Tickets.Update(ctx, &stale); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("stale update err = %v, want ErrVersionConflict", err)
	}

	got, err := repos.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.TicketStatusInProgress {
		t.Fatalf("status = %q, stale write leaked", got.Status)
	}
}

func TestWithinTxRollsBack(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	ticket := newTicket(t, repos, "c1", nil)

	boom := errors.New("boom")
	err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		ticket.Status = domain.TicketStatusClosed
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := repos.Replies.Create(ctx, &domain.Reply{TicketID: ticket.ID, Message: "hi"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx err = %v", err)
	}

	got, _ := repos.Tickets.GetByID(ctx, ticket.ID)
	if got.Status != domain.TicketStatusOpen || got.Version != 1 {
		t.Fatalf("ticket not rolled back: status=%q version=%d", got.Status, got.Version)
	}
	replies, _ := repos.Replies.ListByTicket(ctx, ticket.ID, true)
	if len(replies) != 0 {
		t.Fatalf("reply survived rollback")
	}
}

func TestReadsWaitForOpenTransaction(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	ticket := newTicket(t, repos, "c1", nil)

	written := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			pending := *ticket
			pending.Status = domain.TicketStatusClosed
			if err := repos.Tickets.Update(ctx, &pending); err != nil {
				return err
			}
			close(written)
			<-release
			return errors.New("abort")
		})
	}()
	<-written

	read := make(chan *domain.Ticket, 1)
	go func() {
		got, err := repos.Tickets.GetByID(ctx, ticket.ID)
		if err != nil {
			t.Errorf("get: %v", err)
		}
		read <- got
	}()

	select {
	case got := <-read:
		t.Fatalf("read returned %q while the transaction was open", got.Status)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-txDone; err == nil {
		t.Fatal("transaction committed")
	}
	got := <-read
	if got == nil || got.Status != domain.TicketStatusOpen {
		t.Fatalf("read saw rolled back write: %+v", got)
	}
}

func TestRatingUniquePerTicketAndUser(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()

	first := &domain.Rating{TicketID: "t1", UserID: "c1", Rating: 5, CreatedAt: now}
	if err := repos.Ratings.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := &domain.Rating{TicketID: "t1", UserID: "c1", Rating: 1, CreatedAt: now}
	if err := repos.Ratings.Create(ctx, second); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate err = %v", err)
	}
}

func TestDanglingAssignmentsAndClear(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()

	agent := &domain.Agent{Name: "A", Email: "a@example.com", Role: domain.RoleAgent, AgentType: domain.AgentTypeSenior, CreatedAt: now}
	if err := repos.Agents.Create(ctx, agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	live := agent.ID
	ghost := "ghost-agent"
	kept := newTicket(t, repos, "c1", &live)
	orphan := newTicket(t, repos, "c1", &ghost)
	newTicket(t, repos, "c1", nil)

	dangling, err := repos.Tickets.ListDanglingAssignments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dangling) != 1 || dangling[0].TicketID != orphan.ID {
		t.Fatalf("dangling = %+v, want only %s", dangling, orphan.ID)
	}

	if ok, _ := repos.Tickets.ClearAssignee(ctx, orphan.ID, "someone-else", now); ok {
		t.Fatal("cleared with wrong expected assignee")
	}
	if ok, _ := repos.Tickets.ClearAssignee(ctx, orphan.ID, ghost, now); !ok {
		t.Fatal("compare-and-clear failed")
	}
	if ok, _ := repos.Tickets.ClearAssignee(ctx, orphan.ID, ghost, now); ok {
		t.Fatal("second clear reported a change")
	}

	got, _ := repos.Tickets.GetByID(ctx, kept.ID)
	if got.AssignedToID() != live {
		t.Fatal("live assignment touched")
	}
}

func TestListFilterAndCount(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	agentID := "agent-1"

	for i := 0; i < 3; i++ {
		newTicket(t, repos, "c1", &agentID)
	}
	other := newTicket(t, repos, "c2", &agentID)
	newTicket(t, repos, "c1", nil)

	n, err := repos.Tickets.CountAssignedForCustomer(ctx, agentID, "c1", "")
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v; want 3", n, err)
	}
	n, _ = repos.Tickets.CountAssignedForCustomer(ctx, agentID, "c2", other.ID)
	if n != 0 {
		t.Fatalf("count excluding self = %d, want 0", n)
	}

	unassigned, _ := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Unassigned: true})
	if len(unassigned) != 1 {
		t.Fatalf("unassigned = %d, want 1", len(unassigned))
	}
	mine, _ := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{CreatedBy: strPtr("c1"), Limit: 2})
	if len(mine) != 2 {
		t.Fatalf("page = %d, want 2", len(mine))
	}
}

func TestCustomerEmailUnique(t *testing.T) {
	repos := New().Repositories()
	ctx := context.Background()
	if err := repos.Customers.Create(ctx, &domain.Customer{Email: "Me@Example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repos.Customers.Create(ctx, &domain.Customer{Email: "me@example.com"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if _, err := repos.Customers.GetByEmail(ctx, "ME@example.com"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
}

func strPtr(s string) *string { return &s }
