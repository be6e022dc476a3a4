package service_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/events"
	"github.com/spec-kit/ticket-routing/internal/service"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

func TestAssignRejectsIncompatibleAgentType(t *testing.T) {
	tests := []struct {
		name      string
		priority  domain.TicketPriority
		agentType domain.AgentType
		wantCode  string
	}{
		{"junior takes low", domain.TicketPriorityLow, domain.AgentTypeJunior, ""},
		{"junior takes medium", domain.TicketPriorityMedium, domain.AgentTypeJunior, ""},
		{"junior cannot take high", domain.TicketPriorityHigh, domain.AgentTypeJunior, apperrors.CodePriorityMismatch},
		{"senior cannot take low", domain.TicketPriorityLow, domain.AgentTypeSenior, apperrors.CodePriorityMismatch},
		{"senior cannot take medium", domain.TicketPriorityMedium, domain.AgentTypeSenior, apperrors.CodePriorityMismatch},
		{"senior takes high", domain.TicketPriorityHigh, domain.AgentTypeSenior, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			cust := h.customer(t, "ana")
			agent := h.staff(t, "jo", domain.RoleAgent, tt.agentType)
			ticket := h.seedTicket(t, cust, tt.priority, domain.TicketStatusOpen, nil)

			got, err := h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.SelfAssign(agent.ID))
			if tt.wantCode != "" {
				requireCode(t, err, tt.wantCode)
				if h.reload(t, ticket.ID).IsAssigned() {
					t.Fatal("refused assignment was stored")
				}
				return
			}
			requireNoErr(t, err)
			if got.AssignedToID() != agent.ID || got.Status != domain.TicketStatusInProgress {
				t.Fatalf("ticket = %+v", got)
			}
		})
	}
}

func TestAssignConcurrentSelfAssignOneWinner(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	a := h.senior(t, "alex")
	b := h.senior(t, "blair")
	ticket := h.seedTicket(t, cust, domain.TicketPriorityHigh, domain.TicketStatusOpen, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, agent := range []domain.Actor{a, b} {
		wg.Add(1)
		go func(i int, agent domain.Actor) {
			defer wg.Done()
			_, errs[i] = h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.SelfAssign(agent.ID))
		}(i, agent)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireCode(t, err, apperrors.CodeAlreadyAssigned)
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1 (errs %v)", wins, errs)
	}
	holder := h.reload(t, ticket.ID).AssignedToID()
	if holder != a.ID && holder != b.ID {
		t.Fatalf("assigned to %q", holder)
	}
	if n := len(h.events.Events(events.EventTicketAssigned)); n != 1 {
		t.Fatalf("assigned events = %d", n)
	}
}

func TestAssignSelfIsIdempotent(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	agent := h.junior(t, "jo")
	other := h.junior(t, "kim")
	ticket := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)

	_, err := h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.SelfAssign(agent.ID))
	requireNoErr(t, err)
	got, err := h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.SelfAssign(agent.ID))
	requireNoErr(t, err)
	if got.AssignedToID() != agent.ID {
		t.Fatalf("assigned to %q", got.AssignedToID())
	}

	_, err = h.assign.Assign(h.ctx, ticket.ID, other.ID, service.SelfAssign(other.ID))
	requireCode(t, err, apperrors.CodeAlreadyAssigned)
}

func TestAssignSelfForSomeoneElseIsForbidden(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	agent := h.junior(t, "jo")
	other := h.junior(t, "kim")
	ticket := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)

	_, err := h.assign.Assign(h.ctx, ticket.ID, other.ID, service.SelfAssign(agent.ID))
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestAssignNotFound(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	agent := h.junior(t, "jo")
	ticket := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)

	_, err := h.assign.Assign(h.ctx, "missing", agent.ID, service.SelfAssign(agent.ID))
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.assign.Assign(h.ctx, ticket.ID, "ghost", service.SelfAssign("ghost"))
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestAdminReassigns(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	admin := h.admin(t)
	first := h.senior(t, "alex")
	second := h.senior(t, "blair")
	ticket := h.seedTicket(t, cust, domain.TicketPriorityHigh, domain.TicketStatusOpen, strPtr(first.ID))

	got, err := h.assign.Assign(h.ctx, ticket.ID, second.ID, service.AdminAssign(admin.ID))
	requireNoErr(t, err)
	if got.AssignedToID() != second.ID {
		t.Fatalf("assigned to %q", got.AssignedToID())
	}

	evs := h.events.Events(events.EventTicketAssigned)
	if len(evs) != 1 {
		t.Fatalf("assigned events = %d", len(evs))
	}
	payload := evs[0].Payload.(events.TicketAssignedPayload)
	if !payload.ByAdmin || payload.PreviousAgentID == nil || *payload.PreviousAgentID != first.ID {
		t.Fatalf("payload = %+v", payload)
	}
	if evs[0].Actor.Role != domain.RoleAdmin {
		t.Fatalf("event actor = %+v", evs[0].Actor)
	}
}

func TestAdminAssignStillChecksPriority(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	admin := h.admin(t)
	junior := h.junior(t, "jo")
	ticket := h.seedTicket(t, cust, domain.TicketPriorityHigh, domain.TicketStatusOpen, nil)

	_, err := h.assign.Assign(h.ctx, ticket.ID, junior.ID, service.AdminAssign(admin.ID))
	requireCode(t, err, apperrors.CodePriorityMismatch)
}

func TestAdminAssignRequiresAdminRecord(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	agent := h.junior(t, "jo")
	impostor := h.junior(t, "kim")
	ticket := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)

	_, err := h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.AdminAssign(impostor.ID))
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.AdminAssign("nobody"))
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestAssignEnforcesCustomerCap(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	otherCust := h.customer(t, "ben")
	agent := h.junior(t, "jo")

	var held []*domain.Ticket
	for i := 0; i < 5; i++ {
		ticket := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)
		_, err := h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.SelfAssign(agent.ID))
		requireNoErr(t, err)
		held = append(held, ticket)
	}

	sixth := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)
	_, err := h.assign.Assign(h.ctx, sixth.ID, agent.ID, service.SelfAssign(agent.ID))
	requireCode(t, err, apperrors.CodeCustomerCapExceeded)

	// re-assigning a ticket already held does not count against the cap
	_, err = h.assign.Assign(h.ctx, held[0].ID, agent.ID, service.SelfAssign(agent.ID))
	requireNoErr(t, err)

	// the cap is per customer
	fromOther := h.seedTicket(t, otherCust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)
	_, err = h.assign.Assign(h.ctx, fromOther.ID, agent.ID, service.SelfAssign(agent.ID))
	requireNoErr(t, err)
}

func TestAssignCapHoldsUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	agent := h.junior(t, "jo")
	for i := 0; i < 4; i++ {
		ticket := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)
		_, err := h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.SelfAssign(agent.ID))
		requireNoErr(t, err)
	}

	contenders := make([]*domain.Ticket, 6)
	for i := range contenders {
		contenders[i] = h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)
	}
	var wg sync.WaitGroup
	errs := make([]error, len(contenders))
	for i, ticket := range contenders {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = h.assign.Assign(h.ctx, id, agent.ID, service.SelfAssign(agent.ID))
		}(i, ticket.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireCode(t, err, apperrors.CodeCustomerCapExceeded)
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
	count, err := h.repos.Tickets.CountAssignedForCustomer(h.ctx, agent.ID, cust.ID, "")
	requireNoErr(t, err)
	if count != 5 {
		t.Fatalf("held = %d, want 5", count)
	}
}

func TestAssignRefusesClosedTicketAndInactiveAgent(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	agent := h.junior(t, "jo")
	closed := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusClosed, nil)

	_, err := h.assign.Assign(h.ctx, closed.ID, agent.ID, service.SelfAssign(agent.ID))
	requireCode(t, err, apperrors.CodeInvalidState)

	record, err := h.repos.Agents.GetByID(h.ctx, agent.ID)
	requireNoErr(t, err)
	record.Active = false
	requireNoErr(t, h.repos.Agents.Update(h.ctx, record))

	open := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)
	_, err = h.assign.Assign(h.ctx, open.ID, agent.ID, service.SelfAssign(agent.ID))
	requireCode(t, err, apperrors.CodeInvalidState)
}

func TestAssignRecordsHistory(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	agent := h.junior(t, "jo")
	ticket := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)

	_, err := h.assign.Assign(h.ctx, ticket.ID, agent.ID, service.SelfAssign(agent.ID))
	requireNoErr(t, err)

	history, err := h.repos.History.ListByTicket(h.ctx, ticket.ID)
	requireNoErr(t, err)
	if len(history) != 1 {
		t.Fatalf("history = %d entries", len(history))
	}
	entry := history[0]
	if entry.ChangeType != domain.ChangeTypeAssignee || entry.ChangedByRole != domain.RoleAgent {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.NewValue["assigned_to"] != agent.ID {
		t.Fatalf("new value = %v", entry.NewValue)
	}
	if n := h.metrics.Outcome("assign", "OK"); n != 1 {
		t.Fatalf("assign OK count = %d", n)
	}
}

func TestListUnassignedTickets(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	agent := h.junior(t, "jo")

	low := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusOpen, nil)
	medium := h.seedTicket(t, cust, domain.TicketPriorityMedium, domain.TicketStatusWaitingForAgent, nil)
	high := h.seedTicket(t, cust, domain.TicketPriorityHigh, domain.TicketStatusOpen, nil)
	h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusClosed, nil)
	h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusInProgress, strPtr(agent.ID))

	got, err := h.assign.ListUnassignedTickets(h.ctx, domain.AgentTypeJunior, service.Page{})
	requireNoErr(t, err)
	ids := map[string]bool{}
	for _, ticket := range got {
		ids[ticket.ID] = true
	}
	if len(got) != 2 || !ids[low.ID] || !ids[medium.ID] {
		t.Fatalf("junior queue = %v", ids)
	}

	senior, err := h.assign.ListUnassignedTickets(h.ctx, domain.AgentTypeSenior, service.Page{})
	requireNoErr(t, err)
	if len(senior) != 1 || senior[0].ID != high.ID {
		t.Fatalf("senior queue = %+v", senior)
	}

	_, err = h.assign.ListUnassignedTickets(h.ctx, domain.AgentType("Intern"), service.Page{})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestFixAssignmentsClearsDeletedAgents(t *testing.T) {
	h := newHarness(t)
	cust := h.customer(t, "ana")
	admin := h.admin(t)
	leaving := h.junior(t, "jo")
	staying := h.junior(t, "kim")

	stale := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusInProgress, strPtr(leaving.ID))
	kept := h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusInProgress, strPtr(staying.ID))

	requireNoErr(t, h.agents.DeleteAgent(h.ctx, admin, leaving.ID))

	result, err := h.assign.FixAssignments(h.ctx)
	requireNoErr(t, err)
	if result.FixedCount != 1 {
		t.Fatalf("fixed = %d, want 1", result.FixedCount)
	}
	if h.reload(t, stale.ID).IsAssigned() {
		t.Fatal("stale assignment survived")
	}
	if h.reload(t, kept.ID).AssignedToID() != staying.ID {
		t.Fatal("valid assignment was cleared")
	}

	again, err := h.assign.FixAssignments(h.ctx)
	requireNoErr(t, err)
	if again.FixedCount != 0 {
		t.Fatalf("second sweep fixed = %d, want 0", again.FixedCount)
	}

	evs := h.events.Events(events.EventAssignmentFixed)
	if len(evs) != 1 || evs[0].TicketID != stale.ID {
		t.Fatalf("fixed events = %+v", evs)
	}
	history, err := h.repos.History.ListByTicket(h.ctx, stale.ID)
	requireNoErr(t, err)
	if len(history) != 1 || history[0].ChangedByRole != domain.RoleSystem {
		t.Fatalf("history = %+v", history)
	}

	// once cleared, the ticket can be picked up again
	_, err = h.assign.Assign(h.ctx, stale.ID, staying.ID, service.SelfAssign(staying.ID))
	requireNoErr(t, err)
}

func TestFixAssignmentsDuringReassignment(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)
	leaving := h.junior(t, "jo")
	staying := h.junior(t, "kim")

	const n = 12
	stale := make([]*domain.Ticket, n)
	for i := range stale {
		cust := h.customer(t, fmt.Sprintf("cust%d", i))
		stale[i] = h.seedTicket(t, cust, domain.TicketPriorityLow, domain.TicketStatusInProgress, strPtr(leaving.ID))
	}
	requireNoErr(t, h.agents.DeleteAgent(h.ctx, admin, leaving.ID))

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, ticket := range stale {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = h.assign.Assign(h.ctx, id, staying.ID, service.AdminAssign(admin.ID))
		}(i, ticket.ID)
	}
	var fixed service.FixResult
	var fixErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		fixed, fixErr = h.assign.FixAssignments(h.ctx)
	}()
	wg.Wait()

	requireNoErr(t, fixErr)
	if fixed.FixedCount > n {
		t.Fatalf("fixed = %d", fixed.FixedCount)
	}
	for i, ticket := range stale {
		requireNoErr(t, errs[i])
		if got := h.reload(t, ticket.ID).AssignedToID(); got != staying.ID {
			t.Fatalf("ticket %d assigned to %q, live assignment lost", i, got)
		}
	}

	again, err := h.assign.FixAssignments(h.ctx)
	requireNoErr(t, err)
	if again.FixedCount != 0 {
		t.Fatalf("second sweep fixed = %d", again.FixedCount)
	}
}
