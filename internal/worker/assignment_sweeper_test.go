package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticket-routing/internal/clock"
	"github.com/spec-kit/ticket-routing/internal/service"
)

type countingFixer struct {
	calls chan struct{}
	err   error
}

func (f *countingFixer) FixAssignments(context.Context) (service.FixResult, error) {
	f.calls <- struct{}{}
	return service.FixResult{FixedCount: 1}, f.err
}

func waitCall(t *testing.T, calls <-chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not run")
	}
}

func TestSweeperRunsOnEveryTick(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	fixer := &countingFixer{calls: make(chan struct{}, 4)}
	sweeper := NewAssignmentSweeper(fixer, clk, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := sweeper.Start(ctx)

	clk.Advance(time.Minute)
	waitCall(t, fixer.calls)
	clk.Advance(time.Minute)
	waitCall(t, fixer.calls)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperKeepsGoingAfterFailure(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	fixer := &countingFixer{calls: make(chan struct{}, 4), err: errors.New("db down")}
	sweeper := NewAssignmentSweeper(fixer, clk, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)

	clk.Advance(time.Minute)
	waitCall(t, fixer.calls)
	clk.Advance(time.Minute)
	waitCall(t, fixer.calls)
}

func TestSweeperDisabledWithoutInterval(t *testing.T) {
	fixer := &countingFixer{calls: make(chan struct{}, 1)}
	done := NewAssignmentSweeper(fixer, clock.Fake(time.Now()), 0, nil).Start(context.Background())
	select {
	case <-done:
	default:
		t.Fatal("disabled sweeper should report done immediately")
	}
}
