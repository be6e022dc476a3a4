package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherDeliversDespiteFailingHandler(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var delivered []string

	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
		delivered = append(delivered, "first")
		return errors.New("mail server down")
	})
	d.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
		delivered = append(delivered, "second")
		return nil
	})
	d.Subscribe(EventTicketRated, func(context.Context, Event) error {
		delivered = append(delivered, "rated")
		return nil
	})

	if err := d.Publish(context.Background(), Event{ID: "e1", Type: EventTicketAssigned}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(delivered) != 2 || delivered[0] != "first" || delivered[1] != "second" {
		t.Fatalf("delivered = %v", delivered)
	}
}

func TestRecorderFiltersByType(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	_ = r.Publish(ctx, Event{Type: EventTicketCreated})
	_ = r.Publish(ctx, Event{Type: EventTicketAssigned})
	_ = r.Publish(ctx, Event{Type: EventTicketAssigned})

	if got := len(r.Events(EventTicketAssigned)); got != 2 {
		t.Fatalf("assigned events = %d", got)
	}
	if got := len(r.Events("")); got != 3 {
		t.Fatalf("all events = %d", got)
	}
}
