package event

import (
	"slices"
	"testing"

	"github.com/kodebolds/froggies/internal/core/ecs"
)

func TestBusDeliversNextFrame(t *testing.T) {
	b := NewBus()
	var got []ecs.Entity
	Subscribe(b, func(ev EntityDestroyed) { got = append(got, ev.Entity) })

	Emit(b, EntityDestroyed{Entity: ecs.NewEntity(1, 1)})
	Emit(b, EntityDestroyed{Entity: ecs.NewEntity(2, 1)})
	if b.Pending() != 2 {
		t.Fatalf("expected 2 pending events, got %d", b.Pending())
	}
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatalf("events must not be delivered in the frame they were emitted")
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 2 || got[0] != ecs.NewEntity(1, 1) {
		t.Fatalf("expected both events in emit order, got %v", got)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 2 {
		t.Fatalf("events must be delivered once, got %d deliveries", len(got))
	}
}

func TestBusDispatchesTypesInFirstSeenOrder(t *testing.T) {
	b := NewBus()
	var log []string
	Subscribe(b, func(ev EntityInstantiated) { log = append(log, "spawn "+ev.Entity.String()) })
	Subscribe(b, func(ev EntityDestroyed) { log = append(log, "die "+ev.Entity.String()) })
	Subscribe(b, func(ev EntityDestroyed) { log = append(log, "die again "+ev.Entity.String()) })

	e1, e2 := ecs.NewEntity(1, 1), ecs.NewEntity(2, 1)
	Emit(b, EntityDestroyed{Entity: e1})
	EmitAll(b, []EntityInstantiated{{Entity: e1}, {Entity: e2}})
	EmitAll[EntityDestroyed](b, nil)
	if b.Pending() != 3 {
		t.Fatalf("expected 3 pending events, got %d", b.Pending())
	}
	b.SwapBuffers()
	if b.Pending() != 0 {
		t.Fatalf("back buffer must be empty after a swap, got %d", b.Pending())
	}
	b.DispatchAll()

	want := []string{
		"spawn " + e1.String(),
		"spawn " + e2.String(),
		"die " + e1.String(),
		"die again " + e1.String(),
	}
	if !slices.Equal(log, want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
}
