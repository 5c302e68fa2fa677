package events

import (
	"errors"
	"testing"
)

func TestBus_EmitDeliversInOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	var got []string
	bus.Subscribe(func(ev Event) error {
		var st ConnectionState
		if err := ev.Decode(&st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, st.State)
		return nil
	})

	bus.Emit(ConnectionStateChanged, ConnectionState{State: StateConnecting})
	bus.Emit(ConnectionStateChanged, ConnectionState{State: StateConnected})

	if len(got) != 2 || got[0] != StateConnecting || got[1] != StateConnected {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestBus_FailingSubscriberDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	calls := 0
	bus.Subscribe(func(Event) error { return errors.New("boom") })
	bus.Subscribe(func(Event) error { panic("worse") })
	bus.Subscribe(func(Event) error {
		calls++
		return nil
	})

	bus.Emit(ConnectionModeChanged, nil)

	if calls != 1 {
		t.Fatalf("healthy subscriber called %d times, want 1", calls)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(Event) error {
		calls++
		return nil
	})

	bus.Emit(ConnectionModeChanged, nil)
	unsubscribe()
	bus.Emit(ConnectionModeChanged, nil)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestBus_EventShape(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch := make(chan Event, 2)
	bus.Subscribe(ChannelSink(ch))

	bus.Emit(ConnectionModeChanged, nil)
	bus.Emit(ProxyChanged, ProxyChange{Group: "grp name", Proxy: "p1"})

	mode := <-ch
	if mode.Name != ConnectionModeChanged || mode.Payload != nil || mode.ID == "" {
		t.Fatalf("unexpected mode event: %+v", mode)
	}

	proxy := <-ch
	var change ProxyChange
	if err := proxy.Decode(&change); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if change.Group != "grp name" || change.Proxy != "p1" {
		t.Fatalf("unexpected payload: %+v", change)
	}
	if proxy.ID == mode.ID {
		t.Fatalf("event IDs must differ")
	}
}

func TestChannelSink_FullChannelReportsDrop(t *testing.T) {
	t.Parallel()

	ch := make(chan Event)
	if err := ChannelSink(ch)(Event{ID: "x"}); err == nil {
		t.Fatal("expected drop error on full channel")
	}
}
