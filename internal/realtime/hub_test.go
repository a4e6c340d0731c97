package realtime

import (
	"encoding/json"
	"testing"

	"github.com/wardline/wardline/internal/users"
)

func testSession(id, userID string) *Session {
	return &Session{
		ID:   id,
		User: users.Summary{ID: userID, FullName: "User " + userID},
		send: make(chan []byte, sendBufferSize),
	}
}

func drain(t *testing.T, s *Session) []Event {
	t.Helper()
	events := []Event{}
	for {
		select {
		case data := <-s.send:
			var event Event
			if err := json.Unmarshal(data, &event); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestBroadcastToRoomExcludesSender(t *testing.T) {
	hub := NewHub(nil)
	sender := testSession("s1", "u1")
	receiver := testSession("s2", "u2")
	outsider := testSession("s3", "u3")

	hub.Register(sender)
	hub.Register(receiver)
	hub.Register(outsider)
	hub.Join("c1", sender)
	hub.Join("c1", receiver)
	hub.Join("c2", outsider)

	event, _ := NewEvent(EventMessage, MessagePayload{Content: "hello"})
	hub.BroadcastToRoom("c1", sender.ID, event)

	if got := drain(t, sender); len(got) != 0 {
		t.Errorf("sender received %d events, want 0", len(got))
	}
	if got := drain(t, receiver); len(got) != 1 || got[0].Event != EventMessage {
		t.Errorf("receiver events = %v, want one %q", got, EventMessage)
	}
	if got := drain(t, outsider); len(got) != 0 {
		t.Errorf("outsider received %d events, want 0", len(got))
	}
}

func TestBroadcastToRoomIncludesAllWhenNoExclusion(t *testing.T) {
	hub := NewHub(nil)
	a := testSession("s1", "u1")
	b := testSession("s2", "u2")
	hub.Register(a)
	hub.Register(b)
	hub.Join("c1", a)
	hub.Join("c1", b)

	event, _ := NewEvent(EventReceiptAdded, ReceiptAddedPayload{MessageID: "m1"})
	hub.BroadcastToRoom("c1", "", event)

	for _, s := range []*Session{a, b} {
		if got := drain(t, s); len(got) != 1 {
			t.Errorf("session %s received %d events, want 1", s.ID, len(got))
		}
	}
}

func TestBroadcastAll(t *testing.T) {
	hub := NewHub(nil)
	a := testSession("s1", "u1")
	b := testSession("s2", "u2")
	hub.Register(a)
	hub.Register(b)
	hub.Join("c1", a)

	event, _ := NewEvent(EventDisplay, DisplayPayload{Typing: true})
	hub.BroadcastAll(event)

	for _, s := range []*Session{a, b} {
		if got := drain(t, s); len(got) != 1 {
			t.Errorf("session %s received %d events, want 1", s.ID, len(got))
		}
	}
}

func TestUnregisterRemovesFromRooms(t *testing.T) {
	hub := NewHub(nil)
	s := testSession("s1", "u1")
	hub.Register(s)
	hub.Join("c1", s)

	if got := hub.RoomSize("c1"); got != 1 {
		t.Fatalf("RoomSize = %d, want 1", got)
	}
	hub.Unregister(s)
	if got := hub.RoomSize("c1"); got != 0 {
		t.Errorf("RoomSize after Unregister = %d, want 0", got)
	}

	// Double unregister must not panic on the closed send channel.
	hub.Unregister(s)
}

func TestSlowReceiverDropped(t *testing.T) {
	hub := NewHub(nil)
	slow := &Session{ID: "s1", send: make(chan []byte, 1)}
	hub.Register(slow)
	hub.Join("c1", slow)

	event, _ := NewEvent(EventMessage, MessagePayload{Content: "x"})
	hub.BroadcastToRoom("c1", "", event)
	hub.BroadcastToRoom("c1", "", event)

	if got := len(slow.send); got != 1 {
		t.Errorf("queued frames = %d, want 1 (overflow dropped)", got)
	}
}
