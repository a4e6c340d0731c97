package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/wardline/wardline/internal/messages"
)

type fakeStore struct {
	appendErr  error
	appended   []messages.AppendInput
	byID       map[string]messages.Message
	receipts   []string
	receiptErr error
}

func (f *fakeStore) Append(ctx context.Context, input messages.AppendInput) (messages.Message, error) {
	if f.appendErr != nil {
		return messages.Message{}, f.appendErr
	}
	f.appended = append(f.appended, input)
	return messages.Message{
		ID:        "m1",
		Content:   input.Content,
		AuthorID:  input.AuthorID,
		ChannelID: input.ChannelID,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeStore) Edit(ctx context.Context, id, content string) (messages.Message, error) {
	return messages.Message{}, errors.New("not implemented")
}

func (f *fakeStore) AppendReceipt(ctx context.Context, messageID, readerID string, ts time.Time) (messages.Receipt, error) {
	if f.receiptErr != nil {
		return messages.Receipt{}, f.receiptErr
	}
	f.receipts = append(f.receipts, messageID+":"+readerID)
	return messages.Receipt{UserID: readerID, FullName: "Reader", Timestamp: ts}, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (messages.Message, error) {
	if m, ok := f.byID[id]; ok {
		return m, nil
	}
	return messages.Message{}, messages.ErrMessageNotFound
}

func (f *fakeStore) ListByChannel(ctx context.Context, channelID string) ([]messages.Message, error) {
	return nil, errors.New("not implemented")
}

func newTestGateway(store messages.Store) (*Gateway, *Hub) {
	hub := NewHub(nil)
	gateway := NewGateway(nil, hub, store, nil, nil, "secret")
	return gateway, hub
}

func TestHandleSendPersistsThenBroadcasts(t *testing.T) {
	store := &fakeStore{}
	gateway, hub := newTestGateway(store)

	sender := testSession("s1", "u1")
	sender.ChannelID = "c1"
	receiver := testSession("s2", "u2")
	hub.Register(sender)
	hub.Register(receiver)
	hub.Join("c1", sender)
	hub.Join("c1", receiver)

	gateway.handleEvent(sender, Event{Event: EventMessage, Data: json.RawMessage(`{"content":"hello"}`)})

	if len(store.appended) != 1 {
		t.Fatalf("appended = %d, want 1", len(store.appended))
	}
	if store.appended[0].ChannelID != "c1" || store.appended[0].AuthorID != "u1" {
		t.Errorf("append input = %+v, want channel c1 author u1", store.appended[0])
	}

	got := drain(t, receiver)
	if len(got) != 1 || got[0].Event != EventMessage {
		t.Fatalf("receiver events = %v, want one %q", got, EventMessage)
	}
	var message messages.Message
	if err := json.Unmarshal(got[0].Data, &message); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if message.Content != "hello" {
		t.Errorf("broadcast content = %q, want %q", message.Content, "hello")
	}

	if got := drain(t, sender); len(got) != 0 {
		t.Errorf("sender received %d events, want 0 (self-exclusion)", len(got))
	}
}

func TestHandleSendFailureSignalsSenderOnly(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("store down")}
	gateway, hub := newTestGateway(store)

	sender := testSession("s1", "u1")
	sender.ChannelID = "c1"
	receiver := testSession("s2", "u2")
	hub.Register(sender)
	hub.Register(receiver)
	hub.Join("c1", sender)
	hub.Join("c1", receiver)

	gateway.handleEvent(sender, Event{Event: EventMessage, Data: json.RawMessage(`"hello"`)})

	got := drain(t, sender)
	if len(got) != 1 || got[0].Event != EventSendError {
		t.Fatalf("sender events = %v, want one %q", got, EventSendError)
	}
	if got := drain(t, receiver); len(got) != 0 {
		t.Errorf("receiver received %d events, want 0", len(got))
	}
}

func TestHandleSendWithoutRoom(t *testing.T) {
	store := &fakeStore{}
	gateway, hub := newTestGateway(store)

	sender := testSession("s1", "u1")
	hub.Register(sender)

	gateway.handleEvent(sender, Event{Event: EventMessage, Data: json.RawMessage(`"hello"`)})

	if len(store.appended) != 0 {
		t.Errorf("appended = %d, want 0", len(store.appended))
	}
	got := drain(t, sender)
	if len(got) != 1 || got[0].Event != EventSendError {
		t.Errorf("sender events = %v, want one %q", got, EventSendError)
	}
}

func TestHandleTypingRelaysToOthers(t *testing.T) {
	gateway, hub := newTestGateway(&fakeStore{})

	sender := testSession("s1", "u1")
	sender.ChannelID = "c1"
	receiver := testSession("s2", "u2")
	hub.Register(sender)
	hub.Register(receiver)
	hub.Join("c1", sender)
	hub.Join("c1", receiver)

	gateway.handleEvent(sender, Event{Event: EventTyping, Data: json.RawMessage(`{"typing":true}`)})

	got := drain(t, receiver)
	if len(got) != 1 || got[0].Event != EventDisplay {
		t.Fatalf("receiver events = %v, want one %q", got, EventDisplay)
	}
	var payload DisplayPayload
	if err := json.Unmarshal(got[0].Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if !payload.Typing || payload.User.ID != "u1" {
		t.Errorf("payload = %+v, want typing=true user=u1", payload)
	}
	if got := drain(t, sender); len(got) != 0 {
		t.Errorf("sender received %d events, want 0 (no self-echo)", len(got))
	}
}

func TestHandleReadAppendsAndBroadcastsToRoom(t *testing.T) {
	store := &fakeStore{
		byID: map[string]messages.Message{
			"m1": {ID: "m1", ChannelID: "c1", Content: "hello"},
		},
	}
	gateway, hub := newTestGateway(store)

	reader := testSession("s1", "u2")
	reader.ChannelID = "c1"
	author := testSession("s2", "u1")
	other := testSession("s3", "u3")
	hub.Register(reader)
	hub.Register(author)
	hub.Register(other)
	hub.Join("c1", reader)
	hub.Join("c1", author)
	hub.Join("c9", other)

	gateway.handleEvent(reader, Event{Event: EventRead, Data: json.RawMessage(`{"messageId":"m1"}`)})

	if len(store.receipts) != 1 || store.receipts[0] != "m1:u2" {
		t.Fatalf("receipts = %v, want [m1:u2]", store.receipts)
	}
	// Receipt notifications go to the whole room, reader included.
	for _, s := range []*Session{reader, author} {
		got := drain(t, s)
		if len(got) != 1 || got[0].Event != EventReceiptAdded {
			t.Errorf("session %s events = %v, want one %q", s.ID, got, EventReceiptAdded)
		}
	}
	// Scoped to the message's room, not server-wide.
	if got := drain(t, other); len(got) != 0 {
		t.Errorf("other-room session received %d events, want 0", len(got))
	}
}

func TestHandleReadUnknownMessage(t *testing.T) {
	store := &fakeStore{byID: map[string]messages.Message{}}
	gateway, hub := newTestGateway(store)

	reader := testSession("s1", "u2")
	hub.Register(reader)

	gateway.handleEvent(reader, Event{Event: EventRead, Data: json.RawMessage(`{"messageId":"nope"}`)})

	if len(store.receipts) != 0 {
		t.Errorf("receipts = %v, want none", store.receipts)
	}
}
