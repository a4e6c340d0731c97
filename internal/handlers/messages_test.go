package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/wardline/wardline/internal/auth"
	"github.com/wardline/wardline/internal/messages"
)

type editCall struct {
	id      string
	content string
}

type fakeMessageStore struct {
	edits   []editCall
	editOut messages.Message
	editErr error
	list    []messages.Message
	listErr error
}

func (f *fakeMessageStore) Append(ctx context.Context, input messages.AppendInput) (messages.Message, error) {
	return messages.Message{}, nil
}

func (f *fakeMessageStore) Edit(ctx context.Context, id, content string) (messages.Message, error) {
	f.edits = append(f.edits, editCall{id: id, content: content})
	if f.editErr != nil {
		return messages.Message{}, f.editErr
	}
	out := f.editOut
	out.ID = id
	out.Content = content
	return out, nil
}

func (f *fakeMessageStore) AppendReceipt(ctx context.Context, messageID, readerID string, ts time.Time) (messages.Receipt, error) {
	return messages.Receipt{}, nil
}

func (f *fakeMessageStore) Get(ctx context.Context, id string) (messages.Message, error) {
	return messages.Message{}, messages.ErrMessageNotFound
}

func (f *fakeMessageStore) ListByChannel(ctx context.Context, channelID string) ([]messages.Message, error) {
	return f.list, f.listErr
}

func authenticate(c echo.Context, userID string) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{UserID: userID})
	c.Set("user", token)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestEditRequiresAuthentication(t *testing.T) {
	t.Parallel()

	store := &fakeMessageStore{}
	h := NewMessagesHandler(discardLogger(), store, nil)

	c, _ := newTestContext(t, http.MethodPut, "/message", `{"id":"m1","content":"updated"}`)
	err := h.Edit(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %v", err)
	}
	if len(store.edits) != 0 {
		t.Fatalf("store must not be touched on auth failure")
	}
}

func TestEditValidatesBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing id", body: `{"content":"updated"}`},
		{name: "missing content", body: `{"id":"m1"}`},
		{name: "blank content", body: `{"id":"m1","content":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &fakeMessageStore{}
			h := NewMessagesHandler(discardLogger(), store, nil)

			c, _ := newTestContext(t, http.MethodPut, "/message", tt.body)
			authenticate(c, "user-1")
			err := h.Edit(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %v", err)
			}
			if len(store.edits) != 0 {
				t.Fatalf("store must not be touched on invalid body")
			}
		})
	}
}

func TestEditMissingMessageIsBadRequest(t *testing.T) {
	t.Parallel()

	store := &fakeMessageStore{editErr: messages.ErrMessageNotFound}
	h := NewMessagesHandler(discardLogger(), store, nil)

	c, _ := newTestContext(t, http.MethodPut, "/message", `{"id":"nope","content":"updated"}`)
	authenticate(c, "user-1")
	err := h.Edit(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing message, got %v", err)
	}
}

func TestEditUpdatesAndResponds(t *testing.T) {
	t.Parallel()

	store := &fakeMessageStore{editOut: messages.Message{ChannelID: "chan-1", AuthorID: "user-2"}}
	h := NewMessagesHandler(discardLogger(), store, nil)

	c, rec := newTestContext(t, http.MethodPut, "/message", `{"id":"m1","content":"updated text"}`)
	authenticate(c, "user-1")
	if err := h.Edit(c); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(store.edits) != 1 {
		t.Fatalf("expected one edit call, got %d", len(store.edits))
	}
	if store.edits[0] != (editCall{id: "m1", content: "updated text"}) {
		t.Fatalf("unexpected edit call: %+v", store.edits[0])
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success envelope, got %q", rec.Body.String())
	}
}

func TestListByChannelRequiresChannelID(t *testing.T) {
	t.Parallel()

	h := NewMessagesHandler(discardLogger(), &fakeMessageStore{}, nil)

	c, _ := newTestContext(t, http.MethodGet, "/messages", "")
	err := h.ListByChannel(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without channelId, got %v", err)
	}
}

func TestListByChannelStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		listErr    error
		wantStatus int
	}{
		{name: "invalid channel id", listErr: fmt.Errorf("%w: nope", messages.ErrInvalidChannel), wantStatus: http.StatusBadRequest},
		{name: "store failure", listErr: errors.New("connection reset"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewMessagesHandler(discardLogger(), &fakeMessageStore{listErr: tt.listErr}, nil)

			c, _ := newTestContext(t, http.MethodGet, "/messages?channelId=chan-1", "")
			err := h.ListByChannel(c)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %v", tt.wantStatus, err)
			}
		})
	}
}

func TestListByChannelReturnsHistory(t *testing.T) {
	t.Parallel()

	store := &fakeMessageStore{list: []messages.Message{
		{ID: "m1", Content: "first", ChannelID: "chan-1"},
		{ID: "m2", Content: "second", ChannelID: "chan-1"},
	}}
	h := NewMessagesHandler(discardLogger(), store, nil)

	c, rec := newTestContext(t, http.MethodGet, "/messages?channelId=chan-1", "")
	if err := h.ListByChannel(c); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	items, ok := env.Data.([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected two messages, got %#v", env.Data)
	}
}
