// Package realtime provides the session gateway and messaging core: it
// authenticates socket connections, joins them to channel rooms, and turns
// inbound events into persisted state and room broadcasts.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/wardline/wardline/internal/auth"
	"github.com/wardline/wardline/internal/messages"
	"github.com/wardline/wardline/internal/users"
)

// storeTimeout bounds every store call made from a socket handler so a hung
// store cannot pin a connection forever.
const storeTimeout = 5 * time.Second

// ChannelAccess validates that a user may join a channel's room.
type ChannelAccess interface {
	CanAccess(ctx context.Context, channelID, userID string) (bool, error)
}

// Gateway upgrades and authenticates websocket connections and dispatches
// their events.
type Gateway struct {
	hub       *Hub
	store     messages.Store
	access    ChannelAccess
	directory users.Directory
	secret    string
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewGateway creates the session gateway.
func NewGateway(log *slog.Logger, hub *Hub, store messages.Store, access ChannelAccess, directory users.Directory, jwtSecret string) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		hub:       hub,
		store:     store,
		access:    access,
		directory: directory,
		secret:    jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.With(slog.String("component", "gateway")),
	}
}

// Hub exposes the fan-out hub so REST handlers can broadcast edits.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Handle serves GET /ws. The handshake credential comes from the
// authorization header or a token query parameter; a missing or invalid
// token rejects the connection before any room join. An optional channel
// query parameter names the channel to auto-join; a failed membership
// check terminates the connection server-side.
func (g *Gateway) Handle(c echo.Context) error {
	token := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.TrimSpace(token) == "" {
		token = c.QueryParam("token")
	}
	claims, err := auth.ParseToken(token, g.secret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid handshake credential")
	}

	user := users.Summary{ID: claims.UserID}
	if g.directory != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
		summaries, err := g.directory.Summaries(ctx, []string{claims.UserID})
		cancel()
		if err == nil {
			if summary, ok := summaries[claims.UserID]; ok {
				user = summary
			}
		}
	}

	channelID := strings.TrimSpace(c.QueryParam("channel"))

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	session := newSession(conn, user)

	if channelID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		ok, err := g.access.CanAccess(ctx, channelID, user.ID)
		cancel()
		if err != nil || !ok {
			g.logger.Info("room join rejected",
				slog.String("user_id", user.ID),
				slog.String("channel_id", channelID),
				slog.Any("error", err),
			)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "channel access denied"),
				time.Now().Add(writeWait))
			conn.Close()
			return nil
		}
		session.ChannelID = channelID
	}

	g.hub.Register(session)
	if session.ChannelID != "" {
		g.hub.Join(session.ChannelID, session)
	}
	go session.writePump(g.logger)
	g.readLoop(session)
	g.hub.Unregister(session)
	return nil
}

func (g *Gateway) readLoop(s *Session) {
	s.conn.SetReadLimit(maxFrameBytes)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			g.logger.Debug("malformed frame dropped", slog.String("session_id", s.ID))
			continue
		}
		// Per-event failures log and continue; only transport errors end the session.
		g.handleEvent(s, event)
	}
}

func (g *Gateway) handleEvent(s *Session, event Event) {
	switch event.Event {
	case EventMessage:
		g.handleSend(s, event.Data)
	case EventTyping:
		g.handleTyping(s, event.Data)
	case EventRead:
		g.handleRead(s, event.Data)
	default:
		g.logger.Debug("unknown event dropped",
			slog.String("event", event.Event),
			slog.String("session_id", s.ID),
		)
	}
}

// handleSend persists the message, then broadcasts it to every other
// session in the room. The persist completes before the broadcast is
// emitted, so REST history read after the broadcast always contains the
// message.
func (g *Gateway) handleSend(s *Session, data json.RawMessage) {
	content, err := decodeMessagePayload(data)
	if err != nil || s.ChannelID == "" {
		g.sendError(s, "invalid message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	message, err := g.store.Append(ctx, messages.AppendInput{
		AuthorID:  s.User.ID,
		ChannelID: s.ChannelID,
		Content:   content,
	})
	if err != nil {
		g.logger.Error("persist message failed",
			slog.String("channel_id", s.ChannelID),
			slog.String("user_id", s.User.ID),
			slog.Any("error", err),
		)
		g.sendError(s, "message could not be delivered")
		return
	}

	event, err := NewEvent(EventMessage, message)
	if err != nil {
		g.logger.Error("encode message event failed", slog.Any("error", err))
		return
	}
	g.hub.BroadcastToRoom(s.ChannelID, s.ID, event)
}

// handleTyping relays the typing indicator to the rest of the room. There
// is no automatic stop timeout; the client sends the stop signal itself.
func (g *Gateway) handleTyping(s *Session, data json.RawMessage) {
	if s.ChannelID == "" {
		return
	}
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	event, err := NewEvent(EventDisplay, DisplayPayload{Typing: payload.Typing, User: s.User})
	if err != nil {
		return
	}
	g.hub.BroadcastToRoom(s.ChannelID, s.ID, event)
}

// handleRead appends a receipt to the message's log, then notifies the
// message's channel room.
func (g *Gateway) handleRead(s *Session, data json.RawMessage) {
	var payload ReadPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	message, err := g.store.Get(ctx, payload.MessageID)
	if err != nil {
		g.logger.Debug("read receipt for unknown message", slog.String("message_id", payload.MessageID))
		return
	}
	receipt, err := g.store.AppendReceipt(ctx, payload.MessageID, s.User.ID, time.Now())
	if err != nil {
		g.logger.Error("append receipt failed", slog.String("message_id", payload.MessageID), slog.Any("error", err))
		return
	}

	event, err := NewEvent(EventReceiptAdded, ReceiptAddedPayload{
		MessageID: payload.MessageID,
		Reader:    users.Summary{ID: receipt.UserID, FullName: receipt.FullName},
		Timestamp: receipt.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	if message.ChannelID != "" {
		g.hub.BroadcastToRoom(message.ChannelID, "", event)
	}
}

func (g *Gateway) sendError(s *Session, reason string) {
	event, err := NewEvent(EventSendError, SendErrorPayload{Reason: reason})
	if err != nil {
		return
	}
	g.hub.SendTo(s, event)
}
