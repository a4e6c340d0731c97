package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wardline/wardline/internal/users"
)

const (
	sendBufferSize = 32
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 64 << 10
)

// Session is one authenticated live connection, bound to a user for its
// lifetime. It holds no durable state; a reconnecting client gets a fresh
// session and re-validates from scratch.
type Session struct {
	ID        string
	User      users.Summary
	ChannelID string

	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, user users.Summary) *Session {
	return &Session{
		ID:   uuid.NewString(),
		User: user,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// trySend queues data for the writer without blocking; events to a slow
// receiver are dropped.
func (s *Session) trySend(data []byte) {
	select {
	case s.send <- data:
	default:
	}
}

func (s *Session) closeSend() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

// writePump owns the websocket write side: it drains the send queue and
// keeps the connection alive with pings. Exits when the send channel is
// closed or a write fails.
func (s *Session) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("session write failed", slog.String("session_id", s.ID), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
