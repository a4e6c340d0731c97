package handlers

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/wardline/wardline/internal/realtime"
)

// WSHandler mounts the realtime socket endpoint.
type WSHandler struct {
	gateway *realtime.Gateway
	logger  *slog.Logger
}

// NewWSHandler creates a websocket handler.
func NewWSHandler(log *slog.Logger, gateway *realtime.Gateway) *WSHandler {
	return &WSHandler{
		gateway: gateway,
		logger:  log.With(slog.String("handler", "ws")),
	}
}

// Register mounts GET /ws on the Echo instance. The gateway verifies the
// handshake credential itself, so the route is skipped by the JWT
// middleware.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.gateway.Handle)
}
