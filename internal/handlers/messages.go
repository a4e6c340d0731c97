package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wardline/wardline/internal/auth"
	"github.com/wardline/wardline/internal/messages"
	"github.com/wardline/wardline/internal/realtime"
	"github.com/wardline/wardline/internal/users"
)

// MessagesHandler serves channel history and message editing.
type MessagesHandler struct {
	store  messages.Store
	hub    *realtime.Hub
	logger *slog.Logger
}

// EditMessageRequest is the body for PUT /message.
type EditMessageRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// NewMessagesHandler creates a messages handler.
func NewMessagesHandler(log *slog.Logger, store messages.Store, hub *realtime.Hub) *MessagesHandler {
	return &MessagesHandler{
		store:  store,
		hub:    hub,
		logger: log.With(slog.String("handler", "messages")),
	}
}

// Register mounts the message routes on the Echo instance.
func (h *MessagesHandler) Register(e *echo.Echo) {
	e.GET("/messages", h.ListByChannel)
	e.PUT("/message", h.Edit)
}

// ListByChannel returns a channel's message history in storage order.
func (h *MessagesHandler) ListByChannel(c echo.Context) error {
	channelID := strings.TrimSpace(c.QueryParam("channelId"))
	if channelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channelId is required")
	}
	items, err := h.store.ListByChannel(c.Request().Context(), channelID)
	if err != nil {
		if errors.Is(err, messages.ErrInvalidChannel) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, items)
}

// Edit overwrites a message's content, then notifies the message's full
// room (sender included) with an editedMessage event. A missing message is
// reported as a bad request and emits no event.
func (h *MessagesHandler) Edit(c echo.Context) error {
	// Any authenticated user may edit; the editor's identity is not
	// checked against the author.
	if _, err := auth.ClaimsFromContext(c); err != nil {
		return err
	}
	var req EditMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message id and content are required")
	}

	updated, err := h.store.Edit(c.Request().Context(), req.ID, req.Content)
	if err != nil {
		if errors.Is(err, messages.ErrMessageNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "message not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if updated.ChannelID != "" && h.hub != nil {
		author := users.Summary{ID: updated.AuthorID}
		if updated.Author != nil {
			author = *updated.Author
		}
		event, err := realtime.NewEvent(realtime.EventEdited, realtime.EditedPayload{
			MessageID: updated.ID,
			ChannelID: updated.ChannelID,
			Content:   updated.Content,
			User:      author,
		})
		if err == nil {
			h.hub.BroadcastToRoom(updated.ChannelID, "", event)
		} else {
			h.logger.Error("encode edit event failed", slog.Any("error", err))
		}
	}
	return respond(c, http.StatusOK, updated)
}
