package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wardline/wardline/internal/auth"
	"github.com/wardline/wardline/internal/channels"
	"github.com/wardline/wardline/internal/files"
	"github.com/wardline/wardline/internal/forward"
	"github.com/wardline/wardline/internal/messages"
)

// ForwardHandler serves message and file forwarding.
type ForwardHandler struct {
	service *forward.Service
	logger  *slog.Logger
}

// ForwardRequest is the body for POST /forward and POST /forward-file:
// the source id and the destination channel tag.
type ForwardRequest struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

// NewForwardHandler creates a forward handler.
func NewForwardHandler(log *slog.Logger, service *forward.Service) *ForwardHandler {
	return &ForwardHandler{
		service: service,
		logger:  log.With(slog.String("handler", "forward")),
	}
}

// Register mounts the forwarding routes on the Echo instance.
func (h *ForwardHandler) Register(e *echo.Echo) {
	e.POST("/forward", h.ForwardMessage)
	e.POST("/forward-file", h.ForwardFile)
}

// ForwardMessage copies a message into the channel owning the given tag.
func (h *ForwardHandler) ForwardMessage(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	req, err := bindForwardRequest(c)
	if err != nil {
		return err
	}

	forwarded, err := h.service.ForwardMessage(c.Request().Context(), userID, req.ID, req.Tag)
	if err != nil {
		if errors.Is(err, channels.ErrChannelNotFound) || errors.Is(err, messages.ErrMessageNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusCreated, forwarded)
}

// ForwardFile copies a file record into the channel owning the given tag.
func (h *ForwardHandler) ForwardFile(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	req, err := bindForwardRequest(c)
	if err != nil {
		return err
	}

	copied, err := h.service.ForwardFile(c.Request().Context(), userID, req.ID, req.Tag)
	if err != nil {
		if errors.Is(err, channels.ErrChannelNotFound) || errors.Is(err, files.ErrFileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusCreated, copied)
}

func bindForwardRequest(c echo.Context) (ForwardRequest, error) {
	var req ForwardRequest
	if err := c.Bind(&req); err != nil {
		return ForwardRequest{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Tag) == "" {
		return ForwardRequest{}, echo.NewHTTPError(http.StatusBadRequest, "id and tag are required")
	}
	return req, nil
}
