package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wardline/wardline/internal/auth"
	"github.com/wardline/wardline/internal/channels"
	"github.com/wardline/wardline/internal/identity"
)

// ChannelsHandler serves the channel directory endpoints.
type ChannelsHandler struct {
	service *channels.Service
	logger  *slog.Logger
}

// CreateChannelRequest is the body for POST /create-channel.
type CreateChannelRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Users       []string `json:"users"`
	Tag         string   `json:"tag"`
	Specialty   bool     `json:"specialty"`
}

// AddMembersRequest is the body for PUT /channel/users.
type AddMembersRequest struct {
	ID    string   `json:"id"`
	Users []string `json:"users"`
}

// NewChannelsHandler creates a channels handler.
func NewChannelsHandler(log *slog.Logger, service *channels.Service) *ChannelsHandler {
	return &ChannelsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "channels")),
	}
}

// Register mounts the channel routes on the Echo instance.
func (h *ChannelsHandler) Register(e *echo.Echo) {
	e.POST("/create-channel", h.CreateChannel, requireChannelManager)
	e.PUT("/channel/users", h.AddMembers, requireChannelManager)
	e.GET("/channels", h.ListChannels)
	e.GET("/channel", h.ListMyChannels)
}

// requireChannelManager gates channel mutation on the caller's role.
func requireChannelManager(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := auth.ClaimsFromContext(c)
		if err != nil {
			return err
		}
		if !identity.CanManageChannels(claims.Role) {
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
		return next(c)
	}
}

// CreateChannel upserts a channel keyed by its case-insensitive name. The
// authenticated caller becomes the owner.
func (h *ChannelsHandler) CreateChannel(c echo.Context) error {
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return err
	}
	var req CreateChannelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	channel, err := h.service.CreateOrUpdate(c.Request().Context(), channels.UpsertInput{
		Name:        req.Name,
		Description: req.Description,
		Tag:         req.Tag,
		Specialty:   req.Specialty,
		OwnerID:     claims.UserID,
		MemberIDs:   req.Users,
	})
	if err != nil {
		if errors.Is(err, channels.ErrTagConflict) {
			return echo.NewHTTPError(http.StatusConflict, "channel tag already in use")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusCreated, channel)
}

// AddMembers appends users to a channel's member set. Only the owner may
// add members; a missing channel and a non-owner requester report the same
// not-found error.
func (h *ChannelsHandler) AddMembers(c echo.Context) error {
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return err
	}
	var req AddMembersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ID == "" || len(req.Users) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "channel id and users are required")
	}

	if err := h.service.AddMembers(c.Request().Context(), req.ID, claims.UserID, req.Users); err != nil {
		if errors.Is(err, channels.ErrChannelNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ListChannels returns every channel with members resolved.
func (h *ChannelsHandler) ListChannels(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, items)
}

// ListMyChannels returns the channels whose member set contains the caller.
func (h *ChannelsHandler) ListMyChannels(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, items)
}
