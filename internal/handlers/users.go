package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wardline/wardline/internal/auth"
	"github.com/wardline/wardline/internal/identity"
	"github.com/wardline/wardline/internal/users"
)

// UsersHandler serves the admin user listing.
type UsersHandler struct {
	service *users.Service
	logger  *slog.Logger
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(log *slog.Logger, service *users.Service) *UsersHandler {
	return &UsersHandler{
		service: service,
		logger:  log.With(slog.String("handler", "users")),
	}
}

// Register mounts the user routes on the Echo instance.
func (h *UsersHandler) Register(e *echo.Echo) {
	e.GET("/users", h.List, auth.RequireRoles(identity.RoleAdmin, identity.RoleSuperuser))
}

// List returns all platform users.
func (h *UsersHandler) List(c echo.Context) error {
	items, err := h.service.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, items)
}
