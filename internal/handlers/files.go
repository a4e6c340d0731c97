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
)

// FilesHandler serves channel-scoped file upload, listing, and download.
type FilesHandler struct {
	service   *files.Service
	directory channels.Directory
	logger    *slog.Logger
}

// NewFilesHandler creates a files handler.
func NewFilesHandler(log *slog.Logger, service *files.Service, directory channels.Directory) *FilesHandler {
	return &FilesHandler{
		service:   service,
		directory: directory,
		logger:    log.With(slog.String("handler", "files")),
	}
}

// Register mounts the file routes on the Echo instance.
func (h *FilesHandler) Register(e *echo.Echo) {
	e.POST("/file", h.Upload)
	e.GET("/files", h.ListByChannel)
	e.GET("/file/:id", h.Download)
}

// Upload stores a multipart file into a channel. The caller must be a
// channel member or the owner.
func (h *FilesHandler) Upload(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	channelID := strings.TrimSpace(c.FormValue("channelId"))
	if channelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channelId is required")
	}
	if err := h.requireAccess(c, channelID, userID); err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	source, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer source.Close()

	file, err := h.service.Upload(c.Request().Context(), files.UploadInput{
		ChannelID:  channelID,
		UploaderID: userID,
		Name:       header.Filename,
		Mime:       header.Header.Get(echo.HeaderContentType),
		Reader:     source,
	})
	if err != nil {
		if errors.Is(err, files.ErrFileTooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds size limit")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return respond(c, http.StatusCreated, file)
}

// ListByChannel returns the files shared into a channel.
func (h *FilesHandler) ListByChannel(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	channelID := strings.TrimSpace(c.QueryParam("channelId"))
	if channelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "channelId is required")
	}
	if err := h.requireAccess(c, channelID, userID); err != nil {
		return err
	}

	items, err := h.service.ListByChannel(c.Request().Context(), channelID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return respond(c, http.StatusOK, items)
}

// Download streams a file's bytes.
func (h *FilesHandler) Download(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	reader, file, err := h.service.Open(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, files.ErrFileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "file not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer reader.Close()

	if err := h.requireAccess(c, file.ChannelID, userID); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+file.Name+`"`)
	return c.Stream(http.StatusOK, file.Mime, reader)
}

func (h *FilesHandler) requireAccess(c echo.Context, channelID, userID string) error {
	ok, err := h.directory.CanAccess(c.Request().Context(), channelID, userID)
	if err != nil {
		if errors.Is(err, channels.ErrChannelNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden, "not a channel member")
	}
	return nil
}
