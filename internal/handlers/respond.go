// Package handlers provides HTTP API handlers for the wardline server.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the standard REST response body: {success, data} on success,
// {success, error} on failure.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// HTTPErrorHandler translates every handler error into the JSON envelope.
// No error crosses the HTTP boundary unhandled.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := "internal server error"
		if httpErr, ok := err.(*echo.HTTPError); ok {
			status = httpErr.Code
			switch m := httpErr.Message.(type) {
			case string:
				message = m
			case error:
				message = m.Error()
			default:
				message = http.StatusText(status)
			}
		} else {
			log.Error("unhandled request error", slog.Any("error", err))
		}
		if writeErr := c.JSON(status, Envelope{Success: false, Error: message}); writeErr != nil {
			log.Error("write error response failed", slog.Any("error", writeErr))
		}
	}
}
