package handlers

import (
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/wardline/wardline/internal/auth"
	"github.com/wardline/wardline/internal/identity"
)

func authenticateRole(c echo.Context, userID, role string) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{UserID: userID, Role: role})
	c.Set("user", token)
}

func TestRequireChannelManager(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		role       string
		wantStatus int
		wantNext   bool
	}{
		{name: "clinician rejected", role: identity.RoleClinician, wantStatus: http.StatusForbidden},
		{name: "unknown role rejected", role: "JANITOR", wantStatus: http.StatusForbidden},
		{name: "admin allowed", role: identity.RoleAdmin, wantNext: true},
		{name: "superuser allowed", role: identity.RoleSuperuser, wantNext: true},
		{name: "lowercase role allowed", role: "admin", wantNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			nextCalled := false
			guarded := requireChannelManager(func(c echo.Context) error {
				nextCalled = true
				return c.NoContent(http.StatusNoContent)
			})

			c, _ := newTestContext(t, http.MethodPost, "/create-channel", "")
			authenticateRole(c, "user-1", tt.role)
			err := guarded(c)

			if tt.wantNext {
				if err != nil {
					t.Fatalf("expected role %q to pass, got %v", tt.role, err)
				}
				if !nextCalled {
					t.Fatalf("expected handler to run for role %q", tt.role)
				}
				return
			}
			if nextCalled {
				t.Fatalf("handler must not run for role %q", tt.role)
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tt.wantStatus {
				t.Fatalf("expected %d for role %q, got %v", tt.wantStatus, tt.role, err)
			}
		})
	}
}

func TestRequireChannelManagerWithoutClaims(t *testing.T) {
	t.Parallel()

	guarded := requireChannelManager(func(c echo.Context) error {
		t.Fatal("handler must not run without claims")
		return nil
	})

	c, _ := newTestContext(t, http.MethodPost, "/create-channel", "")
	err := guarded(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %v", err)
	}
}
