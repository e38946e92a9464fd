package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/promptlib/internal/config"
)

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatalf("no session cookie in %v", w.Header().Values("Set-Cookie"))
	return nil
}

func TestSessionHandler_Set(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "POST", "/api/session", "", map[string]string{"uid": "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if strings.TrimSpace(w.Body.String()) != `{"success":true}` {
		t.Errorf("body = %s", w.Body.String())
	}

	cookie := sessionCookie(t, w)
	if cookie.Value != "alice" {
		t.Errorf("Value = %q", cookie.Value)
	}
	if cookie.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Errorf("MaxAge = %d, expected 7 days", cookie.MaxAge)
	}
	if !cookie.HttpOnly {
		t.Error("cookie must be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, expected Lax", cookie.SameSite)
	}
	if cookie.Path != "/" {
		t.Errorf("Path = %q", cookie.Path)
	}
}

func TestSessionHandler_SetRequiresUID(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing uid", map[string]string{}},
		{"empty uid", map[string]string{"uid": ""}},
		{"no body", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, "POST", "/api/session", "", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("no cookie should be set")
			}
		})
	}
}

func TestSessionHandler_Clear(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, "DELETE", "/api/session", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cookie := sessionCookie(t, w); cookie.MaxAge >= 0 || cookie.Value != "" {
		t.Errorf("cookie not cleared: %+v", cookie)
	}
}

func TestSessionHandler_ConfiguredCookie(t *testing.T) {
	h := NewSessionHandler(config.SessionConfig{CookieName: "owner", MaxAge: time.Hour, Secure: true})
	r := gin.New()
	r.POST("/session", h.Set)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/session", strings.NewReader(`{"uid":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if c := cookies[0]; c.Name != "owner" || c.MaxAge != 3600 || !c.Secure {
		t.Errorf("cookie = %+v", c)
	}
}
