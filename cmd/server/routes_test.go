package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/promptlib/internal/config"
	"github.com/huangang/promptlib/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, redisAddr string) (*gin.Engine, *appServices) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	cfg.JWT.Secret = "routes-test-secret"
	cfg.Log.RetentionDays = 0
	if redisAddr != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = redisAddr
	}

	svc := bootstrap(cfg)
	t.Cleanup(svc.shutdown)

	r := gin.New()
	registerRoutes(r, svc)
	return r, svc
}

func TestRoutes_Wiring(t *testing.T) {
	r, _ := newTestServer(t, "")
	token, _ := utils.GenerateIdentityToken("alice", "", "", "", 1)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  bool
		status int
	}{
		{"health", "GET", "/health", "", false, http.StatusOK},
		{"session set", "POST", "/api/session", `{"uid":"alice"}`, false, http.StatusOK},
		{"session missing uid", "POST", "/api/session", `{}`, false, http.StatusBadRequest},
		{"session clear", "DELETE", "/api/session", "", false, http.StatusOK},
		{"prompts anonymous", "GET", "/api/prompts", "", false, http.StatusUnauthorized},
		{"prompts", "GET", "/api/prompts", "", true, http.StatusOK},
		{"create prompt", "POST", "/api/prompts", `{"title":"t","content":"c"}`, true, http.StatusCreated},
		{"profile missing", "GET", "/api/profile", "", true, http.StatusNotFound},
		{"profile sync", "POST", "/api/profile/sync", "", true, http.StatusOK},
		{"activity", "GET", "/api/activity", "", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.token {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestBootstrap_UsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	_, svc := newTestServer(t, mr.Addr())

	if svc.redis == nil {
		t.Fatal("expected the Redis client to be kept")
	}
}

func TestBootstrap_FallsBackWithoutRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	_, svc := newTestServer(t, addr)
	if svc.redis != nil {
		t.Error("unreachable Redis should fall back to the in-process cache")
	}
}
