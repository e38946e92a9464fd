package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupAuditDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestAuditLog_RecordsWrites(t *testing.T) {
	db := setupAuditDB(t)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextIdentity, &services.Identity{UID: "alice"})
		c.Next()
	})
	router.Use(AuditLog(services.NewSystemLogService(db)))
	router.GET("/api/prompts", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.PUT("/api/prompts/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, req := range []*http.Request{
		httptest.NewRequest("GET", "/api/prompts", nil),
		httptest.NewRequest("PUT", "/api/prompts/p1", strings.NewReader(`{"title":"x","token":"abc"}`)),
	} {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	var rows []models.SystemLog
	db.Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("expected only the write to be audited, got %d rows", len(rows))
	}
	row := rows[0]
	if row.UserID != "alice" || row.Module != "Prompts" || row.Action != "Update" {
		t.Errorf("row = %+v", row)
	}
	if row.Level != services.LevelWarning {
		t.Errorf("Level = %q, expected warning for a 404", row.Level)
	}
	if strings.Contains(row.Extra, "abc") {
		t.Errorf("token leaked into audit extra: %s", row.Extra)
	}
}

func TestAuditLog_KeepsBodyForHandler(t *testing.T) {
	db := setupAuditDB(t)
	var got string
	router := gin.New()
	router.Use(AuditLog(services.NewSystemLogService(db)))
	router.POST("/api/session", func(c *gin.Context) {
		var body struct {
			UID string `json:"uid"`
		}
		_ = c.ShouldBindJSON(&body)
		got = body.UID
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("POST", "/api/session", strings.NewReader(`{"uid":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if got != "u1" {
		t.Errorf("handler saw uid %q", got)
	}
}

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path, method   string
		module, action string
	}{
		{"/api/prompts", "POST", "Prompts", "Create"},
		{"/api/prompts/:id", "PUT", "Prompts", "Update"},
		{"/api/prompts/:id", "DELETE", "Prompts", "Delete"},
		{"/api/prompts/:id/render", "POST", "Prompts", "Render"},
		{"/api/profile/sync", "POST", "Profile", "Sync"},
		{"/api/session", "DELETE", "Session", "Delete"},
		{"", "POST", "Unknown", "Create"},
	}

	for _, tt := range tests {
		module, action := parseRouteInfo(tt.path, tt.method)
		if module != tt.module || action != tt.action {
			t.Errorf("parseRouteInfo(%q, %q) = %q, %q; expected %q, %q", tt.path, tt.method, module, action, tt.module, tt.action)
		}
	}
}

func TestFormatAuditMessage(t *testing.T) {
	if got := formatAuditMessage("alice", "PUT", "/api/prompts/1", 200); got != "[Audit] alice PUT /api/prompts/1 → OK" {
		t.Errorf("got %q", got)
	}
	if got := formatAuditMessage("", "POST", "/api/session", 400); got != "[Audit] anonymous POST /api/session → Failed" {
		t.Errorf("got %q", got)
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	tests := []struct {
		in, expected string
	}{
		{`{"token":"abc"}`, `{"token":"***"}`},
		{`{"apiKey": "k"}`, `{"apiKey": "***"}`},
		{`{"title":"hello"}`, `{"title":"hello"}`},
		{`{"token":42}`, `{"token":42}`},
	}

	for _, tt := range tests {
		if got := maskSensitiveFields(tt.in); got != tt.expected {
			t.Errorf("maskSensitiveFields(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}
