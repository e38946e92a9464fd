package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/promptlib/internal/config"
	"github.com/huangang/promptlib/internal/middleware"
	"github.com/huangang/promptlib/internal/models"
	"github.com/huangang/promptlib/internal/services"
	"github.com/huangang/promptlib/internal/utils"
	"github.com/huangang/promptlib/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-handler-testing")
}

type testApp struct {
	router *gin.Engine
	db     *gorm.DB
	feed   *services.PromptFeed
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// newTestApp wires the handlers the way the server does, with an in-memory
// cache and a fast retry policy.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := setupTestDB(t)
	cache := services.NewMemoryTagCache(64, time.Minute)
	notifier := services.NewLocalNotifier()
	store := services.NewPromptStore(db)
	reader := services.NewPromptReader(store, cache, 0)
	feed := services.NewPromptFeed(store, notifier, 0)
	logs := services.NewSystemLogService(db)

	prompts := NewPromptHandler(services.NewPromptService(store, cache, notifier), reader)
	profiles := NewProfileHandler(reader, services.NewUserProfileService(db, cache))
	session := NewSessionHandler(config.SessionConfig{})
	events := NewEventsHandler(feed, reader, services.ViewOptions{
		ActionTimeout:     time.Second,
		PermissionRetries: 1,
		RetryBase:         10 * time.Millisecond,
	}, 0)

	r := gin.New()
	r.Use(middleware.SessionMarker(""))
	r.GET("/health", NewHealthHandler(db, nil, feed).CheckHealth)
	r.POST("/api/session", session.Set)
	r.DELETE("/api/session", session.Clear)

	api := r.Group("/api", middleware.IdentityRequired(), middleware.AuditLog(logs))
	api.GET("/prompts", prompts.List)
	api.GET("/prompts/tags", prompts.Tags)
	api.GET("/prompts/:id", prompts.GetByID)
	api.POST("/prompts", prompts.Create)
	api.PUT("/prompts/:id", prompts.Update)
	api.DELETE("/prompts/:id", prompts.Delete)
	api.POST("/prompts/:id/render", prompts.Render)
	api.GET("/profile", profiles.Get)
	api.POST("/profile/sync", profiles.Sync)
	api.GET("/activity", NewActivityHandler(logs).List)
	api.GET("/events/prompts", events.StreamPrompts)

	return &testApp{router: r, db: db, feed: feed}
}

func bearer(t *testing.T, uid string) string {
	t.Helper()
	token, err := utils.GenerateIdentityToken(uid, uid+"@example.com", "User "+uid, "", 1)
	if err != nil {
		t.Fatalf("GenerateIdentityToken() error = %v", err)
	}
	return "Bearer " + token
}

// do sends a request as uid ("" for anonymous) and returns the recorder.
func (a *testApp) do(t *testing.T, method, path, uid string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", bearer(t, uid))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// envelope is the decoded response.Response with Data kept raw.
type envelope struct {
	Code    int             `json:"code"`
	Kind    response.Kind   `json:"kind"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", env.Data, err)
		}
	}
	return env
}

func seedPrompt(t *testing.T, db *gorm.DB, uid, title, content string, tags ...string) models.Prompt {
	t.Helper()
	p := models.Prompt{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		Tags:      datatypes.JSONSlice[string](tags),
		UserID:    uid,
		CreatedAt: models.Now(),
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("failed to seed prompt: %v", err)
	}
	return p
}

func seedProfile(t *testing.T, db *gorm.DB, uid string) {
	t.Helper()
	if err := db.Create(&models.UserProfile{UID: uid, DisplayName: uid, CreatedAt: models.Now(), UpdatedAt: models.Now()}).Error; err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
}
