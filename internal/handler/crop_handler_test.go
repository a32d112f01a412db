package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agrimaster/internal/db"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestServer 启动带会话中间件的测试引擎并注册登录用户。
// 返回携带会话 Cookie 的请求工具，便于按真实路径测试处理器。
func setupTestServer(t *testing.T) (*gin.Engine, []*http.Cookie, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(
		&db.User{}, &db.CropRecord{}, &db.GrowthStage{}, &db.Task{}, &db.GrowthLog{},
		&db.Field{}, &db.FieldHealthRecord{}, &db.WeatherSnapshot{}, &db.WeatherAlert{},
		&db.CommunityPost{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	db.DB = gdb

	api := NewAPI(gdb)
	r := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("agrimaster_session", store))

	v1 := r.Group("/api")
	v1.POST("/auth/register", api.Register)
	auth := v1.Group("")
	auth.Use(AuthRequired())
	auth.GET("/crops", api.ListCrops)
	auth.POST("/crops", api.CreateCrop)
	auth.GET("/crops/:id", api.GetCrop)
	auth.POST("/crops/:id/tasks", api.AddTask)
	auth.GET("/crop-notifications", api.CropNotifications)

	// 注册并登录，拿到会话 Cookie
	body, _ := json.Marshal(map[string]any{
		"name":     "老张",
		"email":    "zhang@example.com",
		"password": "field-password-1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed with status %d: %s", w.Code, w.Body.String())
	}

	cleanup := func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	return r, w.Result().Cookies(), cleanup
}

func doJSON(t *testing.T, r *gin.Engine, cookies []*http.Cookie, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCropEndpointsRequireAuth(t *testing.T) {
	r, _, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/crops", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestCreateCropAndFetch(t *testing.T) {
	r, cookies, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, r, cookies, http.MethodPost, "/api/crops", map[string]any{
		"crop_name":             "番茄",
		"variety":               "普罗旺斯",
		"sowing_date":           "2025-03-01",
		"expected_harvest_date": "2025-06-09",
		"area":                  2.5,
		"area_unit":             "acre",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Success bool `json:"success"`
		Data    struct {
			ID           uint   `json:"id"`
			CurrentStage string `json:"current_stage"`
			GrowthStages []struct {
				Name string `json:"name"`
			} `json:"growth_stages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !created.Success || created.Data.ID == 0 {
		t.Fatalf("unexpected envelope: %s", w.Body.String())
	}
	if len(created.Data.GrowthStages) != 6 {
		t.Fatalf("expected 6 generated stages, got %d", len(created.Data.GrowthStages))
	}

	w = doJSON(t, r, cookies, http.MethodGet, fmt.Sprintf("/api/crops/%d", created.Data.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	// 日期跨度不合法时建档失败
	w = doJSON(t, r, cookies, http.MethodPost, "/api/crops", map[string]any{
		"crop_name":             "坏记录",
		"sowing_date":           "2025-03-01",
		"expected_harvest_date": "2025-03-01",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for invalid span, got %d", w.Code)
	}
}

func TestCropNotificationsPreview(t *testing.T) {
	r, cookies, cleanup := setupTestServer(t)
	defer cleanup()

	w := doJSON(t, r, cookies, http.MethodPost, "/api/crops", map[string]any{
		"crop_name":             "小麦",
		"sowing_date":           "2025-03-01",
		"expected_harvest_date": "2025-07-01",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create crop failed: %d", w.Code)
	}
	var created struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// 一个已到期的任务应出现在同步预览里
	w = doJSON(t, r, cookies, http.MethodPost, fmt.Sprintf("/api/crops/%d/tasks", created.Data.ID), map[string]any{
		"type":         "irrigation",
		"title":        "浇水",
		"planned_date": "2025-03-02",
		"priority":     "urgent",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add task failed: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, cookies, http.MethodGet, "/api/crop-notifications", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var preview struct {
		Data struct {
			Notifications []struct {
				Type     string `json:"type"`
				Priority string `json:"priority"`
			} `json:"notifications"`
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &preview); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if preview.Data.Count == 0 {
		t.Fatalf("expected at least one notification: %s", w.Body.String())
	}
	if preview.Data.Notifications[0].Priority != "urgent" {
		t.Fatalf("urgent task should sort first: %+v", preview.Data.Notifications)
	}

	// 预览是纯读取：重复请求结果一致
	w2 := doJSON(t, r, cookies, http.MethodGet, "/api/crop-notifications", nil)
	var second struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &second); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if second.Data.Count != preview.Data.Count {
		t.Fatalf("preview must not consume notifications: %d vs %d", preview.Data.Count, second.Data.Count)
	}
}
