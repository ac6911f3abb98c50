package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"predictpro/internal/auth"
	"predictpro/internal/domain"
	"predictpro/internal/notify"
	"predictpro/internal/settings"
	"predictpro/internal/users"
)

func setupAuthRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.User{}, &domain.InventoryItem{}, &domain.Referral{},
		&domain.ActivityEntry{}, &settings.Document{},
	))
	store, err := settings.Load(db)
	require.NoError(t, err)
	svc := users.NewService(db, auth.NewManager("test-secret"), store, notify.LogMailer{})

	r := gin.New()
	r.POST("/api/register", RegisterHandler(svc))
	r.POST("/api/login", LoginHandler(svc))
	r.POST("/api/forgot-password", ForgotPasswordHandler(svc))
	return r, db
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterHandler(t *testing.T) {
	r, _ := setupAuthRouter(t)

	t.Run("Missing Fields", func(t *testing.T) {
		w := postJSON(r, "/api/register", gin.H{"email": "a@gmail.com"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Creates Account", func(t *testing.T) {
		w := postJSON(r, "/api/register", gin.H{"email": "new@gmail.com", "password": "secret123"})
		assert.Equal(t, http.StatusCreated, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.NotEmpty(t, body["refCode"])
	})

	t.Run("Duplicate Email Is 400", func(t *testing.T) {
		w := postJSON(r, "/api/register", gin.H{"email": "new@gmail.com", "password": "secret123"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Email already in use")
	})

	t.Run("Non-Gmail Is 400", func(t *testing.T) {
		w := postJSON(r, "/api/register", gin.H{"email": "nope@example.com", "password": "secret123"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLoginHandler(t *testing.T) {
	r, db := setupAuthRouter(t)
	w := postJSON(r, "/api/register", gin.H{"email": "who@gmail.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("Success Returns Token", func(t *testing.T) {
		w := postJSON(r, "/api/login", gin.H{"emailOrId": "who@gmail.com", "password": "secret123"})
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, false, body["needsContract"])
	})

	t.Run("Wrong Password Is 401", func(t *testing.T) {
		w := postJSON(r, "/api/login", gin.H{"emailOrId": "who@gmail.com", "password": "nope-wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Banned Is 403 With Reason", func(t *testing.T) {
		require.NoError(t, db.Model(&domain.User{}).Where("email = ?", "who@gmail.com").
			Updates(map[string]any{"is_banned": true, "ban_reason": "chargeback"}).Error)
		w := postJSON(r, "/api/login", gin.H{"emailOrId": "who@gmail.com", "password": "secret123"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "chargeback")
	})
}

func TestForgotPasswordHandlerNeverLeaks(t *testing.T) {
	r, _ := setupAuthRouter(t)
	postJSON(r, "/api/register", gin.H{"email": "real@gmail.com", "password": "secret123"})

	known := postJSON(r, "/api/forgot-password", gin.H{"email": "real@gmail.com"})
	unknown := postJSON(r, "/api/forgot-password", gin.H{"email": "nobody@gmail.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}
