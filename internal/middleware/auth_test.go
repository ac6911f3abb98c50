package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"predictpro/internal/auth"
	"predictpro/internal/domain"
	"predictpro/internal/gate"
	"predictpro/internal/settings"
)

func setupTest(t *testing.T) (*gorm.DB, *auth.Manager, *settings.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &settings.Document{}))
	store, err := settings.Load(db)
	require.NoError(t, err)
	return db, auth.NewManager("test-secret"), store
}

func createUser(t *testing.T, db *gorm.DB, email string, role domain.Role) *domain.User {
	t.Helper()
	user := domain.User{
		Email:      email,
		Username:   email,
		Password:   "x",
		Role:       role,
		RefCode:    "ref-" + email,
		JoinDate:   time.Now(),
		LastActive: time.Now(),
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func authedRouter(tokens *auth.Manager, db *gorm.DB, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Authenticate(tokens, db)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"email": user.Email})
	})
	r.GET("/protected", handlers...)
	return r
}

func doGet(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	db, tokens, _ := setupTest(t)
	user := createUser(t, db, "mw@gmail.com", domain.RoleUser)
	r := authedRouter(tokens, db)

	t.Run("Missing Header", func(t *testing.T) {
		w := doGet(r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Garbage Token", func(t *testing.T) {
		w := doGet(r, "not-a-token")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		token, err := tokens.Issue(user.ID, user.Role)
		require.NoError(t, err)
		w := doGet(r, token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "mw@gmail.com")
	})

	t.Run("Deleted User", func(t *testing.T) {
		ghost := createUser(t, db, "ghost@gmail.com", domain.RoleUser)
		token, err := tokens.Issue(ghost.ID, ghost.Role)
		require.NoError(t, err)
		require.NoError(t, db.Delete(&domain.User{}, ghost.ID).Error)
		w := doGet(r, token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Ban Lands Before Token Expiry", func(t *testing.T) {
		token, err := tokens.Issue(user.ID, user.Role)
		require.NoError(t, err)
		require.NoError(t, db.Model(&domain.User{}).Where("id = ?", user.ID).
			Updates(map[string]any{"is_banned": true, "ban_reason": "abuse"}).Error)
		w := doGet(r, token)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "abuse")
	})
}

func TestRequire(t *testing.T) {
	db, tokens, store := setupTest(t)
	plain := createUser(t, db, "plain@gmail.com", domain.RoleUser)
	admin := createUser(t, db, "admin@gmail.com", domain.RoleAdmin)
	r := authedRouter(tokens, db, Require(gate.ActionCreateVoucher, store))

	t.Run("Role Below Threshold", func(t *testing.T) {
		token, err := tokens.Issue(plain.ID, plain.Role)
		require.NoError(t, err)
		w := doGet(r, token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Role At Threshold", func(t *testing.T) {
		token, err := tokens.Issue(admin.ID, admin.Role)
		require.NoError(t, err)
		w := doGet(r, token)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
