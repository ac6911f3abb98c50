package api

import (
	"context" // Context for Redis operations
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"predictpro/internal/ledger"
	"predictpro/internal/middleware"
	"predictpro/internal/notify"
	"predictpro/internal/settings"
	"predictpro/internal/users"
	"predictpro/internal/utils"
)

const viewCacheTTL = 60 * time.Second

type RedeemRequest struct {
	Message string `json:"mpesaMessage" binding:"required"` // Raw deposit confirmation text
}

// AppLoadHandler returns the caller's profile plus the settings snapshot,
// cached briefly per user.
func AppLoadHandler(svc *users.Service, st *settings.Store, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()
		cacheKey := utils.AppLoadKey(user.ID)
		var cached gin.H
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached)
			return
		}
		full, err := svc.Get(user.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := gin.H{"user": full, "settings": st.Snapshot(), "cached": false}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, viewCacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// RedeemHandler runs the voucher redemption protocol for the caller.
func RedeemHandler(svc *ledger.Service, rdb *redis.Client, mailer notify.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req RedeemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		result, err := svc.Redeem(user.ID, req.Message)
		if err != nil {
			writeError(c, err)
			return
		}
		mailer.SendWalletReceipt(user.Email, user.Username, result.Amount, result.NewBalance, result.TxnID)
		invalidateUserViews(c, rdb, user.ID)
		c.JSON(http.StatusOK, gin.H{
			"message":    "Success! " + strconv.FormatInt(result.Amount, 10) + " coins added.",
			"newBalance": result.NewBalance,
		})
	}
}

// ActivityHandler returns the caller's slice of the activity ledger.
func ActivityHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		ctx := context.Background()
		cacheKey := utils.ActivityKey(user.ID)
		var cached gin.H
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached)
			return
		}
		entries, err := ledger.ActivityFor(db, user.ID, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := gin.H{"activity": entries, "cached": false}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, viewCacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// invalidateUserViews drops the cached views touched by a wallet mutation.
func invalidateUserViews(c *gin.Context, rdb *redis.Client, userID uint) {
	if rdb == nil {
		return
	}
	_ = utils.DeleteCache(context.Background(), rdb,
		utils.AppLoadKey(userID),
		utils.ActivityKey(userID),
		utils.AdminUsersKey(),
	)
}
