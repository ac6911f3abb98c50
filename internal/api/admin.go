package api

import (
	"context" // Context for Redis operations
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"predictpro/internal/domain"
	"predictpro/internal/ledger"
	"predictpro/internal/middleware"
	"predictpro/internal/notify"
	"predictpro/internal/settings"
	"predictpro/internal/users"
	"predictpro/internal/utils"
)

type CreateVoucherRequest struct {
	TxnID  string `json:"txnId" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
}

// CreateVoucherHandler registers a new deposit voucher.
func CreateVoucherHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req CreateVoucherRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		voucher, err := svc.CreateVoucher(admin.ID, req.TxnID, req.Amount)
		if err != nil {
			writeError(c, err)
			return
		}
		_ = utils.DeleteCache(context.Background(), rdb, utils.AdminVouchersKey())
		c.JSON(http.StatusCreated, gin.H{"message": "Voucher created", "voucher": voucher})
	}
}

// ListVouchersHandler returns recent vouchers for the admin view.
func ListVouchersHandler(svc *ledger.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		var cached gin.H
		if found, err := utils.GetCache(ctx, rdb, utils.AdminVouchersKey(), &cached); err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached)
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		vouchers, err := svc.ListVouchers(limit)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := gin.H{"vouchers": vouchers, "cached": false}
		_ = utils.SetCache(ctx, rdb, utils.AdminVouchersKey(), resp, viewCacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// ListUsersHandler returns recent users for the admin view.
func ListUsersHandler(svc *users.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		var cached gin.H
		if found, err := utils.GetCache(ctx, rdb, utils.AdminUsersKey(), &cached); err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached)
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		list, err := svc.List(limit)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := gin.H{"users": list, "cached": false}
		_ = utils.SetCache(ctx, rdb, utils.AdminUsersKey(), resp, viewCacheTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// UserActivityHandler returns one user's ledger slice for the audit view.
func UserActivityHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		targetID, err := strconv.Atoi(c.Param("userId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		entries, err := ledger.ActivityFor(db, uint(targetID), limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"activity": entries})
	}
}

type ModerateRequest struct {
	UserID uint   `json:"userId" binding:"required"`
	Action string `json:"action" binding:"required"` // ban, unban, flag, unflag, resetPassword
	Param  string `json:"param"`                     // ban reason or new password
}

// ModerateUserHandler applies a moderation action. The capability gate inside
// the service decides per-role access, including the conditional assistant
// password reset, so this route is not tier-restricted at the router.
func ModerateUserHandler(svc *users.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req ModerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := svc.Moderate(actor, req.UserID, req.Action, req.Param); err != nil {
			writeError(c, err)
			return
		}
		invalidateUserViews(c, rdb, req.UserID)
		c.JSON(http.StatusOK, gin.H{"message": "Action applied"})
	}
}

type CreateAssistantRequest struct {
	Email        string `json:"email" binding:"required"`
	TempPassword string `json:"tempPassword" binding:"required"`
}

// CreateAssistantHandler provisions a support account.
func CreateAssistantHandler(svc *users.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req CreateAssistantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		assistant, err := svc.CreateAssistant(actor, req.Email, req.TempPassword)
		if err != nil {
			writeError(c, err)
			return
		}
		_ = utils.DeleteCache(context.Background(), rdb, utils.AdminUsersKey())
		c.JSON(http.StatusCreated, gin.H{"message": "Assistant created", "assistant": assistant})
	}
}

// DeleteAssistantHandler removes a support account.
func DeleteAssistantHandler(svc *users.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		targetID, err := strconv.Atoi(c.Param("userId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
			return
		}
		if err := svc.DeleteAssistant(actor, uint(targetID)); err != nil {
			writeError(c, err)
			return
		}
		_ = utils.DeleteCache(context.Background(), rdb, utils.AdminUsersKey())
		c.JSON(http.StatusOK, gin.H{"message": "Assistant deleted"})
	}
}

// PurgeInactiveHandler removes idle free accounts past the retention window.
func PurgeInactiveHandler(svc *users.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		purged, err := svc.PurgeInactive(actor)
		if err != nil {
			writeError(c, err)
			return
		}
		_ = utils.DeleteCache(context.Background(), rdb, utils.AdminUsersKey())
		c.JSON(http.StatusOK, gin.H{"message": "Purge complete", "purged": purged})
	}
}

// UpsertProductHandler creates or updates one catalog item.
func UpsertProductHandler(st *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p settings.Product
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := st.UpsertProduct(p); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product saved"})
	}
}

// DeleteProductHandler removes one catalog item.
func DeleteProductHandler(st *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.DeleteProduct(c.Param("productId")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
	}
}

type PostContentRequest struct {
	GameOfDay        *settings.GameOfDay `json:"gameOfDay"`
	DailyOddsContent *string             `json:"dailyOddsContent"`
}

// PostContentHandler updates the admin-posted daily content.
func PostContentHandler(st *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PostContentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		err := st.Update(func(cur *settings.Settings) error {
			if req.GameOfDay != nil {
				cur.GameOfDay = *req.GameOfDay
			}
			if req.DailyOddsContent != nil {
				cur.DailyOddsContent = *req.DailyOddsContent
			}
			return nil
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Content updated"})
	}
}

type UpdateSettingsRequest struct {
	CrashEnabled             *bool `json:"crashEnabled"`
	MinesEnabled             *bool `json:"minesEnabled"`
	AssistantResetEnabled    *bool `json:"assistantResetEnabled"`
	PasswordlessLoginEnabled *bool `json:"passwordlessLoginEnabled"`
}

// UpdateSettingsHandler applies a partial feature-flag update as one atomic
// document replacement.
func UpdateSettingsHandler(st *settings.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		err := st.Update(func(cur *settings.Settings) error {
			if req.CrashEnabled != nil {
				cur.CrashEnabled = *req.CrashEnabled
			}
			if req.MinesEnabled != nil {
				cur.MinesEnabled = *req.MinesEnabled
			}
			if req.AssistantResetEnabled != nil {
				cur.AssistantResetEnabled = *req.AssistantResetEnabled
			}
			if req.PasswordlessLoginEnabled != nil {
				cur.PasswordlessLoginEnabled = *req.PasswordlessLoginEnabled
			}
			return nil
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Settings updated", "settings": st.Snapshot()})
	}
}

type BroadcastRequest struct {
	Subject     string `json:"subject" binding:"required"`
	Message     string `json:"message" binding:"required"`
	PremiumOnly bool   `json:"premiumOnly"`
}

// BroadcastHandler stores the broadcast and mails the audience.
func BroadcastHandler(db *gorm.DB, st *settings.Store, mailer notify.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BroadcastRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		err := st.Update(func(cur *settings.Settings) error {
			cur.Broadcast = settings.Broadcast{Message: req.Message, PremiumOnly: req.PremiumOnly}
			return nil
		})
		if err != nil {
			writeError(c, err)
			return
		}
		query := db.Model(&domain.User{})
		if req.PremiumOnly {
			query = query.Where("is_premium = ?", true)
		}
		var recipients []domain.User
		if err := query.Find(&recipients).Error; err != nil {
			writeError(c, err)
			return
		}
		for _, u := range recipients {
			mailer.SendBroadcast(u.Email, req.Subject, req.Message)
		}
		c.JSON(http.StatusOK, gin.H{"message": "Broadcast sent", "recipients": len(recipients)})
	}
}
