package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"predictpro/internal/middleware"
	"predictpro/internal/notify"
	"predictpro/internal/settings"
	"predictpro/internal/wallet"
)

// PurchaseHandler buys one catalog item for the caller.
func PurchaseHandler(svc *wallet.Service, st *settings.Store, rdb *redis.Client, mailer notify.Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		productID := c.Param("productId")
		newBalance, err := svc.Purchase(user.ID, productID)
		if err != nil {
			writeError(c, err)
			return
		}
		if product, found := st.Product(productID); found {
			mailer.SendPurchaseReceipt(user.Email, user.Username, product.Name, product.Price, newBalance)
		}
		invalidateUserViews(c, rdb, user.ID)
		c.JSON(http.StatusOK, gin.H{
			"message":    "Purchase successful",
			"newBalance": newBalance,
		})
	}
}

// ClaimRewardHandler credits the premium daily reward.
func ClaimRewardHandler(svc *wallet.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		newBalance, err := svc.ClaimDailyReward(user.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		invalidateUserViews(c, rdb, user.ID)
		c.JSON(http.StatusOK, gin.H{
			"message":    "Daily reward claimed",
			"newBalance": newBalance,
		})
	}
}
