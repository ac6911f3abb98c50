package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"predictpro/internal/domain"
)

// writeError maps the domain error taxonomy onto HTTP responses. Anything
// outside the taxonomy is a 500 with a generic body; the detail stays in the
// server logs.
func writeError(c *gin.Context, err error) {
	var insufficient *domain.InsufficientFundsError
	var locked *domain.LockedError

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "Insufficient funds",
			"shortfall": insufficient.Shortfall,
		})
	case errors.As(err, &locked):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many failed attempts. Try again later.",
			"retry_after": int(locked.RetryAfter.Round(time.Second).Seconds()),
		})
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrAlreadyOwned),
		errors.Is(err, domain.ErrInvalidVoucher):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotEligible):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTooSoon):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		logrus.WithError(err).Error("Unhandled request error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}
