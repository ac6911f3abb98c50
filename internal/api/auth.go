package api

import (
	"errors"
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework

	"predictpro/internal/domain"
	"predictpro/internal/middleware"
	"predictpro/internal/users"
)

// Request and Response structs
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	RefCode  string `json:"refCode"`
}

type LoginRequest struct {
	EmailOrID      string `json:"emailOrId" binding:"required"` // Email or referral code
	Password       string `json:"password"`
	IsPasswordless bool   `json:"isPasswordless"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// RegisterHandler creates a new user account.
func RegisterHandler(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := svc.Register(req.Email, req.Password, req.RefCode)
		if err != nil {
			// A taken email answers 400 here, not 409: registration treats it
			// as bad input rather than a resource conflict.
			if errors.Is(err, domain.ErrConflict) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
				return
			}
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": "User registered successfully",
			"refCode": user.RefCode,
		})
	}
}

// LoginHandler authenticates by email or referral code and returns a token.
func LoginHandler(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		result, err := svc.Login(req.EmailOrID, req.Password, req.IsPasswordless)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":       "Login successful",
			"token":         result.Token,
			"needsContract": result.NeedsContract,
		})
	}
}

// ForgotPasswordHandler always answers the same way so the endpoint cannot be
// used to probe which emails are registered.
func ForgotPasswordHandler(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		svc.ForgotPassword(req.Email)
		c.JSON(http.StatusOK, gin.H{"message": "If a user with that email exists, a reset link has been sent."})
	}
}

// ResetPasswordHandler completes the forgot-password flow.
func ResetPasswordHandler(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := svc.CompleteReset(req.Token, req.NewPassword); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}

// AcceptContractHandler marks the assistant contract as accepted.
func AcceptContractHandler(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if err := svc.AcceptContract(user.ID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Contract accepted"})
	}
}
