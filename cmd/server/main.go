package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library

	"predictpro/internal/api"
	"predictpro/internal/auth"
	"predictpro/internal/config"
	"predictpro/internal/db"
	"predictpro/internal/gate"
	"predictpro/internal/ledger"
	"predictpro/internal/middleware"
	"predictpro/internal/notify"
	"predictpro/internal/settings"
	"predictpro/internal/users"
	"predictpro/internal/wallet"
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig()

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Connect to the database
	gormDB, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := gormDB.AutoMigrate(db.Models()...); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Wire the core services
	settingsStore, err := settings.Load(gormDB)
	if err != nil {
		logrus.Fatalf("failed to load settings: %v", err)
	}
	tokens := auth.NewManager(cfg.JWTSecret)
	mailer := notify.LogMailer{}
	ledgerSvc, err := ledger.NewService(gormDB, cfg.TxnIDPattern)
	if err != nil {
		logrus.Fatalf("failed to init ledger: %v", err)
	}
	walletSvc := wallet.NewService(gormDB, settingsStore)
	userSvc := users.NewService(gormDB, tokens, settingsStore, mailer)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default()
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	apiGroup := r.Group("/api")

	// Public auth routes
	apiGroup.POST("/register", api.RegisterHandler(userSvc))
	apiGroup.POST("/login", api.LoginHandler(userSvc))
	apiGroup.POST("/forgot-password", api.ForgotPasswordHandler(userSvc))
	apiGroup.POST("/reset-password", api.ResetPasswordHandler(userSvc))

	// Authenticated user routes
	authed := apiGroup.Group("")
	authed.Use(middleware.Authenticate(tokens, gormDB))
	authed.GET("/app/load", api.AppLoadHandler(userSvc, settingsStore, redisClient))
	authed.POST("/user/accept-contract", api.AcceptContractHandler(userSvc))
	authed.POST("/wallet/redeem", api.RedeemHandler(ledgerSvc, redisClient, mailer))
	authed.GET("/wallet/activity", api.ActivityHandler(gormDB, redisClient))
	authed.POST("/store/buy/:productId", api.PurchaseHandler(walletSvc, settingsStore, redisClient, mailer))
	authed.POST("/rewards/claim", api.ClaimRewardHandler(walletSvc, redisClient))

	// Admin routes: each write is gated by capability, not just role tier
	admin := apiGroup.Group("/admin")
	admin.Use(middleware.Authenticate(tokens, gormDB))
	admin.POST("/vouchers", middleware.Require(gate.ActionCreateVoucher, settingsStore), api.CreateVoucherHandler(ledgerSvc, redisClient))
	admin.GET("/vouchers", middleware.Require(gate.ActionListVouchers, settingsStore), api.ListVouchersHandler(ledgerSvc, redisClient))
	admin.GET("/users", middleware.Require(gate.ActionViewUsers, settingsStore), api.ListUsersHandler(userSvc, redisClient))
	admin.GET("/users/:userId/activity", middleware.Require(gate.ActionViewActivity, settingsStore), api.UserActivityHandler(gormDB))
	admin.POST("/users/moderate", api.ModerateUserHandler(userSvc, redisClient)) // gate decides inside, assistants included
	admin.POST("/assistants", api.CreateAssistantHandler(userSvc, redisClient))
	admin.DELETE("/assistants/:userId", api.DeleteAssistantHandler(userSvc, redisClient))
	admin.POST("/purge-inactive", api.PurgeInactiveHandler(userSvc, redisClient))
	admin.POST("/products", middleware.Require(gate.ActionManageCatalog, settingsStore), api.UpsertProductHandler(settingsStore))
	admin.DELETE("/products/:productId", middleware.Require(gate.ActionManageCatalog, settingsStore), api.DeleteProductHandler(settingsStore))
	admin.POST("/content", middleware.Require(gate.ActionPostContent, settingsStore), api.PostContentHandler(settingsStore))
	admin.PUT("/settings", middleware.Require(gate.ActionUpdateSettings, settingsStore), api.UpdateSettingsHandler(settingsStore))
	admin.POST("/broadcast", middleware.Require(gate.ActionBroadcast, settingsStore), api.BroadcastHandler(gormDB, settingsStore, mailer))

	log.Println("Server running on " + cfg.AppPort)
	r.Run(":" + cfg.AppPort)
}
