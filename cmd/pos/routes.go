package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"bloompos-system/config"
	"bloompos-system/internal/autodiscount"
	"bloompos-system/internal/database"
	"bloompos-system/internal/draft"
	"bloompos-system/internal/gateway/handlers"
	"bloompos-system/internal/gateway/middleware"
	"bloompos-system/internal/giftcards"
	"bloompos-system/internal/pos"
	"bloompos-system/internal/utils"
)

func main() {
	cfg := config.LoadConfig()
	utils.SetJWTSecret(cfg.Auth.JWTSecret)

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient := config.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	slot := draft.NewRedisSlot(redisClient, cfg.POS.RestoreWindow)
	saver := draft.NewAutosaver(slot, cfg.POS.AutosaveDebounce)
	defer saver.Stop()

	terminal := pos.NewTerminal(pos.Options{
		Slot:      slot,
		Autosaver: saver,
		Orders:    draft.NewOrderStore(db),
		Evaluator: autodiscount.NewClient(cfg.Discounts.ServiceURL, cfg.Discounts.Timeout),
		Activator: giftcards.NewHTTPActivator(cfg.GiftCards.ProviderURL, cfg.GiftCards.Timeout),
		TaxRates:  cfg.POS.TaxRates,
	})

	if terminal.RestoreOnStartup(context.Background(), slot) {
		log.Printf("Restored unsaved cart from previous session")
	}

	r := gin.Default()

	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(cfg.POS.RateLimit))

	authHandler := handlers.NewAuthHTTPHandler(db, cfg.Auth.TokenTTL)
	posHandler := handlers.NewPOSHTTPHandler(terminal)

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		auth := public.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		cartGroup := protected.Group("/cart")
		{
			cartGroup.GET("", posHandler.GetCart)
			cartGroup.GET("/totals", posHandler.GetTotals)
			cartGroup.POST("/items", posHandler.AddItem)
			cartGroup.POST("/custom-items", posHandler.AddCustomItem)
			cartGroup.POST("/gift-cards", posHandler.SellGiftCard)
			cartGroup.POST("/scan", posHandler.Scan)
			cartGroup.PUT("/items/:id/quantity", posHandler.UpdateQuantity)
			cartGroup.PUT("/items/:id/price", posHandler.UpdatePrice)
			cartGroup.DELETE("/items/:id", posHandler.RemoveItem)
			cartGroup.PUT("/customer", posHandler.SetCustomer)
			cartGroup.PUT("/discounts/manual", posHandler.AddManualDiscount)
			cartGroup.PUT("/discounts/coupon", posHandler.SetCouponDiscount)
			cartGroup.PUT("/discounts/giftcard", posHandler.SetGiftCardDiscount)
			cartGroup.POST("/new-order", posHandler.NewOrder)
		}

		orders := protected.Group("/orders")
		{
			orders.POST("/save-draft", posHandler.SaveDraft)
			orders.GET("/list", posHandler.ListDrafts)
			orders.POST("/:id/load", posHandler.LoadDraft)
			orders.DELETE("/:id/draft", posHandler.DeleteDraft)
		}

		protected.POST("/checkout", posHandler.Checkout)
	}

	r.GET("/health", healthCheckHandler(db, redisClient))

	log.Printf("Starting POS server on port %s", cfg.POS.Port)
	if err := r.Run(cfg.POS.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func healthCheckHandler(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		httpStatus := http.StatusOK

		unavailable := []string{}
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			unavailable = append(unavailable, "postgres")
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			unavailable = append(unavailable, "redis")
		}

		if len(unavailable) > 0 {
			status = "degraded"
			httpStatus = http.StatusPartialContent
		}

		c.JSON(httpStatus, gin.H{
			"status":               status,
			"message":              "Server is running",
			"unavailable_services": unavailable,
			"timestamp":            time.Now(),
		})
	}
}
