package main

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bimworks/bimworks-api/config"
	"github.com/bimworks/bimworks-api/controllers"
	"github.com/bimworks/bimworks-api/middleware"
	"github.com/bimworks/bimworks-api/models"
	"github.com/bimworks/bimworks-api/services"
)

func main() {
	// Basic logging
	log.Println("Starting BIMWorks API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(&models.Profile{}, &models.Order{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Realtime order feed over Redis
	services.InitFeedService()

	// Scan file storage
	if cfg.AWSS3Bucket != "" {
		if _, err := services.InitS3Service(); err != nil {
			log.Fatalf("Failed to initialize S3 service: %v", err)
		}
	} else {
		log.Println("AWS_S3_BUCKET not set, scan uploads disabled")
	}

	if cfg.SlackWebhookURL == "" {
		log.Println("SLACK_WEBHOOK_URL not set, order notifications disabled")
	}

	router := newRouter(cfg)

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newRouter builds the HTTP engine and route table. The notification relay
// holds the webhook secret server-side and accepts posts from any origin, so
// the app-origin CORS policy must not run for it: the relay answers its own
// CORS and method checks.
func newRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	// CORS for browser clients of the API, skipped for the relay
	apiCORS := cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AppURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	router.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/relay-notification" {
			return
		}
		apiCORS(c)
	})

	router.Any("/relay-notification", controllers.RelayNotification)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		// Identity gateway
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", controllers.Signup)
			auth.POST("/login", controllers.Login)
			auth.POST("/logout", controllers.Logout)
		}

		// Everything below requires a valid token
		authorized := v1.Group("")
		authorized.Use(middleware.EnsureValidToken(cfg))
		{
			authorized.POST("/profiles", controllers.UpsertProfile)
			authorized.GET("/profiles/me", controllers.GetMyProfile)
			authorized.PUT("/profiles/me", controllers.UpdateMyProfile)

			authorized.POST("/orders", controllers.CreateOrder)
			authorized.GET("/orders", controllers.GetOrders)
			authorized.GET("/orders/stats", controllers.GetOrderStats)
			authorized.GET("/orders/stream", controllers.StreamOrders)
			authorized.GET("/orders/:id", controllers.GetOrder)
			authorized.PATCH("/orders/:id/status", controllers.UpdateOrderStatus)
			authorized.PATCH("/orders/:id/pricing", controllers.UpdateOrderPricing)
			authorized.POST("/orders/:id/scan", controllers.UploadOrderScan)
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "BIMWorks API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
