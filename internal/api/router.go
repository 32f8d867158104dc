package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"makerhub/b2b/internal/api/handlers"
	"makerhub/b2b/internal/api/middleware"
	"makerhub/b2b/internal/config"
	"makerhub/b2b/internal/notify"
	"makerhub/b2b/internal/services"
	"makerhub/b2b/internal/storage"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient notify.Enqueuer, configSvc services.IConfigService) *gin.Engine {
	// Initialize services needed by API handlers
	quoteRepo := services.NewQuoteRepository(db)
	productService := services.NewProductService(db)
	userService := services.NewUserService(db)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	dispatcher := notify.NewAsynqDispatcher(taskClient)
	quoteService := services.NewQuoteService(quoteRepo, productService, userService, dispatcher, s3StorageService, cfg)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, configSvc)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	restConfigHandler := handlers.NewRestConfigHandler(configSvc)
	restQuoteHandler := handlers.NewRestQuoteHandler(quoteService, taskClient)

	v1 := r.Group("/v1")
	{
		// Public Routes (rate limiting already applied globally)
		v1.GET("/config", restConfigHandler.GetPublicConfig)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated quote routes
		quotes := v1.Group("/quotes")
		quotes.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			quotes.POST("", restQuoteHandler.CreateQuote)
			quotes.GET("", restQuoteHandler.ListQuotes)
			quotes.GET("/:quoteId", restQuoteHandler.GetQuote)
			quotes.PATCH("/:quoteId/respond", restQuoteHandler.RespondToQuote)
			quotes.PATCH("/:quoteId/status", restQuoteHandler.UpdateQuoteStatus)
			quotes.POST("/:quoteId/attachments", restQuoteHandler.RequestAttachmentUpload)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine used by
// integration tooling. Requires Redis for the getTestNotification endpoint.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestNotification":
			var args []string // Expect ["email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [email]"})
				return
			}
			emailAddr := args[0]
			redisKey := fmt.Sprintf("mocknotif:%s", emailAddr)

			// Poll Redis briefly; the worker may still be delivering.
			var notifData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				notifData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test notification not found in Redis for key %s", redisKey)})
				return
			}

			var notification map[string]interface{}
			if err := json.Unmarshal([]byte(notifData), &notification); err != nil {
				log.Printf("Service API: Error unmarshalling notification data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored notification data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": notification})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
