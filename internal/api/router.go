package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"agrolink/api/internal/api/handlers"
	"agrolink/api/internal/api/middleware"
	"agrolink/api/internal/config"
	"agrolink/api/internal/email"
	"agrolink/api/internal/realtime"
	"agrolink/api/internal/services"
)

// Services bundles everything the public router serves.
type Services struct {
	Users          services.IUserService
	Products       services.IProductService
	Contracts      services.IContractService
	Payments       services.IPaymentService
	Chat           services.IChatService
	Notifications  services.INotificationService
	EmailTemplates handlers.EmailTemplateStore
	Hub            *realtime.Hub
	Dispatcher     *realtime.Dispatcher
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Order matters: errors are rendered after every handler has run.
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler(cfg))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(svc.Users)
	productHandler := handlers.NewProductHandler(svc.Products)
	contractHandler := handlers.NewContractHandler(svc.Contracts)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments)
	chatHandler := handlers.NewChatHandler(svc.Chat)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	adminHandler := handlers.NewAdminHandler(svc.EmailTemplates)

	requireAuth := middleware.AuthMiddleware(cfg.JwtSecret)
	requireAdmin := middleware.AdminMiddleware()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.Signup)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/sendOTP", authHandler.SendOTP)
			authRoutes.POST("/verifyotp", authHandler.VerifyOTP)
			authRoutes.POST("/changePassword", requireAuth, authHandler.ChangePassword)
			authRoutes.POST("/updateProfile", requireAuth, authHandler.UpdateProfile)
			authRoutes.GET("/user/:id", requireAuth, authHandler.GetUser)
		}

		products := v1.Group("/products")
		{
			products.GET("", middleware.OptionalAuth(cfg.JwtSecret), productHandler.ListProducts)
			products.GET("/product/:id", productHandler.GetProduct)
			products.POST("", requireAuth, productHandler.CreateProduct)
			products.PUT("/product/:id", requireAuth, productHandler.UpdateProduct)
			products.DELETE("/product/:id", requireAuth, productHandler.DeleteProduct)
			products.POST("/review/:id", requireAuth, productHandler.AddReview)
			products.POST("/product/:id/images", requireAuth, productHandler.CreateImageUpload)
			products.POST("/product/:id/images/confirm", requireAuth, productHandler.ConfirmImage)
		}

		contracts := v1.Group("/contracts", requireAuth)
		{
			contracts.GET("", contractHandler.ListContracts)
			contracts.POST("/request", contractHandler.CreateRequest)
			contracts.GET("/:id", contractHandler.GetContract)
			contracts.POST("/:id/negotiate", contractHandler.CounterOffer)
			contracts.POST("/:id/counter-offer", contractHandler.CounterOffer)
			contracts.PUT("/:id/accept", contractHandler.Accept)
			contracts.PUT("/:id/accept-offer", contractHandler.AcceptOffer)
			contracts.PUT("/:id/status", contractHandler.UpdateStatus)
			contracts.POST("/:id/progress", contractHandler.AddProgress)
			contracts.GET("/:id/document", contractHandler.Document)
			contracts.GET("/:id/payments", paymentHandler.ListForContract)
		}

		payments := v1.Group("/payments")
		{
			// Called by the gateway; authenticated by its signature.
			payments.POST("/webhook", paymentHandler.Webhook)
			payments.POST("/create", requireAuth, paymentHandler.CreatePayment)
			payments.GET("/:id/verify", requireAuth, paymentHandler.VerifyPayment)
			payments.GET("/:id", requireAuth, paymentHandler.GetPayment)
			payments.PUT("/:id/disburse", requireAuth, requireAdmin, paymentHandler.Disburse)
		}

		notifications := v1.Group("/notifications", requireAuth)
		{
			notifications.GET("", notificationHandler.List)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.PUT("/read-all", notificationHandler.MarkAllRead)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
			notifications.DELETE("/:id", notificationHandler.Delete)
			notifications.POST("", requireAdmin, notificationHandler.Create)
		}

		chat := v1.Group("/chat", requireAuth)
		{
			chat.GET("/unread", chatHandler.UnreadCount)
			chat.GET("/contracts/:contractId/messages", chatHandler.ListMessages)
			chat.POST("/contracts/:contractId/messages", chatHandler.SendMessage)
			chat.PUT("/contracts/:contractId/messages/read", chatHandler.MarkRead)
			chat.PUT("/contracts/:contractId/messages/accept-offer", chatHandler.AcceptOffer)
		}

		admin := v1.Group("/admin", requireAuth, requireAdmin)
		{
			admin.GET("/email-templates/:templateId", adminHandler.GetEmailTemplate)
			admin.PUT("/email-templates/:templateId", adminHandler.SaveEmailTemplate)
			admin.GET("/payments", paymentHandler.ListAll)
		}

		if svc.Hub != nil {
			// The websocket authenticates from its own token query parameter.
			v1.GET("/ws", realtime.ServeWS(svc.Hub, svc.Dispatcher, cfg))
		}
	}

	return r
}

// SetupServiceRouter configures the internal service Gin engine used by
// operators and end-to-end tests.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled.")
			}
		case "getTestEmail":
			var args []string // [templateId, email]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid arguments: expected JSON array [templateId, email]"})
				return
			}
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			mail, err := email.TakeMockEmail(ctx, rdb, args[1], args[0])
			switch {
			case errors.Is(err, email.ErrMockEmailNotFound):
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
			case err != nil:
				log.Printf("Service API: getTestEmail failed: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to read test email"})
			default:
				c.JSON(http.StatusOK, gin.H{"success": true, "data": mail})
			}
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
