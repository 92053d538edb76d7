package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"agrolink/api/internal/api"
	"agrolink/api/internal/cache"
	"agrolink/api/internal/config"
	"agrolink/api/internal/db"
	"agrolink/api/internal/email"
	"agrolink/api/internal/gateway"
	"agrolink/api/internal/realtime"
	"agrolink/api/internal/services"
	"agrolink/api/internal/storage"
	"agrolink/api/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default)")

func buildEmailSender(cfg *config.Config, redisSender email.Sender) email.Sender {
	var primary email.Sender
	switch {
	case os.Getenv("MOCK_SERVICES") == "true":
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primary = redisSender
	case cfg.ResendAPIKey != "":
		log.Println("Using Resend email sender.")
		primary = email.NewResendSender(cfg)
	default:
		log.Println("Using SMTP/Logging email sender.")
		primary = email.NewSMTPSender(cfg)
	}

	fanout := email.NewFanoutSender(primary)
	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(logEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", logEmailsPath, err)
		} else {
			fanout.Mirror(fileSender)
			log.Printf("LOG_EMAILS set to '%s', file email logger enabled.", logEmailsPath)
		}
	}
	return fanout
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	mongoClient, mongoDb, err := db.ConnectDB(connectCtx, cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.DisconnectDB(ctx, mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndexes()

	redisClient, err := cache.ConnectRedis(connectCtx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cancelConnect()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}

	emailSender := buildEmailSender(cfg, email.NewRedisSender(redisClient, cfg.SmtpFromAddress))

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	queue := tasks.NewQueue(taskClient)

	gw := gateway.NewInstamojoClient(gateway.Config{
		BaseURL:     cfg.GatewayBaseURL,
		APIKey:      cfg.GatewayAPIKey,
		AuthToken:   cfg.GatewayAuthToken,
		Salt:        cfg.GatewaySalt,
		RedirectURL: cfg.GatewayRedirectURL,
		WebhookURL:  cfg.GatewayWebhookURL,
		Timeout:     cfg.GatewayTimeout,
	})

	// Every process publishes realtime events through Redis; only API
	// processes deliver them to sockets.
	hub := realtime.NewHub()
	broadcaster := realtime.NewRedisBroadcaster(redisClient, hub)

	codes := cache.NewRedisCodeStore(redisClient, "otp")
	userService := services.NewUserService(mongoDb, cfg, codes, queue)
	notificationService := services.NewNotificationService(mongoDb, broadcaster)
	productService := services.NewProductService(mongoDb, userService, s3StorageService, queue)
	contractService := services.NewContractService(mongoDb, cfg, userService, productService, notificationService, queue, broadcaster, s3StorageService)
	paymentService := services.NewPaymentService(mongoDb, cfg, gw, contractService, userService, notificationService, queue, broadcaster)
	chatService := services.NewChatService(mongoDb, contractService, notificationService, broadcaster)
	emailTemplateService := services.NewEmailTemplateService(mongoDb)

	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, s3StorageService, productService, paymentService, emailTemplateService)

	var wg sync.WaitGroup
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	shutdownChan := make(chan struct{}, 1)

	serviceSrv := &http.Server{
		Addr:              ":" + cfg.ServiceApiPort,
		Handler:           api.SetupServiceRouter(cfg, redisClient, shutdownChan),
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Service API listening on :%s", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
	}()

	var mainApiSrv *http.Server
	var taskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	log.Printf("Starting application in '%s' mode...", cfg.RunMode)

	startAPI := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := broadcaster.Run(rootCtx); err != nil {
				log.Printf("Realtime relay stopped: %v", err)
			}
		}()

		router := api.SetupRouter(cfg, api.Services{
			Users:          userService,
			Products:       productService,
			Contracts:      contractService,
			Payments:       paymentService,
			Chat:           chatService,
			Notifications:  notificationService,
			EmailTemplates: emailTemplateService,
			Hub:            hub,
			Dispatcher:     realtime.NewDispatcher(hub, chatService),
		})
		mainApiSrv = &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Main API listening on :%s", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
		}()
	}

	startWorkers := func(images, background bool) {
		srv, mux := tasks.SetupServer(redisClient, taskProcessor, images, background)
		if srv == nil {
			return
		}
		taskSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := taskSrv.Run(mux); err != nil {
				log.Fatalf("Task server error: %v", err)
			}
		}()

		if background {
			scheduler, err = tasks.NewReconcileScheduler(redisClient, cfg)
			if err != nil {
				log.Fatalf("Failed to set up payment reconciliation: %v", err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("Failed to start scheduler: %v", err)
			}
		}
	}

	switch cfg.RunMode {
	case "api":
		startAPI()
	case "bg":
		startWorkers(false, true)
	case "img":
		startWorkers(true, false)
	case "all":
		startAPI()
		startWorkers(true, true)
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received signal: %s. Shutting down gracefully...", sig)
	case <-shutdownChan:
		log.Println("Shutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	cancelRoot()
	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	wg.Wait()
	log.Println("Server gracefully stopped")
}
