package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forkcast/backend/config"
	"github.com/forkcast/backend/internal/api"
	"github.com/forkcast/backend/internal/database"
	"github.com/forkcast/backend/internal/middleware"
	"github.com/forkcast/backend/internal/router"
	"github.com/forkcast/backend/internal/server"
	"github.com/forkcast/backend/internal/service"
)

func main() {
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Database
	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis is optional: rate limiting, idempotency, draft caching and
	// usage counting degrade to no-ops without it.
	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		log.Printf("[Main] Redis unavailable, continuing without it: %v", err)
		redisClient = nil
	}

	s3Config, err := config.NewS3Config(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to configure S3: %v", err)
	}

	// Services
	authService := service.NewAuthService(db, cfg.JWTSecret)
	ledgerService := service.NewCreditLedgerService(db)
	recipeService := service.NewRecipeService(db)
	usageService := service.NewUsageService(redisClient)
	idemService := service.NewIdempotencyService(redisClient)

	llmService, err := service.NewLLMService(cfg.LLMAPIKey, cfg.LLMAPIURL, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize LLM service: %v", err)
	}

	imageService, err := service.NewImageService(cfg.ImageAPIKey, cfg.ImageAPIURL, s3Config)
	if err != nil {
		log.Fatalf("Failed to initialize image service: %v", err)
	}
	enrichmentWorker := service.NewEnrichmentWorker(imageService, recipeService)

	// Handlers
	authHandler := api.NewAuthHandler(authService, ledgerService)
	recipeHandler := api.NewRecipeHandler(recipeService, authService)
	generateHandler := api.NewGenerateHandler(
		db,
		authService,
		ledgerService,
		llmService,
		recipeService,
		enrichmentWorker,
		usageService,
		idemService,
		middleware.NewGenerationRateLimiter(redisClient),
	)

	engine := router.SetupRouter(authHandler, recipeHandler, generateHandler)
	srv := server.New(cfg, engine)

	// Channel to listen for errors coming from the server
	errChan := make(chan error, 1)

	go func() {
		log.Println("Starting server...")
		errChan <- srv.Start()
	}()

	// Channel to listen for an interrupt or terminate signal from the OS
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		log.Printf("Received signal: %v", sig)
	}

	// Gracefully shutdown the server
	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
