package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/ksred/folio-api/internal/auth"
	"github.com/ksred/folio-api/internal/config"
	"github.com/ksred/folio-api/internal/corporate"
	"github.com/ksred/folio-api/internal/database"
	"github.com/ksred/folio-api/internal/dividend"
	"github.com/ksred/folio-api/internal/ledger"
	"github.com/ksred/folio-api/internal/locks"
	"github.com/ksred/folio-api/internal/pricing"
	"github.com/ksred/folio-api/internal/projection"
	"github.com/ksred/folio-api/internal/settlement"
	"github.com/ksred/folio-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the portfolio API server with graceful shutdown
// support. It sets up all services, the database connection, the background
// price refresher, and the API routes.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Per-user exclusion scope shared by every service that mutates or
	// projects a user's portfolio.
	userLocks := locks.New()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register demo credentials
	authService.RegisterAPICredentials(auth.DemoAPIKey, auth.DemoAPISecret)

	projectionService := projection.NewService(db, userLocks)
	projectionHandlers := projection.NewGinHandlers(projectionService)

	ledgerService := ledger.NewService(db, projectionService, userLocks, &cfg)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	corporateService := corporate.NewService(db, userLocks)
	corporateHandlers := corporate.NewGinHandlers(corporateService)

	dividendService := dividend.NewService(db, userLocks)
	dividendHandlers := dividend.NewGinHandlers(dividendService)

	settlementService := settlement.NewService(&cfg)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	// Create and start the price refresher when a quote endpoint is
	// configured. Price fetches never run inside a user lock.
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	if cfg.Pricing.Enabled {
		provider := pricing.NewRestProvider(cfg.Pricing.BaseURL)
		interval := time.Duration(cfg.Pricing.IntervalSeconds) * time.Second
		priceProcessor := pricing.NewProcessor(db, provider, interval)
		go priceProcessor.Start(processorCtx)
	}

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, &cfg, authHandlers, ledgerHandlers, projectionHandlers,
		corporateHandlers, dividendHandlers, settlementHandlers)

	port := cfg.Server.Port
	if envPort := os.Getenv("PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}

	// Create server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// Routes are grouped by functionality:
// - Auth routes: Public endpoints for authentication
// - Portfolio routes: JWT-protected ledger, holdings, corporate action,
//   dividend and settlement-preview endpoints
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	projectionHandlers *projection.GinHandlers,
	corporateHandlers *corporate.GinHandlers,
	dividendHandlers *dividend.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Portfolio routes
		portfolio := v1.Group("/portfolio")
		portfolio.Use(middleware.JWTAuth([]byte(cfg.Auth.JWTSecret)))
		{
			portfolio.POST("/transactions", ledgerHandlers.AppendTransactionHandler())
			portfolio.GET("/transactions", ledgerHandlers.ListTransactionsHandler())
			portfolio.DELETE("/transactions/:transaction_id", ledgerHandlers.DeleteTransactionHandler())

			portfolio.GET("/holdings", projectionHandlers.HoldingsHandler())

			portfolio.POST("/actions/split", corporateHandlers.ApplySplitHandler())
			portfolio.POST("/actions/rights-issue", corporateHandlers.ApplyRightsIssueHandler())
			portfolio.GET("/actions", corporateHandlers.ListActionsHandler())

			portfolio.POST("/dividends", dividendHandlers.RecordDividendHandler())
			portfolio.GET("/dividends", dividendHandlers.ListDividendsHandler())

			portfolio.POST("/settlement/preview", settlementHandlers.PreviewHandler())
		}
	}
}
