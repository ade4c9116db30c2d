package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-api/internal/api/config"
	delivery "portfolio-api/internal/api/delivery/http"
	"portfolio-api/internal/api/repository"
	"portfolio-api/internal/api/service"
	"portfolio-api/pkg/logger"
	"portfolio-api/pkg/postgres"
	"portfolio-api/pkg/redis"
	"portfolio-api/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the portfolio API service",
	Run:   runServe,
}

var seedDemoUserCmd = &cobra.Command{
	Use:   "seed-demo-user",
	Short: "Creates the demo user for local development",
	Run:   runSeedDemoUser,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Portfolio API", logger.Field("name", cfg.App.Name))

	db, redisClient := mustInitStores(cfg, appLogger)
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	tickerRepo := repository.NewTickerRepository(db.DB)
	priceRepo := repository.NewPriceRepository(db.DB)
	holdingRepo := repository.NewHoldingRepository(db.DB)
	marketDataRepo := repository.NewYahooFinanceRepository(cfg, appLogger)

	// Initialize services
	authSvc := service.NewAuthService(cfg, userRepo, redisClient.Client, appLogger)
	portfolioSvc := service.NewPortfolioService(holdingRepo, tickerRepo, priceRepo, appLogger)
	ingestionSvc := service.NewIngestionService(cfg, tickerRepo, priceRepo, marketDataRepo, appLogger)

	// Run ingestion once at startup, then on the cron schedule if enabled.
	utils.GoSafe(func() {
		ingestionSvc.Run(ctx)
	})

	var scheduler *cron.Cron
	if cfg.Ingestion.ScheduleEnabled {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Ingestion.ScheduleCron, func() {
			ingestionSvc.Run(ctx)
		})
		if err != nil {
			appLogger.Fatal("Invalid ingestion schedule", logger.ErrorField(err))
		}
		scheduler.Start()
		appLogger.Info("Ingestion schedule enabled", logger.StringField("cron", cfg.Ingestion.ScheduleCron))
	}

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	authHandler := delivery.NewAuthHandler(authSvc, appLogger)
	authHandler.RegisterRoutes(e.Group("/auth"))

	portfolioHandler := delivery.NewPortfolioHandler(portfolioSvc, appLogger)
	portfolioHandler.RegisterRoutes(e.Group("/portfolio", delivery.BearerAuth(authSvc)))

	healthHandler := delivery.NewHealthHandler(db.DB, appLogger)
	healthHandler.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.StringField("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func runSeedDemoUser(cmd *cobra.Command, args []string) {
	const (
		demoEmail    = "demo@example.com"
		demoPassword = "demo123"
		demoFullName = "Demo User"
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	db, redisClient := mustInitStores(cfg, appLogger)
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}
	defer redisClient.Close()

	userRepo := repository.NewUserRepository(db.DB)
	authSvc := service.NewAuthService(cfg, userRepo, redisClient.Client, appLogger)

	ctx := context.Background()
	if existing, err := userRepo.FindByEmail(ctx, demoEmail); err == nil {
		fmt.Printf("Demo user already exists (id=%d)\n", existing.ID)
		fmt.Printf("  Email:    %s\n  Password: %s\n", demoEmail, demoPassword)
		return
	}

	user, err := authSvc.CreateUser(ctx, demoEmail, demoPassword, demoFullName)
	if err != nil {
		appLogger.Fatal("Failed to create demo user", logger.ErrorField(err))
	}

	fmt.Printf("Demo user created (id=%d)\n", user.ID)
	fmt.Printf("  Email:    %s\n  Password: %s\n", demoEmail, demoPassword)
}

func mustInitStores(cfg *config.Config, appLogger *logger.Logger) (*postgres.DB, *redis.Client) {
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}

	return db, redisClient
}

func main() {
	rootCmd := &cobra.Command{Use: "portfolio-api"}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-api.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd, seedDemoUserCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing portfolio-api CLI: %s\n", err)
		os.Exit(1)
	}
}
