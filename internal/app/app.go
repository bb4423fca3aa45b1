package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mmh_backend/database"
	"mmh_backend/internal/auth"
	"mmh_backend/internal/config"
	"mmh_backend/internal/email"
	"mmh_backend/internal/events"
	"mmh_backend/internal/handlers"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/metrics"
	"mmh_backend/internal/middleware"
	"mmh_backend/internal/models"
	"mmh_backend/internal/registry"
	"mmh_backend/internal/repositories"
	"mmh_backend/internal/routes"
	"mmh_backend/internal/services"
	"mmh_backend/internal/services/dto"
	"mmh_backend/internal/storage"
	"mmh_backend/internal/validator"
	"mmh_backend/internal/workers"
	"mmh_backend/pkg/apperrors"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dependencies are the outbound adapters the services talk to. Run builds
// them from config; tests pass fakes.
type Dependencies struct {
	Registry      registry.Lookuper
	EmailProvider email.Provider
	Publisher     events.Publisher
	Storage       storage.Storage
	Metrics       *metrics.Metrics
	RunAsync      services.AsyncRunner
}

// Application is a wired router plus the services behind it.
type Application struct {
	Router   *gin.Engine
	Services *services.ServiceContainer
	Tokens   *auth.TokenManager
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	apperrors.SetDebug(cfg.Server.Env == "development")
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	gormDB, err := database.Connect(cfg.Database, gormLogLevel(cfg.Server.Env))
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(gormDB); err != nil {
			logger.Fatal("Failed to migrate database", "error", err)
		}
	}

	deps, cleanup := buildDependencies(ctx, cfg)
	defer cleanup()

	application, err := SetupRouter(cfg, gormDB, deps)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}

	if err := seedFirstAdmin(ctx, gormDB, application.Services.UserService, cfg); err != nil {
		logger.Fatal("Failed to seed first admin user", "error", err)
	}

	var expiryWorker *workers.OfferExpiryWorker
	if cfg.Workers.OfferExpiryInterval > 0 {
		expiryWorker = workers.NewOfferExpiryWorker(gormDB, application.Services.OfferService, cfg.Workers.OfferExpiryInterval, deps.Metrics)
		expiryWorker.Start(ctx)
	}

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              address,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "address", address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	if expiryWorker != nil {
		expiryWorker.Wait()
	}
	logger.Info("Server stopped")
}

// SetupRouter wires repositories, services, handlers and routes.
func SetupRouter(cfg *config.Config, gormDB *gorm.DB, deps Dependencies) (*Application, error) {
	serviceContainer, tokens, err := initializeServices(cfg, deps)
	if err != nil {
		return nil, err
	}

	appHandlers := initializeHandlers(serviceContainer, gormDB)
	ginRouter := initializeGinRouter(cfg, gormDB, deps.Metrics)
	if local, ok := deps.Storage.(*storage.LocalStorage); ok {
		ginRouter.Static("/files", local.BasePath())
	}
	routes.RegisterRoutes(ginRouter, appHandlers, tokens, serviceContainer.UserService, deps.Metrics)

	return &Application{Router: ginRouter, Services: serviceContainer, Tokens: tokens}, nil
}

func initializeServices(cfg *config.Config, deps Dependencies) (*services.ServiceContainer, *auth.TokenManager, error) {
	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})

	templates, err := email.NewBuiltinTemplateManager()
	if err != nil {
		return nil, nil, fmt.Errorf("load email templates: %w", err)
	}
	minOrder, err := services.ParseMinOrderPolicy(cfg.Pricing.MinOrderPolicy)
	if err != nil {
		return nil, nil, err
	}
	commission, err := services.NewCommissionPolicyFromConfig(cfg.Commission)
	if err != nil {
		return nil, nil, err
	}

	if deps.Storage == nil {
		return nil, nil, errors.New("document storage is not configured")
	}

	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	userRepo := repositories.NewUserRepository()
	offerRepo := repositories.NewOfferRepository()
	orderRepo := repositories.NewOrderRepository()

	notificationService := services.NewNotificationService(deps.EmailProvider, templates, cfg.Auth.FrontendURL, deps.Metrics)
	companyVerifier := services.NewCompanyVerifier(deps.Registry, cfg.Registry.AllowFreeMailDomains, deps.Metrics)
	userService := services.NewUserService(userRepo)
	authService := services.NewAuthService(userRepo, userService, companyVerifier, notificationService, tokens, cfg.Auth, deps.RunAsync)
	offerService := services.NewOfferService(offerRepo, userRepo)
	documentService := services.NewOfferDocumentService(offerRepo, deps.Storage, cfg.Storage.MaxUploadBytes)
	orderService := services.NewOrderService(
		orderRepo,
		offerRepo,
		services.NewSequentialOrderNumbers(orderRepo),
		commission,
		minOrder,
		notificationService,
		publisher,
		deps.Metrics,
		deps.RunAsync,
	)

	return &services.ServiceContainer{
		UserService:         userService,
		AuthService:         authService,
		OfferService:        offerService,
		OrderService:        orderService,
		DocumentService:     documentService,
		NotificationService: notificationService,
		CompanyVerifier:     companyVerifier,
		EmailProvider:       deps.EmailProvider,
		EventPublisher:      publisher,
	}, tokens, nil
}

func initializeHandlers(svc *services.ServiceContainer, gormDB *gorm.DB) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler(validator.New())

	return &handlers.AppHandlers{
		AuthHandler:   handlers.NewAuthHandler(baseHandler, svc.AuthService),
		UserHandler:   handlers.NewUserHandler(baseHandler, svc.UserService),
		OfferHandler:  handlers.NewOfferHandler(baseHandler, svc.OfferService, svc.DocumentService),
		OrderHandler:  handlers.NewOrderHandler(baseHandler, svc.OrderService),
		HealthHandler: handlers.NewHealthHandler(gormDB),
	}
}

func initializeGinRouter(cfg *config.Config, db *gorm.DB, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	if m != nil {
		router.Use(m.Middleware())
	}
	router.Use(cors.New(corsConfig(cfg)))
	router.Use(middleware.DBMiddleware(db))
	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.Auth.FrontendURL == "" {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = []string{cfg.Auth.FrontendURL}
	}
	return c
}

// buildDependencies picks real adapters where configured and quiet stand-ins
// otherwise. The returned func releases connections.
func buildDependencies(ctx context.Context, cfg *config.Config) (Dependencies, func()) {
	var closers []func() error
	deps := Dependencies{
		Metrics:  metrics.New("mmh"),
		RunAsync: services.GoRunner,
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", "driver", cfg.Storage.Driver, "error", err)
	}
	deps.Storage = store

	var lookuper registry.Lookuper = registry.NewClient(cfg.Registry.BaseURL, cfg.Registry.Timeout)
	if cfg.Redis.URL != "" {
		rdb, err := registry.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, registry lookups are not cached", "error", err)
		} else {
			lookuper = registry.NewCachedClient(lookuper, rdb, cfg.Registry.CacheTTL)
			closers = append(closers, rdb.Close)
			logger.Info("Registry cache enabled", "ttl", cfg.Registry.CacheTTL)
		}
	}
	deps.Registry = lookuper

	if cfg.Email.Enabled() {
		smtp := email.NewSMTPProvider(email.ConfigFrom(cfg.Email))
		if err := smtp.Validate(); err != nil {
			logger.Fatal("Invalid SMTP configuration", "error", err)
		}
		deps.EmailProvider = smtp
	} else {
		logger.Warn("SMTP not configured, emails are only logged")
		deps.EmailProvider = email.NewLogProvider()
	}
	closers = append(closers, deps.EmailProvider.Close)

	if cfg.RabbitMQ.URL != "" {
		pub, err := events.NewAMQPPublisher(events.PublisherConfig{
			URL:             cfg.RabbitMQ.URL,
			ExchangeName:    cfg.RabbitMQ.Exchange,
			DurableExchange: true,
		})
		if err != nil {
			logger.Warn("RabbitMQ unavailable, order events are dropped", "error", err)
			deps.Publisher = events.NopPublisher{}
		} else {
			deps.Publisher = pub
			closers = append(closers, pub.Close)
		}
	} else {
		deps.Publisher = events.NopPublisher{}
	}

	return deps, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Failed to release dependency", "error", err)
			}
		}
	}
}

// seedFirstAdmin creates the bootstrap admin once.
func seedFirstAdmin(ctx context.Context, db *gorm.DB, users services.UserService, cfg *config.Config) error {
	adminEmail := cfg.FirstAdminEmail
	adminPassword := cfg.FirstAdminPassword

	if adminEmail == "" || adminPassword == "" {
		logger.Warn("FIRST_ADMIN_EMAIL or FIRST_ADMIN_PASSWORD is not set. Skipping admin seeding.")
		return nil
	}

	_, err := users.GetByEmail(ctx, db, adminEmail)
	if err == nil {
		logger.Info("Admin user already exists. Skipping creation.", "email", adminEmail)
		return nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	logger.Warn("No admin user found with specified email. Creating first admin...", "email", adminEmail)
	_, err = users.Create(ctx, db, &dto.CreateUserRequest{
		Email:       adminEmail,
		Password:    adminPassword,
		Role:        models.UserRoleAdmin,
		Status:      models.UserStatusVerified,
		CompanyName: "Media Market Hub",
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("Created first admin user", "email", adminEmail)
	return nil
}

func gormLogLevel(env string) gormlogger.LogLevel {
	if env == "development" {
		return gormlogger.Info
	}
	return gormlogger.Warn
}
