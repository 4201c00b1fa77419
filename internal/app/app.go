package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/linkforge/shortener/codegen"
	"github.com/linkforge/shortener/internal/config"
	"github.com/linkforge/shortener/internal/metrics"
	"github.com/linkforge/shortener/internal/migrations"
	"github.com/linkforge/shortener/internal/secrets"
	"github.com/linkforge/shortener/internal/server"
	"github.com/linkforge/shortener/internal/shortener"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DBPool  *pgxpool.Pool
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Server  *server.Server
	Handler *shortener.Handler
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	// Resolve the database password before anything touches the database.
	if err := resolveDatabasePassword(ctx, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to resolve database password: %w", err)
	}

	// Connect to database
	dbPool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Apply schema migrations
	if err := runMigrations(cfg, logger); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	m := metrics.New()

	// Setup application dependencies
	store := shortener.NewPostgres(dbPool, nil)

	var links shortener.LinkStore = store
	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		links = shortener.NewCachedLinkStore(store, shortener.NewRedisCacheClient(redisClient), &shortener.CachedStoreConfig{
			TTL:         cfg.Cache.TTL,
			NegativeTTL: cfg.Cache.NegativeTTL,
			Logger:      logger,
		})
		logger.Info("resolve cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
	}

	svc := shortener.NewService(links, store, &shortener.ServiceConfig{
		CodeGenerator:     codegen.NewBase62(),
		CodeLength:        cfg.Shortener.CodeLength,
		ShortenMaxRetries: cfg.Shortener.ShortenMaxRetries,
	})
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service: svc,
		Logger:  logger,
		Metrics: m,
		BaseURL: cfg.Server.BaseURL,
	})

	// Create server
	srv := server.New(cfg, logger, handler, m)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		DBPool:  dbPool,
		Redis:   redisClient,
		Metrics: m,
		Server:  srv,
		Handler: handler,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("failed to close redis client", "error", err)
		} else {
			a.Logger.Info("redis client closed")
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// resolveDatabasePassword fills cfg.Database.Password from the configured
// secrets provider when it isn't supplied directly.
func resolveDatabasePassword(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Database.Password != "" {
		return nil
	}

	var provider secrets.Provider
	switch cfg.Secrets.Source {
	case "awssm":
		p, err := secrets.NewAWS(ctx, cfg.Secrets.AWSRegion)
		if err != nil {
			return err
		}
		provider = p
		logger.Info("fetching database password from secrets manager",
			"secret_id", cfg.Database.PasswordSecretID,
		)
	default:
		provider = secrets.NewStatic(cfg.Database.Password)
	}

	password, err := provider.DatabasePassword(ctx, cfg.Database.PasswordSecretID)
	if err != nil {
		return err
	}

	cfg.Database.Password = password
	return nil
}

// connectDatabase establishes a connection to the PostgreSQL database.
func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set pool configuration
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")

	return pool, nil
}

// runMigrations applies pending schema migrations at startup.
func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	migrator, err := migrations.New(cfg.Database.URL(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("failed to close migrator", "error", err)
		}
	}()

	return migrator.Up()
}
