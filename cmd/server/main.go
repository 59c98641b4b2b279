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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"maestro-builder/backend/internal/api"
	"maestro-builder/backend/internal/background"
	"maestro-builder/backend/internal/config"
	"maestro-builder/backend/internal/logging"
	"maestro-builder/backend/internal/mcp"
	"maestro-builder/backend/internal/observability"
	"maestro-builder/backend/internal/repository"
	"maestro-builder/backend/internal/services"
	"maestro-builder/backend/internal/supervisor"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "maestro-builder",
		Short: "Backend for the Maestro workflow builder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	// Initialize logging
	logger := logging.NewLogger()

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger.Info("Starting Maestro Builder Service")

	// Initialize database connection
	dbPool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	defer dbPool.Close()

	logger.Info("Database connected")

	// Initialize repository layer
	store := repository.NewPostgresChatStore(dbPool)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	// Initialize metrics
	metrics, err := observability.NewMetrics(cfg.Metrics.Enabled)
	if err != nil {
		return fmt.Errorf("metrics initialization failed: %w", err)
	}

	// Initialize the remote agent clients and the supervisor
	clients := supervisor.Clients{
		Classifier: services.NewHTTPAgentClient("classifier", cfg.Agents.ClassifierURL, cfg.Agents.ClassifyTimeout),
		Agents:     services.NewHTTPAgentClient("agents", cfg.Agents.AgentsURL, cfg.Agents.GenerateTimeout),
		Workflow:   services.NewHTTPAgentClient("workflow", cfg.Agents.WorkflowURL, cfg.Agents.GenerateTimeout),
		Editor:     services.NewHTTPAgentClient("editor", cfg.Agents.EditorURL, cfg.Agents.EditTimeout),
	}
	sup := supervisor.New(clients, store, logger, metrics)

	// Background processing pool
	processor := background.NewProcessor(sup, logger, cfg.Agents.Workers, cfg.Logs.Dir)
	defer processor.Close()

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
	}))
	e.Use(otelecho.Middleware("maestro-builder"))

	// Mount REST API handlers
	apiGroup := e.Group("/api/v1")
	srv := api.NewServer(store, sup, processor, logger, cfg.Logs.Dir)
	srv.RegisterRoutes(apiGroup)

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(sup, store)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))

	logger.Info("MCP protocol handlers mounted")

	// OpenAPI spec, Swagger UI and Prometheus metrics
	e.GET("/openapi.yaml", echo.WrapHandler(http.HandlerFunc(api.SpecHandler)))
	e.GET("/docs", echo.WrapHandler(http.HandlerFunc(api.SwaggerHandler)))
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     e,
		ReadTimeout: 15 * time.Second,
		// Streaming endpoints hold the response open, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting on %s", addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error: %v", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}

	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
