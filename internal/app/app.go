package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Psycaptr/rBNB/internal/config"
	"github.com/Psycaptr/rBNB/internal/event"
	handler "github.com/Psycaptr/rBNB/internal/handler/http"
	mongorepo "github.com/Psycaptr/rBNB/internal/repository/mongo"
	"github.com/Psycaptr/rBNB/internal/service"
	"github.com/Psycaptr/rBNB/pkg/database"
	"github.com/Psycaptr/rBNB/pkg/health"
	pkgkafka "github.com/Psycaptr/rBNB/pkg/kafka"
	"github.com/Psycaptr/rBNB/pkg/middleware"
	"github.com/Psycaptr/rBNB/pkg/tracing"
)

// App wires together all dependencies and runs the property service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	mongoClient     *mongo.Client
	producer        *pkgkafka.Producer
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize tracing first so every later component picks up the
	// global tracer provider.
	tracingShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "property",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Initialize MongoDB client.
	mongoCfg := database.DefaultMongoConfig()
	mongoCfg.URI = cfg.MongoURI
	mongoCfg.Database = cfg.MongoDatabase

	client, err := database.NewMongoClient(ctx, &mongoCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	logger.Info("connected to MongoDB",
		slog.String("database", cfg.MongoDatabase),
	)

	db := client.Database(cfg.MongoDatabase)

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	propertyRepo := mongorepo.NewPropertyRepository(db, cfg.PropertiesCollection)
	ownerLinker := mongorepo.NewOwnerLinker(db, cfg.UsersCollection)
	eventProducer := event.NewProducer(producer, logger)
	propertyService := service.NewPropertyService(
		propertyRepo, ownerLinker, service.UUIDAllocator{}, eventProducer, logger, cfg.RatingMaxAttempts)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("mongodb", func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	corsConfig := middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}

	// HTTP router.
	router := handler.NewRouter(propertyService, healthHandler, corsConfig, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		mongoClient:     client,
		producer:        producer,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.mongoClient.Disconnect(shutdownCtx); err != nil {
		a.logger.Error("mongodb disconnect error", slog.String("error", err.Error()))
	}

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
