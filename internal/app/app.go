package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/orderengine/internal/config"
	"github.com/utafrali/orderengine/internal/event"
	handler "github.com/utafrali/orderengine/internal/handler/http"
	"github.com/utafrali/orderengine/internal/payment"
	"github.com/utafrali/orderengine/internal/repository/postgres"
	redisrepo "github.com/utafrali/orderengine/internal/repository/redis"
	"github.com/utafrali/orderengine/internal/service"
	"github.com/utafrali/orderengine/migrations"
	"github.com/utafrali/orderengine/pkg/database"
	"github.com/utafrali/orderengine/pkg/health"
	"github.com/utafrali/orderengine/pkg/httpclient"
	pkgkafka "github.com/utafrali/orderengine/pkg/kafka"
	"github.com/utafrali/orderengine/pkg/middleware"
	"github.com/utafrali/orderengine/pkg/tracing"
)

const serviceName = "order-engine"

// App wires together all dependencies and runs the order engine.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	pool            *pgxpool.Pool
	redis           *goredis.Client
	producer        *pkgkafka.Producer
	dlq             *pkgkafka.DLQProducer
	paymentConsumer *pkgkafka.Consumer
	placement       *service.PlacementService
	httpServer      *http.Server
	tracerShutdown  func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL holds the catalog, promo codes and orders; it is required.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis only backs the rate cache and payment event deduplication, so
	// the service starts without it.
	redisCfg := cfg.Redis()

	redisClient, err := database.NewRedisClient(ctx, redisCfg, logger)
	if err != nil {
		logger.Warn("redis unavailable, continuing without rate cache and with local event deduplication",
			slog.String("addr", redisCfg.Addr()),
			slog.String("error", err.Error()),
		)
		redisClient = nil
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

	// Payment service client guarded by a circuit breaker.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = time.Duration(cfg.PaymentTimeoutSeconds) * time.Second
	breaker := httpclient.NewCircuitBreakerClient(httpclient.New(clientCfg), httpclient.CircuitBreakerConfig{
		Name:         "payment",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, logger)
	capturer := payment.NewHTTPCapturer(breaker, cfg.PaymentServiceURL, logger)

	// Build the dependency graph.
	catalogRepo := postgres.NewCatalogRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	promoRepo := postgres.NewPromoRepository(pool)
	rateRepo := postgres.NewRateRepository(pool)
	store := postgres.NewStore(pool)

	var rateCache service.RateCache
	var processed pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(cfg.ProcessedEventTTL())
	if redisClient != nil {
		rateCache = redisrepo.NewRateCache(redisClient, cfg.RateCacheTTL())
		processed = redisrepo.NewProcessedEvents(redisClient, cfg.ProcessedEventTTL())
	}

	publisher := event.NewProducer(producer, logger)
	rates := service.NewRateProvider(rateRepo, rateCache, logger)
	placement := service.NewPlacementService(catalogRepo, store, rates, publisher, capturer, service.PricingConfig{
		BaseCurrency:   cfg.BaseCurrency,
		TaxRatePercent: cfg.TaxRatePercent,
		Shipping:       cfg.ShippingTable(),
	}, logger)
	orders := service.NewOrderService(orderRepo, store, publisher, logger)
	promos := service.NewPromoService(promoRepo, rates, cfg.BaseCurrency, logger)

	paymentConsumer := event.NewPaymentConsumer(event.PaymentConsumerConfig{
		Brokers:    cfg.KafkaBrokers,
		GroupID:    cfg.KafkaConsumerGroup,
		MaxRetries: cfg.KafkaMaxRetries,
	}, orders, processed, dlq, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterOptional("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})
	healthHandler.RegisterOptional("payment", func(context.Context) error {
		if breaker.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(handler.Handlers{
		Orders:  handler.NewOrderHandler(placement, orders, logger),
		Catalog: handler.NewCatalogHandler(catalogRepo, rates, cfg.BaseCurrency, logger),
		Promos:  handler.NewPromoHandler(promos, logger),
	}, healthHandler, logger, handler.RouterConfig{
		CORS:       cors,
		PprofCIDRs: cfg.PprofAllowedCIDRs,
		PlacementLimit: middleware.RateLimitConfig{
			RPS:   cfg.PlacementRateLimitRPS,
			Burst: cfg.PlacementRateLimitBurst,
		},
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		redis:           redisClient,
		producer:        producer,
		dlq:             dlq,
		paymentConsumer: paymentConsumer,
		placement:       placement,
		httpServer:      httpServer,
		tracerShutdown:  tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the payment result consumer, then blocks
// until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.paymentConsumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("payment consumer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("component failed, shutting down", slog.String("error", err.Error()))
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Post-commit hand-offs (events and payment capture requests)
// 3. Tracer (flush spans from the drained work)
// 4. Kafka consumer, dead-letter producer and producer
// 5. Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if !waitTimeout(a.placement.Wait, 10*time.Second) {
		a.logger.Warn("order hand-offs still running at shutdown")
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.paymentConsumer.Close(); err != nil {
		a.logger.Error("payment consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// waitTimeout runs wait and reports whether it returned within d.
func waitTimeout(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	const attempts = 3

	var lastErr error
	for attempt := range attempts {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		base := time.Duration(1<<uint(attempt)) * time.Second
		wait := base + time.Duration(float64(base)*0.25*(2*rand.Float64()-1)) // #nosec G404 -- retry jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after %d attempts: %w", attempts, lastErr)
}
