package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/template_store/pkg/logger"
	"github.com/fjod/template_store/storefront-service/internal/cache"
	storegrpc "github.com/fjod/template_store/storefront-service/internal/grpc"
	h "github.com/fjod/template_store/storefront-service/internal/http"
	"github.com/fjod/template_store/storefront-service/internal/publisher"
	"github.com/fjod/template_store/storefront-service/internal/repository"
	"github.com/fjod/template_store/storefront-service/internal/service"
	"github.com/fjod/template_store/storefront-service/internal/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	demoUsername = "test_user"
	demoEmail    = "test@example.com"
	demoPassword = "password123"
)

type Config struct {
	HTTPPort        string
	GRPCPort        string
	DBPath          string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	SessionTTL      time.Duration
	FilesDir        string
	SeedDemoUser    bool
	Debug           bool
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	HealthInterval  time.Duration
}

func loadConfig() (*Config, error) {
	sessionTTL, err := time.ParseDuration(getEnv("SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	seed, err := strconv.ParseBool(getEnv("SEED_DEMO_USER", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEED_DEMO_USER: %w", err)
	}
	debug, err := strconv.ParseBool(getEnv("DEBUG", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEBUG: %w", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", "50060"),
		DBPath:          getEnv("DB_PATH", "storefront.db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		SessionTTL:      sessionTTL,
		FilesDir:        getEnv("FILES_DIR", "static"),
		SeedDemoUser:    seed,
		Debug:           debug,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		HealthInterval:  10 * time.Second,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New("storefront-service", cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("storefront service failed", zap.Error(err))
	}
}

func run(cfg *Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewRepository(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(); err != nil {
		return err
	}
	lg.Info("database ready", zap.String("path", cfg.DBPath))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	lg.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	sessions := session.NewRedisStore(redisClient, cfg.SessionTTL)
	catalogCache := cache.NewRedisCache(redisClient)
	if err := catalogCache.Flush(ctx); err != nil {
		lg.Warn("failed to flush catalog cache", zap.Error(err))
	}

	catalogService := service.NewCatalogService(repo, catalogCache, lg)
	authService := service.NewAuthService(repo, lg)
	purchaseService := service.NewPurchaseService(repo, lg)

	if cfg.SeedDemoUser {
		created, err := authService.EnsureUser(ctx, demoUsername, demoEmail, demoPassword)
		if err != nil {
			return fmt.Errorf("failed to seed demo user: %w", err)
		}
		if created {
			lg.Info("demo user created", zap.String("email", demoEmail))
		}
	}

	redisPing := storegrpc.PingFunc(func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthServer := health.NewServer()
	checker := storegrpc.NewHealthChecker(healthServer, cfg.HealthInterval, lg, map[string]storegrpc.Pinger{
		"sqlite": repo,
		"redis":  redisPing,
	})

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Sessions:       sessions,
		Health:         checker.Check,
		Logger:         lg,
	}, h.Handlers{
		Templates: h.NewTemplateHandler(catalogService, cfg.RequestTimeout, lg),
		Auth:      h.NewAuthHandler(authService, sessions, cfg.RequestTimeout, lg),
		Purchases: h.NewPurchaseHandler(purchaseService, cfg.RequestTimeout, cfg.FilesDir, lg),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		checker.Run(workersCtx)
	}()

	if len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(repo, lg, cfg.KafkaBrokers...)
		defer func() {
			if err := poller.Close(); err != nil {
				lg.Warn("failed to close kafka writer", zap.Error(err))
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(workersCtx)
		}()
		lg.Info("outbox poller started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", publisher.Topic))
	} else {
		lg.Info("KAFKA_BROKERS not set, outbox poller disabled")
	}

	errCh := make(chan error, 2)
	go func() {
		lg.Info("grpc health server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server error: %w", err)
		}
	}()
	go func() {
		lg.Info("storefront http server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		lg.Info("shutting down storefront service")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	cancelWorkers()
	wg.Wait()

	lg.Info("storefront service stopped")
	return runErr
}
