package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	accountapp "github.com/wyfcoding/aetheris/internal/account/application"
	accountdomain "github.com/wyfcoding/aetheris/internal/account/domain"
	accountpg "github.com/wyfcoding/aetheris/internal/account/infrastructure/persistence/postgres"
	accounthttp "github.com/wyfcoding/aetheris/internal/account/interfaces/http"
	riskapp "github.com/wyfcoding/aetheris/internal/risk/application"
	"github.com/wyfcoding/aetheris/internal/risk/infrastructure/messaging"
	riskpg "github.com/wyfcoding/aetheris/internal/risk/infrastructure/persistence/postgres"
	riskhttp "github.com/wyfcoding/aetheris/internal/risk/interfaces/http"
	"github.com/wyfcoding/aetheris/pkg/cache"
	"github.com/wyfcoding/aetheris/pkg/config"
	"github.com/wyfcoding/aetheris/pkg/db"
	"github.com/wyfcoding/aetheris/pkg/logger"
	"github.com/wyfcoding/aetheris/pkg/metrics"
	"github.com/wyfcoding/aetheris/pkg/middleware"
	"github.com/wyfcoding/aetheris/pkg/mq"
	"github.com/wyfcoding/aetheris/pkg/ratelimit"
)

var configPath = flag.String("config", "configs/config.toml", "config file path")

const (
	outboxRelayInterval  = 2 * time.Second
	outboxRelayBatchSize = 100
)

func main() {
	flag.Parse()

	// 1. 配置
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	ctx := context.Background()

	// 3. 指标
	metricsImpl := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		if err := metricsImpl.Register(); err != nil {
			logger.Fatal(ctx, "failed to register metrics", "error", err)
		}
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "failed to start metrics server", "error", err)
		}
	}
	collector := metrics.NewDefaultMetricsCollector(metricsImpl)

	// 4. 数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to connect database", "error", err)
	}

	// 自动建表，开发环境用
	if cfg.Environment == "dev" {
		if err := database.DB.AutoMigrate(
			&accountdomain.Account{},
			&riskpg.RiskSnapshotModel{},
			&messaging.OutboxMessage{},
		); err != nil {
			logger.Error(ctx, "failed to migrate database", "error", err)
		}
	}

	// 5. Redis，连不上时降级为无缓存、无限流
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Warn(ctx, "redis unavailable, caching and rate limiting disabled", "error", err)
		redisCache = nil
	}

	// 6. Kafka + outbox
	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		Partitions:     cfg.Kafka.Partitions,
		Replication:    cfg.Kafka.Replication,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     3,
		RetryBackoff:   100,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to create kafka producer", "error", err)
	}
	publisher := messaging.NewOutboxEventPublisher(database.DB, producer)

	// 7. 仓储与应用服务
	accountRepo := accountpg.NewAccountRepository(database.DB)
	accountService := accountapp.NewAccountApplicationService(accountRepo)

	riskAccountRepo := riskpg.NewAccountRepository(database.DB)
	riskRepo := riskpg.NewRiskRepository(database.DB)
	riskService := riskapp.NewRiskApplicationService(riskAccountRepo, riskRepo, publisher).
		WithMetrics(collector)

	// 8. HTTP 路由
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(
		middleware.GinRecoveryMiddleware(),
		middleware.GinLoggingMiddleware(),
		middleware.GinCORSMiddleware(),
	)
	if cfg.RateLimit.Enabled && redisCache != nil {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		router.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWT))
	accounthttp.NewAccountHandler(accountService).RegisterRoutes(api)
	riskhttp.NewRiskHandler(riskService, redisCache).RegisterRoutes(api)

	// 9. 启动
	g, gctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		publisher.StartRelay(gctx, outboxRelayInterval, outboxRelayBatchSize)
		return nil
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 10. 优雅关闭
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(gctx, "shutting down servers")
		case <-gctx.Done():
			logger.Info(gctx, "context cancelled, shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "server exited with error", "error", err)
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Warn(ctx, "failed to close redis connection", "error", err)
		}
	}
}
