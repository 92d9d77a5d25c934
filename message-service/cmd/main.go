package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-io-live/message-service/internal/cache"
	"github.com/weiawesome/wes-io-live/message-service/internal/config"
	"github.com/weiawesome/wes-io-live/message-service/internal/consumer"
	"github.com/weiawesome/wes-io-live/message-service/internal/domain"
	"github.com/weiawesome/wes-io-live/message-service/internal/handler"
	"github.com/weiawesome/wes-io-live/message-service/internal/idgen"
	"github.com/weiawesome/wes-io-live/message-service/internal/janitor"
	"github.com/weiawesome/wes-io-live/message-service/internal/metrics"
	"github.com/weiawesome/wes-io-live/message-service/internal/ratelimit"
	"github.com/weiawesome/wes-io-live/message-service/internal/repository"
	"github.com/weiawesome/wes-io-live/message-service/internal/service"
	pkgconfig "github.com/weiawesome/wes-io-live/pkg/config"
	"github.com/weiawesome/wes-io-live/pkg/database"
	"github.com/weiawesome/wes-io-live/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/middleware"
	"github.com/weiawesome/wes-io-live/pkg/response"
)

func main() {
	// 1. Load configuration; log level follows later edits of the file
	cfg, err := config.LoadAndWatch(func(next *config.Config) {
		lvl := pkglog.SetLevel(next.Log.Level)
		l := pkglog.L()
		l.WithLevel(lvl).Str("level", lvl.String()).Msg("log level reloaded")
	})
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	serviceName := pkgconfig.GetEnv("SERVICE_NAME", "message-service")
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: serviceName,
	})
	logger := pkglog.L()

	// 3. Init DB (GORM, auto-migrate message models)
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// 4. Init Redis client; the response cache degrades to a no-op without it
	var redisClient *redis.Client
	if cfg.Cache.Enabled || cfg.RateLimit.Driver == ratelimit.DriverRedis {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis unavailable")
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
		}
	}

	var store cache.ResponseCache = cache.NewNopCache(cfg.Cache.Prefix)
	if cfg.Cache.Enabled && redisClient != nil {
		store = cache.NewRedisResponseCache(redisClient, cfg.Cache.Prefix)
	} else {
		logger.Warn().Msg("response cache disabled; views are computed on every read")
	}
	views := cache.NewViewCache(store, cfg.Cache.TTL)

	// 5. Create id generator, repos, token manager, svc
	ids, err := idgen.New(cfg.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create id generator")
	}

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	svc := service.NewMessageService(
		repository.NewGormMessageRepository(db, ids),
		repository.NewGormUnreadIndex(db),
		repository.NewGormNotificationRepository(db),
		views,
		tokens,
	)

	// 6. Create rate limiter for message creation
	limiter, err := ratelimit.New(cfg.RateLimit, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.RateLimit.Driver).Msg("failed to create rate limiter")
	}
	logger.Info().
		Str("driver", cfg.RateLimit.Driver).
		Int("max_requests", cfg.RateLimit.MaxRequests).
		Dur("window", cfg.RateLimit.Window).
		Msg("rate limiter ready")

	// 7. Init Kafka consumer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var kafkaConsumer *consumer.ConfluentConsumer
	if cfg.Kafka.Brokers != "" {
		kc, err := consumer.NewConfluentConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, svc)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, account deletions will not cascade")
		} else if err := kc.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to start kafka consumer")
		} else {
			kafkaConsumer = kc
			logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka users consumer started")
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; users consumer disabled")
	}

	// 8. Init janitor and start
	tasks := []janitor.Task{{
		Name: "token_revocations",
		Run:  func(context.Context) int { return tokens.CleanupExpiredRevocations() },
	}}
	if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
		tasks = append(tasks, janitor.Task{Name: "ratelimit_windows", Run: mem.EvictIdle})
	}
	jan := janitor.New(cfg.Janitor.Interval, tasks...)
	jan.Start(ctx)
	logger.Info().Dur("interval", cfg.Janitor.Interval).Int("tasks", len(tasks)).Msg("janitor started")

	// 9. Setup Gin router + HTTP server
	httpHandler := handler.NewHandler(svc, middleware.NewAuthMiddleware(tokens), ratelimit.Middleware(limiter))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	httpHandler.RegisterRoutes(r)

	// 10. Start server goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("message-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 11. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// 1. cancel(): stop Kafka consumer loop and janitor ticker
		cancel()

		// 2. kafkaConsumer.Close(): wait for in-flight removal
		if kafkaConsumer != nil {
			if err := kafkaConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		// 3. janitor.Stop(): stop ticker; <-janitor.Done()
		jan.Stop()
		<-jan.Done()

		// 4. server.Shutdown(5s): drain HTTP
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("message-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
