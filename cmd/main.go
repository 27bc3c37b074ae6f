package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/ReadingRoom/config"
	"github.com/Gopher0727/ReadingRoom/internal/api"
	"github.com/Gopher0727/ReadingRoom/internal/handler"
	"github.com/Gopher0727/ReadingRoom/internal/repository"
	"github.com/Gopher0727/ReadingRoom/internal/service"
	"github.com/Gopher0727/ReadingRoom/internal/storage"
	"github.com/Gopher0727/ReadingRoom/middleware/jwt"
	logger "github.com/Gopher0727/ReadingRoom/middleware/log"
	"github.com/Gopher0727/ReadingRoom/pkg/mq"
	"github.com/Gopher0727/ReadingRoom/utils/ratelimit"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化 PostgreSQL
	db, err := storage.InitPostgres(cfg.Postgres)
	if err != nil {
		appLogger.Fatal("failed to init postgres", zap.Error(err))
	}

	// 初始化 Redis（可选）
	redisClient, err := storage.InitRedis(ctx, cfg.Redis)
	if err != nil {
		appLogger.Fatal("failed to init redis", zap.Error(err))
	}
	var limiter ratelimit.Limiter
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.NewFixedWindowLimiter(redisClient, appLogger.Logger, true)
	} else {
		appLogger.Warn("redis disabled, running without user cache and rate limit")
	}

	// 初始化 Kafka Producer（可选）
	var publisher mq.Publisher = mq.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := mq.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, appLogger.Logger)
		if err != nil {
			appLogger.Warn("kafka unavailable, activity events disabled", zap.Error(err))
		} else {
			publisher = kafkaPublisher
		}
	}
	defer publisher.Close()

	// 初始化仓储层
	userRepo := repository.NewUserRepository(db, redisClient)
	bookRepo := repository.NewBookRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)

	// 初始化服务层
	tokenManager := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTTLMinutes, cfg.JWT.RefreshTTLHours)
	authService := service.NewAuthService(userRepo, tokenManager, appLogger)
	bookService := service.NewBookService(bookRepo)
	groupService := service.NewGroupService(groupRepo, bookRepo, userRepo, publisher, appLogger)
	chapterService := service.NewChapterService(chapterRepo, groupRepo, userRepo, publisher, appLogger)
	discussionService := service.NewDiscussionService(discussionRepo, chapterRepo, groupRepo, publisher, appLogger)
	progressService := service.NewProgressService(groupRepo, chapterRepo)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()

	mw := api.NewMiddlewareManager(authService, limiter, appLogger, &cfg.RateLimit)
	api.RegisterRoutes(r, mw, api.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Book:       handler.NewBookHandler(bookService),
		Group:      handler.NewGroupHandler(groupService),
		Chapter:    handler.NewChapterHandler(chapterService),
		Discussion: handler.NewDiscussionHandler(discussionService),
		Progress:   handler.NewProgressHandler(progressService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
