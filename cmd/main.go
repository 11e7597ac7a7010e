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
	"syscall"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"budgetapp/chatsync/internal/cache"
	"budgetapp/chatsync/internal/config"
	"budgetapp/chatsync/internal/handler"
	"budgetapp/chatsync/internal/model"
	"budgetapp/chatsync/internal/realtime"
	"budgetapp/chatsync/internal/realtime/phoenix"
	"budgetapp/chatsync/internal/repository"
	"budgetapp/chatsync/internal/service"
)

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("CHATSYNC_CONFIG"); p != "" {
		configPath = p
	}

	// 1. Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Connect to PostgreSQL when a component needs it
	var db *gorm.DB
	if cfg.Remote.Backend == "postgres" || cfg.Cache.Backend == "postgres" {
		db, err = config.NewPostgresDB(cfg.Database.Postgres)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		if cfg.Database.Postgres.AutoMigrate {
			if err := model.AutoMigrate(db); err != nil {
				logger.Fatal("failed to auto-migrate", zap.Error(err))
			}
			logger.Info("database migration completed")
		}
	}

	// 4. Initialize durable cache tier
	var store repository.CacheStore
	switch cfg.Cache.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		store = repository.NewRedisCacheStore(redisClient, cfg.Cache.KeyPrefix)
		logger.Info("using Redis cache store")
	case "postgres":
		store = repository.NewPGCacheStore(db)
		logger.Info("using PostgreSQL cache store")
	case "memory":
		store = repository.NewMemoryCacheStore()
		logger.Info("using in-memory cache store")
	default:
		logger.Fatal("unknown cache backend", zap.String("backend", cfg.Cache.Backend))
	}

	// 5. Initialize cache manager and janitor
	cacheManager, err := cache.New(store, cache.Options{
		DefaultTTL:      cfg.Cache.DefaultTTL,
		MemorySize:      cfg.Cache.MemorySize,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("failed to init cache", zap.Error(err))
	}
	go cacheManager.Run(ctx)

	// 6. Initialize remote source repositories
	var (
		postRepo    repository.PostRepository
		messageRepo repository.MessageRepository
		expenseRepo repository.ExpenseRepository
	)
	switch cfg.Remote.Backend {
	case "postgres":
		postRepo = repository.NewPGPostRepository(db)
		messageRepo = repository.NewPGMessageRepository(db)
		expenseRepo = repository.NewPGExpenseRepository(db)
	case "supabase":
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, nil)
		if err != nil {
			logger.Fatal("failed to init supabase client", zap.Error(err))
		}
		postRepo = repository.NewSupabasePostRepository(client)
		messageRepo = repository.NewSupabaseMessageRepository(client)
		expenseRepo = repository.NewSupabaseExpenseRepository(client)
	default:
		logger.Fatal("unknown remote backend", zap.String("backend", cfg.Remote.Backend))
	}
	logger.Info("remote source ready", zap.String("backend", cfg.Remote.Backend))

	// 7. Initialize realtime transport
	live := service.LiveConfig{Schema: cfg.Realtime.Schema}
	if cfg.Realtime.Enabled {
		transport := phoenix.New(phoenix.Config{
			URL:               cfg.Realtime.URL,
			APIKey:            cfg.Realtime.APIKey,
			HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
			DialTimeout:       cfg.Realtime.ConnectTimeout,
			BufferSize:        cfg.Realtime.BufferSize,
			Logger:            logger,
		})
		defer transport.Close()

		live.Transport = transport
		live.Options = realtime.Options{
			ConnectTimeout:   cfg.Realtime.ConnectTimeout,
			SubscribeTimeout: cfg.Realtime.SubscribeTimeout,
			PollInterval:     cfg.Realtime.PollInterval,
			SeenCeiling:      cfg.Realtime.SeenCeiling,
			BufferSize:       cfg.Realtime.BufferSize,
		}
		logger.Info("realtime enabled", zap.String("url", cfg.Realtime.URL))
	}

	// 8. Initialize services
	breaker := service.NewBreaker("remote", cfg.Remote.Breaker, logger)
	postService := service.NewPostService(postRepo, cacheManager, breaker, logger)
	chatService := service.NewChatService(messageRepo, cacheManager, breaker, cfg.Cache.HistoryTTL, live, logger)
	expenseService := service.NewExpenseService(expenseRepo, cacheManager, breaker, logger)

	// 9. Initialize handlers and router
	router := handler.SetupRouter(cfg, logger,
		handler.NewPostHandler(postService, logger),
		handler.NewChatHandler(chatService, logger),
		handler.NewExpenseHandler(expenseService, logger),
		handler.NewCacheHandler(cacheManager, logger),
	)

	// 10. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	// 11. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 12. Wait for interrupt signal
	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}
