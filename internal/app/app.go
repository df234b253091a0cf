package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/nxhieu3102/ai-assistant/internal/cache"
	"github.com/nxhieu3102/ai-assistant/internal/config"
	"github.com/nxhieu3102/ai-assistant/internal/repo"
	"github.com/nxhieu3102/ai-assistant/internal/service"
	"github.com/nxhieu3102/ai-assistant/internal/store"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	redis  *redis.Client
	sqlite *repo.SQLiteTaskRepo
	router *gin.Engine
}

func New(cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	taskRepo, err := a.newTaskRepo(cfg)
	if err != nil {
		return nil, err
	}

	var taskCache *cache.TaskCache
	if cfg.Redis.CacheEnabled() {
		rdb, err := newRedis(cfg.Redis)
		if err != nil {
			a.closeStores()
			return nil, err
		}
		a.redis = rdb
		taskCache = cache.NewTaskCache(rdb, cfg.Redis.DefaultTTL.Duration())
	}

	taskSvc := service.NewTaskService(taskRepo, taskCache, service.Config{
		MigrationEnabled: cfg.Tasks.MigrationEnabled,
		RetentionDays:    cfg.Tasks.RetentionDays,
	}, log)

	a.router = newRouter(cfg, taskSvc, log)
	return a, nil
}

func (a *App) newTaskRepo(cfg config.Config) (repo.TaskRepo, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		sr, err := repo.NewSQLiteTaskRepo(cfg.Store.DataDir)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		a.sqlite = sr
		return sr, nil
	default:
		fs, err := store.NewFileStore(cfg.Store.DataDir, a.log,
			store.WithMaxBackups(cfg.Store.MaxBackups),
			store.WithLockRetry(cfg.Store.LockRetries, cfg.Store.LockRetryDelay.Duration()),
		)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		return repo.NewFileTaskRepo(fs), nil
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Close(ctx context.Context) error {
	_ = ctx
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.closeStores()
	return nil
}

func (a *App) closeStores() {
	if a.sqlite != nil {
		_ = a.sqlite.Close()
	}
}

func newRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

func newRouter(cfg config.Config, taskSvc *service.TaskService, log *slog.Logger) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(metricsMiddleware())

	Setup(r, cfg, taskSvc, log)
	return r
}
