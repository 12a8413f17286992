package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitfantasy/nimo-inventory/internal/config"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/entity"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/handler"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/recipe"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/repository"
	"github.com/bitfantasy/nimo-inventory/internal/inventory/service"
	"github.com/bitfantasy/nimo-inventory/internal/middleware"
	"github.com/bitfantasy/nimo-inventory/internal/scheduler"
	"github.com/bitfantasy/nimo-inventory/internal/shared/notify"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-inventory service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := entity.AutoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate inventory tables", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 加载配方/出材率/阈值注册表
	registry, err := recipe.Load(cfg.Inventory.ConfigFile)
	if err != nil {
		zapLogger.Fatal("Failed to load inventory registry",
			zap.String("file", cfg.Inventory.ConfigFile), zap.Error(err))
	}
	zapLogger.Info("Inventory registry loaded",
		zap.String("file", cfg.Inventory.ConfigFile),
		zap.Strings("unit_types", registry.UnitTypes()),
	)

	// 低库存告警节流：redis可用则进程间共享，否则退化为进程内
	var throttle service.ThrottleStore
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, falling back to in-memory alert throttle", zap.Error(err))
		throttle = service.NewMemoryThrottleStore()
	} else {
		throttle = service.NewRedisThrottleStore(rdb)
	}
	gate := service.NewLowStockGate(registry, throttle, cfg.Inventory.AlertThrottle, zapLogger)

	// 外部通知
	var notifier notify.Notifier = &notify.Nop{}
	if cfg.Notify.Enabled && cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookClient(cfg.Notify, zapLogger)
		zapLogger.Info("Webhook notifier initialized")
	}

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, registry, gate, notifier, zapLogger)
	handlers := handler.NewHandlers(services)

	// 每日低库存巡检
	sweeper := scheduler.New(cfg.Inventory.SweepCron, repos, registry, notifier, zapLogger)
	sweeper.Start()
	defer sweeper.Stop()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api/v1/inventory")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 台账
		stock := api.Group("/stock")
		{
			stock.GET("/:part", h.Inventory.Current)
			stock.GET("/:part/asof", h.Inventory.CurrentAsOf)
			stock.GET("/:part/history", h.Inventory.History)
			stock.POST("/restock", h.Inventory.Restock)
		}

		// 完工扣料与冲销
		api.POST("/consume", h.Consume.Consume)
		api.POST("/reverse", h.Consume.Reverse)
		api.GET("/completions", h.Consume.ListCompletions)

		// 序列号
		api.GET("/serials/next", h.Consume.NextSerial)
		api.GET("/serials/:serial", h.Consume.DecodeSerial)

		// 出材引擎
		yield := api.Group("/yield")
		{
			yield.POST("/cut", h.Yield.Cut)
			yield.POST("/uncut", h.Yield.Uncut)
		}

		// 产能与平衡
		api.GET("/capacity", h.Capacity.Capacity)
		api.GET("/deficit", h.Capacity.Deficit)

		// 配方用量覆盖（仅管理员）
		api.PUT("/recipes/usage", middleware.RequireRole("inv_admin"), h.Inventory.OverrideUsage)

		// 报表导出
		api.GET("/report/export", h.Report.Export)
	}
}
