package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mission_backend/internal/config"
	"mission_backend/internal/controller"
	"mission_backend/internal/middleware"
	"mission_backend/internal/repository"
	"mission_backend/internal/service"
	"mission_backend/pkg/configwatcher"
	"mission_backend/pkg/database"
	"mission_backend/pkg/logger"
	"mission_backend/pkg/monitoring"
	"mission_backend/pkg/security"
	"mission_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	attempt *repository.MissionAttemptRepository
	event   *repository.MissionEventRepository
	review  *repository.ReviewRepository
}

type services struct {
	mission   *service.MissionService
	review    *service.ReviewService
	event     *service.EventService
	analytics *service.AnalyticsService
	timeline  *service.TimelineService
	hub       *service.MissionHub
}

type controllers struct {
	mission   *controller.MissionController
	event     *controller.EventController
	analytics *controller.AnalyticsController
	dashboard *controller.DashboardController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		attempt: repository.NewMissionAttemptRepository(db),
		event:   repository.NewMissionEventRepository(db),
		review:  repository.NewReviewRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.mission = service.NewMissionService(repos.attempt, repos.event, repos.review, cfg.Mission)
	s.review = service.NewReviewService(repos.review, repos.attempt, s.mission)
	s.event = service.NewEventService(repos.event, s.mission, s.review)
	s.analytics = service.NewAnalyticsService(repos.attempt, repos.event, repos.review, cfg.Analytics.Location(), cfg.Analytics.RecentLimit)
	s.timeline = service.NewTimelineService(s.mission, repos.event, repos.review)

	s.hub = service.NewMissionHub(s.event, rdb, cfg.WebSocket)
	go s.hub.Run()

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		mission:   controller.NewMissionController(s.mission, s.review, s.event, s.timeline),
		event:     controller.NewEventController(s.event, s.hub),
		analytics: controller.NewAnalyticsController(s.analytics),
		dashboard: controller.NewDashboardController(s.analytics, s.review, s.timeline),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// registerConfigCallbacks 配置热更新时调整日志级别和任务返回的连接信息
func (a *App) registerConfigCallbacks() {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		logger.SetLevel(cfg)
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		a.services.mission.UpdateSettings(cfg.Mission)
	})
}

// New 使用已经建立的连接组装应用，rdb 为 nil 时 WebSocket 回执只在本实例内投递
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(app.services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers)
	app.registerConfigCallbacks()

	return app
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Error("Failed to initialize database", zap.Error(err))
		return nil, err
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Error("Failed to initialize redis", zap.Error(err))
		return nil, err
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("mission-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
			return nil, err
		}
		app.tracer = tp
	}

	return app, nil
}

func (a *App) Run() error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	stopWatch := make(chan struct{})
	if a.Config.Dir != "" {
		err := configwatcher.WatchConfig(config.ConfigFile(a.Config.Dir), func(cfg *config.Config) {
			for _, callback := range a.configCallbacks {
				callback(cfg)
			}
		}, stopWatch)
		if err != nil {
			logger.Log.Warn("Config watcher disabled", zap.Error(err))
		}
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		close(stopWatch)
		return err
	}
	logger.Log.Info("Shutting down server...")
	close(stopWatch)

	// 关闭 WebSocket 连接
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
	return nil
}

// Close 停止后台协程，用于测试和迁移命令
func (a *App) Close() {
	if a.services != nil && a.services.hub != nil {
		a.services.hub.Stop()
	}
}
