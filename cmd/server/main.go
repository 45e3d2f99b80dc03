package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/8around/outsourcing-design-park-sub000/internal/config"
	"github.com/8around/outsourcing-design-park-sub000/internal/entity"
	"github.com/8around/outsourcing-design-park-sub000/internal/handler"
	"github.com/8around/outsourcing-design-park-sub000/internal/middleware"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/service"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// migrationSQL 建表后的增量迁移。幂等，启动时逐条执行。
var migrationSQL = []string{
	// 审批响应日志由数据库触发器写入，业务代码不直接插入
	`CREATE OR REPLACE FUNCTION write_approval_response_log() RETURNS trigger AS $$
BEGIN
	IF OLD.status = 'pending' AND NEW.status IN ('approved', 'rejected') THEN
		INSERT INTO history_logs (
			id, project_id, author_id, author_name,
			target_user_id, target_user_name,
			category, content, log_type, approval_status,
			is_deleted, created_at
		) VALUES (
			substr(md5(random()::text || clock_timestamp()::text), 1, 32),
			NEW.project_id, NEW.approver_id, NEW.approver_name,
			NEW.requester_id, NEW.requester_name,
			'approval',
			COALESCE(NULLIF(NEW.response_memo, ''), '审批已处理: ' || NEW.status),
			'approval_response', NEW.status,
			false, now()
		);
	END IF;
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS trg_approval_response_log ON approval_requests`,
	`CREATE TRIGGER trg_approval_response_log
		AFTER UPDATE ON approval_requests
		FOR EACH ROW EXECUTE FUNCTION write_approval_response_log()`,
	`CREATE INDEX IF NOT EXISTS idx_projects_current_stage ON projects(current_process_stage)`,
	`CREATE INDEX IF NOT EXISTS idx_history_logs_project_type ON history_logs(project_id, log_type)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, is_read)`,
}

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

	zapLogger.Info("Starting design-park service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Project{},
		&entity.ProcessStage{},
		&entity.ApprovalRequest{},
		&entity.HistoryLog{},
		&entity.LogAttachment{},
		&entity.Notification{},
	); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	for _, stmt := range migrationSQL {
		if err := db.Exec(stmt).Error; err != nil {
			zapLogger.Warn("Migration statement failed", zap.Error(err))
		}
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, caching and refresh tokens degrade", zap.Error(err))
	}

	// 初始化仓储与服务
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, rdb, cfg)
	if services.Storage != nil {
		if err := services.Storage.EnsureBucket(context.Background()); err != nil {
			zapLogger.Warn("MinIO bucket check failed", zap.Error(err))
		}
	}
	handlers := handler.NewHandlers(services)

	// 每天清理90天前的已读通知
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			n, err := services.Notification.PruneRead(context.Background(), 90*24*time.Hour)
			if err != nil {
				zapLogger.Warn("Notification cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zapLogger.Info("Pruned read notifications", zap.Int64("count", n))
			}
		}
	}()

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
		WriteTimeout: 0, // Disable for SSE long-lived connections
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

	v1 := r.Group("/api/v1")
	{
		// 认证（无需登录）
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", h.Auth.Signup)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		// 认证后接口
		authed := v1.Group("")
		authed.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			authed.GET("/auth/me", h.Auth.Me)

			// 项目
			projects := authed.Group("/projects")
			{
				projects.GET("", h.Project.ListProjects)
				projects.POST("", h.Project.CreateProject)
				projects.GET("/:id", h.Project.GetProject)
				projects.PUT("/:id", h.Project.UpdateProject)

				// 工序
				projects.GET("/:id/stages", h.Stage.ListStages)
				projects.PUT("/:id/stages/:stage", h.Stage.UpdateStage)
				projects.POST("/:id/stages/advance", h.Stage.MoveToNextStage)

				// 履历日志
				projects.GET("/:id/logs", h.History.ListLogs)
			}

			// 仪表盘
			authed.GET("/dashboard/summary", h.Project.GetDashboard)

			// 审批
			approvals := authed.Group("/approvals")
			{
				approvals.GET("", h.Approval.ListApprovals)
				approvals.POST("", h.Approval.CreateApproval)
				approvals.GET("/pending/count", h.Approval.CountMyPending)
				approvals.GET("/:id", h.Approval.GetApproval)
				approvals.POST("/:id/respond", h.Approval.RespondApproval)
			}

			// 日志与附件
			authed.POST("/logs", h.History.CreateLog)
			authed.DELETE("/logs/:id", h.History.DeleteLog)
			authed.POST("/uploads", h.History.UploadAttachment)
			authed.GET("/uploads/url", h.History.DownloadAttachment)

			// 通知
			notifications := authed.Group("/notifications")
			{
				notifications.GET("", h.Notification.ListNotifications)
				notifications.GET("/unread/count", h.Notification.CountUnread)
				notifications.POST("/read-all", h.Notification.MarkAllRead)
				notifications.POST("/:id/read", h.Notification.MarkRead)
			}

			// 报表
			authed.GET("/reports/projects", h.Report.ExportProjects)

			// SSE
			authed.GET("/sse/events", h.SSE.Stream)

			// 管理员
			admin := authed.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.DELETE("/projects/:id", h.Project.DeleteProject)
				admin.DELETE("/approvals/:id", h.Approval.DeleteApproval)
				admin.GET("/users/pending", h.Auth.ListPendingUsers)
				admin.POST("/users/:id/approve", h.Auth.ApproveUser)
			}
		}
	}
}
