package service

import (
	"log"

	"github.com/8around/outsourcing-design-park-sub000/internal/config"
	"github.com/8around/outsourcing-design-park-sub000/internal/mailer"
	"github.com/8around/outsourcing-design-park-sub000/internal/repository"
	"github.com/8around/outsourcing-design-park-sub000/internal/storage"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth         *AuthService
	Project      *ProjectService
	Stage        *StageService
	Approval     *ApprovalService
	History      *HistoryService
	Notification *NotificationService
	Report       *ReportService
	Storage      *storage.Store
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Services {
	// 初始化MinIO存储
	var store *storage.Store
	if cfg.MinIO.Endpoint != "" {
		var err error
		store, err = storage.New(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			log.Printf("[Services] MinIO初始化失败，附件功能不可用: %v", err)
			store = nil
		}
	}

	// 初始化SMTP邮件
	var mail *mailer.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}

	notifySvc := NewNotificationService(repos.Notification, repos.User, repos.Project, mail)
	stageSvc := NewStageService(repos.Stage, repos.Project, repos.HistoryLog, rdb)

	var blobStore BlobRemover
	if store != nil {
		blobStore = store
	}

	return &Services{
		Auth:         NewAuthService(repos.User, notifySvc, rdb, cfg),
		Project:      NewProjectService(repos.Project, repos.Stage, stageSvc, rdb, db),
		Stage:        stageSvc,
		Approval:     NewApprovalService(repos.Approval, repos.HistoryLog, repos.User, notifySvc, blobStore),
		History:      NewHistoryService(repos.HistoryLog, repos.User),
		Notification: notifySvc,
		Report:       NewReportService(repos.Project, repos.Stage),
		Storage:      store,
	}
}
