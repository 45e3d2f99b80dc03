package entity

import "time"

// HistoryLog 项目历史日志，只追加。除软删除字段外创建后不可变更。
type HistoryLog struct {
	ID             string     `json:"id" gorm:"primaryKey;size:32"`
	ProjectID      string     `json:"project_id" gorm:"size:32;not null;index"`
	AuthorID       string     `json:"author_id" gorm:"size:32;not null"`
	AuthorName     string     `json:"author_name" gorm:"size:64"`
	TargetUserID   *string    `json:"target_user_id" gorm:"size:32"`
	TargetUserName string     `json:"target_user_name" gorm:"size:64"`
	Category       string     `json:"category" gorm:"size:32"`
	Content        string     `json:"content" gorm:"type:text"`
	LogType        string     `json:"log_type" gorm:"size:32;not null;default:manual;index"`
	ApprovalStatus *string    `json:"approval_status" gorm:"size:16"` // 仅approval_response日志填写
	Metadata       JSONB      `json:"metadata,omitempty" gorm:"type:jsonb"`
	IsDeleted      bool       `json:"is_deleted" gorm:"default:false;index"`
	DeletedBy      *string    `json:"deleted_by" gorm:"size:32"`
	DeletedAt      *time.Time `json:"deleted_at"`
	CreatedAt      time.Time  `json:"created_at"`

	// 关联
	Attachments []LogAttachment `json:"attachments,omitempty" gorm:"foreignKey:LogID"`
}

func (HistoryLog) TableName() string {
	return "history_logs"
}

// LogAttachment 日志附件，path指向MinIO对象
type LogAttachment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	LogID     string    `json:"log_id" gorm:"size:32;not null;index"`
	FileName  string    `json:"file_name" gorm:"size:256;not null"`
	FilePath  string    `json:"file_path" gorm:"size:512;not null"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `json:"mime_type" gorm:"size:128"`
	CreatedAt time.Time `json:"created_at"`
}

func (LogAttachment) TableName() string {
	return "history_log_attachments"
}

// 日志类型
const (
	LogTypeManual           = "manual"
	LogTypeApprovalRequest  = "approval_request"
	LogTypeApprovalResponse = "approval_response"
)

// 日志分类
const (
	LogCategoryGeneral  = "general"
	LogCategoryStage    = "stage"
	LogCategoryApproval = "approval"
)
