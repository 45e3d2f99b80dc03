package entity

import "time"

// ApprovalRequest 审批请求，固定单审批人，pending → approved/rejected 一次性终态
type ApprovalRequest struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	ProjectID     string     `json:"project_id" gorm:"size:32;not null;index"`
	RequesterID   string     `json:"requester_id" gorm:"size:32;not null;index"`
	RequesterName string     `json:"requester_name" gorm:"size:64"`
	ApproverID    string     `json:"approver_id" gorm:"size:32;not null;index"`
	ApproverName  string     `json:"approver_name" gorm:"size:64"`
	Memo          string     `json:"memo" gorm:"type:text"`
	Status        string     `json:"status" gorm:"size:16;not null;default:pending;index"`
	ResponseMemo  string     `json:"response_memo" gorm:"type:text"`
	RespondedAt   *time.Time `json:"responded_at"`
	HistoryLogID  *string    `json:"history_log_id" gorm:"size:32"`
	ResponseLogID *string    `json:"response_log_id" gorm:"size:32"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// 关联
	Project   *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Requester *User    `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
	Approver  *User    `json:"approver,omitempty" gorm:"foreignKey:ApproverID"`
}

func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// 审批状态
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// IsResolved 是否已终态
func (a *ApprovalRequest) IsResolved() bool {
	return a.Status == ApprovalStatusApproved || a.Status == ApprovalStatusRejected
}
