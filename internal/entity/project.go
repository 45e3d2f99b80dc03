package entity

import (
	"time"
)

// Project 制造项目实体
type Project struct {
	ID                  string     `json:"id" gorm:"primaryKey;size:32"`
	Code                string     `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name                string     `json:"name" gorm:"size:128;not null"`
	Site                string     `json:"site" gorm:"size:128"`
	ProductName         string     `json:"product_name" gorm:"size:128"`
	ProductNumber       string     `json:"product_number" gorm:"size:64"`
	OrderDate           *time.Time `json:"order_date" gorm:"type:date"`
	ExpectedCompletion  *time.Time `json:"expected_completion_date" gorm:"type:date"`
	CurrentProcessStage string     `json:"current_process_stage" gorm:"size:32;default:contract"`
	IsUrgent            bool       `json:"is_urgent" gorm:"default:false"`
	Memo                string     `json:"memo" gorm:"type:text"`
	CreatedBy           string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	DeletedAt           *time.Time `json:"deleted_at" gorm:"index"`

	// 关联
	Creator *User          `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Stages  []ProcessStage `json:"stages,omitempty" gorm:"foreignKey:ProjectID"`
}

func (Project) TableName() string {
	return "projects"
}

// ProcessStage 项目工序记录，每个项目固定14道工序，每道一行
type ProcessStage struct {
	ID              string     `json:"id" gorm:"primaryKey;size:32"`
	ProjectID       string     `json:"project_id" gorm:"size:32;not null;index:idx_stage_project_name,unique"`
	StageName       string     `json:"stage_name" gorm:"size:32;not null;index:idx_stage_project_name,unique"`
	StageOrder      int        `json:"stage_order" gorm:"not null"`
	Status          string     `json:"status" gorm:"size:16;not null;default:waiting"`
	DelayReason     string     `json:"delay_reason" gorm:"type:text"`
	StartDate       *time.Time `json:"start_date" gorm:"type:date"`
	EndDate         *time.Time `json:"end_date" gorm:"type:date"`
	ActualStartDate *time.Time `json:"actual_start_date" gorm:"type:date"`
	ActualEndDate   *time.Time `json:"actual_end_date" gorm:"type:date"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// 关联
	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (ProcessStage) TableName() string {
	return "process_stages"
}

// 工序名称（固定14道，顺序不可变）
const (
	StageContract   = "contract"   // 合同
	StageDesign     = "design"     // 图纸设计
	StageOrder      = "order"      // 发注
	StageIncoming   = "incoming"   // 材料入库
	StageLaser      = "laser"      // 激光切割
	StageBending    = "bending"    // 折弯
	StageWelding    = "welding"    // 焊接
	StageMachining  = "machining"  // 机加工
	StagePlating    = "plating"    // 电镀
	StagePainting   = "painting"   // 喷涂
	StageAssembly   = "assembly"   // 组装
	StageInspection = "inspection" // 出货检验
	StageShipping   = "shipping"   // 出货
	StageCompletion = "completion" // 完了
)

// StageSequence 工序的唯一有序定义，stage_order = 下标+1。
// 所有需要名称→顺序映射的地方一律引用这里，禁止重复声明。
var StageSequence = [14]string{
	StageContract,
	StageDesign,
	StageOrder,
	StageIncoming,
	StageLaser,
	StageBending,
	StageWelding,
	StageMachining,
	StagePlating,
	StagePainting,
	StageAssembly,
	StageInspection,
	StageShipping,
	StageCompletion,
}

// StageCount 固定工序数
const StageCount = len(StageSequence)

// StageOrderOf 返回工序的固定顺序（1..14），未知名称返回0
func StageOrderOf(name string) int {
	for i, s := range StageSequence {
		if s == name {
			return i + 1
		}
	}
	return 0
}

// IsValidStageName 校验工序名称
func IsValidStageName(name string) bool {
	return StageOrderOf(name) > 0
}

// 工序状态
const (
	StageStatusWaiting    = "waiting"
	StageStatusInProgress = "in_progress"
	StageStatusCompleted  = "completed"
	StageStatusDelayed    = "delayed"
)

// IsValidStageStatus 校验工序状态值
func IsValidStageStatus(status string) bool {
	switch status {
	case StageStatusWaiting, StageStatusInProgress, StageStatusCompleted, StageStatusDelayed:
		return true
	}
	return false
}

// IsActive 工序是否处于活动状态（进行中或延期）
func (s *ProcessStage) IsActive() bool {
	return s.Status == StageStatusInProgress || s.Status == StageStatusDelayed
}
