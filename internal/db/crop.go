package db

import (
	"time"

	"gorm.io/gorm"
)

// 作物生命周期状态
const (
	CropStatusPlanning  = "planning"
	CropStatusGrowing   = "growing"
	CropStatusHarvested = "harvested"
	CropStatusFailed    = "failed"
)

// 生长阶段固定词表，顺序即生命周期顺序
const (
	StageGermination = "germination"
	StageSeedling    = "seedling"
	StageVegetative  = "vegetative"
	StageFlowering   = "flowering"
	StageFruiting    = "fruiting"
	StageRipening    = "ripening"
)

// StageOrder 按生命周期顺序列出全部阶段名
var StageOrder = []string{
	StageGermination,
	StageSeedling,
	StageVegetative,
	StageFlowering,
	StageFruiting,
	StageRipening,
}

// 任务状态：overdue 由后台扫描自动写入，completed/skipped 只能显式设置
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusOverdue   = "overdue"
	TaskStatusSkipped   = "skipped"
)

// 任务/通知优先级
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// CropRecord 定义了一条作物种植记录
// Version 为乐观锁版本号，后台任务的读-改-写以它做条件保存
// CurrentStage 允许"粘滞"：当没有阶段窗口命中当前时间时保留旧值
type CropRecord struct {
	gorm.Model
	FarmerID            uint  `gorm:"index"`
	FieldID             *uint `gorm:"index"`
	CropName            string
	Variety             string
	SowingDate          time.Time
	ExpectedHarvestDate *time.Time
	ActualHarvestDate   *time.Time
	Area                float64
	AreaUnit            string
	Status              string `gorm:"default:growing"`
	CurrentStage        string
	ExpectedYield       *float64
	ActualYield         *float64
	YieldUnit           string
	Notes               string
	Version             uint          `gorm:"default:1"`
	GrowthStages        []GrowthStage `gorm:"constraint:OnDelete:CASCADE"`
	Tasks               []Task        `gorm:"constraint:OnDelete:CASCADE"`
	GrowthLogs          []GrowthLog   `gorm:"constraint:OnDelete:CASCADE"`
}

// GrowthStage 记录单个生长阶段
// 阶段在建档时一次性生成，完成只能显式标记，CompletedAt 记录标记时间
type GrowthStage struct {
	gorm.Model
	CropRecordID     uint `gorm:"index"`
	Name             string
	StartDate        time.Time
	ExpectedDuration int
	Completed        bool
	CompletedAt      *time.Time
	HealthStatus     string `gorm:"default:good"`
	Notes            string
}

// Task 是挂在作物记录上的农事任务
// NotificationSent 保证到期提醒至多发送一次
type Task struct {
	gorm.Model
	CropRecordID     uint `gorm:"index"`
	Type             string
	Title            string
	Description      string
	PlannedDate      time.Time
	Status           string `gorm:"default:pending"`
	Priority         string `gorm:"default:medium"`
	NotificationSent bool
	CompletedAt      *time.Time
}

// GrowthLog 是生长日志条目，图片只存外部对象存储的 URL
type GrowthLog struct {
	gorm.Model
	CropRecordID uint `gorm:"index"`
	Date         time.Time
	Note         string
	ImageURL     string
	HealthStatus string
}
