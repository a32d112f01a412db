package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/lifecycle"
	"gorm.io/gorm"
)

var (
	// ErrCropNotFound 在作物记录不存在或不属于该农户时返回
	ErrCropNotFound = errors.New("crop record not found")
	// ErrTaskNotFound 在任务不存在时返回
	ErrTaskNotFound = errors.New("task not found")
	// ErrStageNotFound 在阶段名不在该记录的阶段列表里时返回
	ErrStageNotFound = errors.New("growth stage not found")
	// ErrInvalidTaskStatus 在任务状态转换不合法时返回
	ErrInvalidTaskStatus = errors.New("invalid task status transition")
	// ErrInvalidCropStatus 在作物状态不在词表内时返回
	ErrInvalidCropStatus = errors.New("invalid crop status")
)

// CropService 负责作物记录的增删改查，同时充当后台任务的记录仓库。
// 所有涉及阶段列表变更的写路径都会先重推当前阶段再落库。
type CropService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCropService 构造 CropService
func NewCropService(gdb *gorm.DB) *CropService {
	return &CropService{db: gdb, now: time.Now}
}

// SetNowFunc 注入时间源，测试用
func (s *CropService) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// CropInput 定义建档时可配置字段
type CropInput struct {
	FieldID             *uint
	CropName            string
	Variety             string
	SowingDate          time.Time
	ExpectedHarvestDate time.Time
	Area                float64
	AreaUnit            string
	ExpectedYield       *float64
	YieldUnit           string
	Notes               string
}

// CropUpdateInput 定义建档后允许修改的字段
type CropUpdateInput struct {
	Status            string
	ActualHarvestDate *time.Time
	ActualYield       *float64
	Notes             *string
}

// TaskInput 定义新增任务的字段
type TaskInput struct {
	Type        string
	Title       string
	Description string
	PlannedDate time.Time
	Priority    string
}

// GrowthLogInput 定义生长日志条目
type GrowthLogInput struct {
	Note         string
	ImageURL     string
	HealthStatus string
}

// StageUpdateInput 定义阶段更新字段；Completed 为 true 时记录完成时间
type StageUpdateInput struct {
	Name         string
	HealthStatus string
	Notes        string
	Completed    bool
}

// Create 新建作物记录并一次性生成六个生长阶段
func (s *CropService) Create(farmerID uint, input CropInput) (*db.CropRecord, error) {
	name := strings.TrimSpace(input.CropName)
	if name == "" {
		return nil, errors.New("crop name is required")
	}

	stages, err := lifecycle.GenerateStages(input.SowingDate, input.ExpectedHarvestDate)
	if err != nil {
		return nil, err
	}

	harvest := input.ExpectedHarvestDate
	record := db.CropRecord{
		FarmerID:            farmerID,
		FieldID:             input.FieldID,
		CropName:            name,
		Variety:             strings.TrimSpace(input.Variety),
		SowingDate:          input.SowingDate,
		ExpectedHarvestDate: &harvest,
		Area:                input.Area,
		AreaUnit:            input.AreaUnit,
		Status:              db.CropStatusGrowing,
		ExpectedYield:       input.ExpectedYield,
		YieldUnit:           input.YieldUnit,
		Notes:               input.Notes,
		Version:             1,
		GrowthStages:        stages,
	}
	lifecycle.ApplyCurrentStage(&record, s.now())

	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("create crop record: %w", err)
	}
	return &record, nil
}

// GetOwned 按归属取单条记录，带全部关联
func (s *CropService) GetOwned(farmerID, id uint) (*db.CropRecord, error) {
	var record db.CropRecord
	err := s.preloaded().Where("farmer_id = ?", farmerID).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCropNotFound
		}
		return nil, fmt.Errorf("get crop record: %w", err)
	}
	return &record, nil
}

// List 返回农户的记录集合，status 非空时按状态过滤
func (s *CropService) List(farmerID uint, status string) ([]db.CropRecord, error) {
	query := s.preloaded().Where("farmer_id = ?", farmerID)
	if status != "" {
		if !validCropStatus(status) {
			return nil, ErrInvalidCropStatus
		}
		query = query.Where("status = ?", status)
	}

	var records []db.CropRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list crop records: %w", err)
	}
	return records, nil
}

// Update 修改记录的状态与收获信息
func (s *CropService) Update(farmerID, id uint, input CropUpdateInput) (*db.CropRecord, error) {
	record, err := s.GetOwned(farmerID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"version": gorm.Expr("version + 1")}
	if input.Status != "" {
		if !validCropStatus(input.Status) {
			return nil, ErrInvalidCropStatus
		}
		updates["status"] = input.Status
	}
	if input.ActualHarvestDate != nil {
		updates["actual_harvest_date"] = *input.ActualHarvestDate
	}
	if input.ActualYield != nil {
		updates["actual_yield"] = *input.ActualYield
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}

	if err := s.db.Model(record).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update crop record: %w", err)
	}
	return s.GetOwned(farmerID, id)
}

// Delete 删除作物记录，关联的阶段/任务/日志由外键级联清除
func (s *CropService) Delete(farmerID, id uint) error {
	record, err := s.GetOwned(farmerID, id)
	if err != nil {
		return err
	}
	if err := s.db.Select("GrowthStages", "Tasks", "GrowthLogs").Delete(record).Error; err != nil {
		return fmt.Errorf("delete crop record: %w", err)
	}
	return nil
}

// AddTask 给作物记录新增一条农事任务
func (s *CropService) AddTask(farmerID, cropID uint, input TaskInput) (*db.Task, error) {
	record, err := s.GetOwned(farmerID, cropID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.New("task title is required")
	}

	priority := input.Priority
	if priority == "" {
		priority = db.PriorityMedium
	}
	if !validPriority(priority) {
		return nil, fmt.Errorf("invalid task priority %q", priority)
	}

	task := db.Task{
		CropRecordID: record.ID,
		Type:         strings.TrimSpace(input.Type),
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		PlannedDate:  input.PlannedDate,
		Status:       db.TaskStatusPending,
		Priority:     priority,
	}
	if err := s.db.Create(&task).Error; err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}
	return &task, nil
}

// UpdateTaskStatus 显式转换任务状态。
// 只允许 pending/overdue → completed|skipped；completed 时记录完成时间。
// overdue 由后台扫描按时间自动写入，不接受手工设置。
func (s *CropService) UpdateTaskStatus(farmerID, cropID, taskID uint, status string) (*db.Task, error) {
	if _, err := s.GetOwned(farmerID, cropID); err != nil {
		return nil, err
	}

	var task db.Task
	if err := s.db.Where("crop_record_id = ?", cropID).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	if status != db.TaskStatusCompleted && status != db.TaskStatusSkipped {
		return nil, ErrInvalidTaskStatus
	}
	if task.Status != db.TaskStatusPending && task.Status != db.TaskStatusOverdue {
		return nil, ErrInvalidTaskStatus
	}

	task.Status = status
	if status == db.TaskStatusCompleted {
		now := s.now()
		task.CompletedAt = &now
	}
	if err := s.db.Save(&task).Error; err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	return &task, nil
}

// AddGrowthLog 追加一条生长日志
func (s *CropService) AddGrowthLog(farmerID, cropID uint, input GrowthLogInput) (*db.GrowthLog, error) {
	record, err := s.GetOwned(farmerID, cropID)
	if err != nil {
		return nil, err
	}

	entry := db.GrowthLog{
		CropRecordID: record.ID,
		Date:         s.now(),
		Note:         input.Note,
		ImageURL:     input.ImageURL,
		HealthStatus: input.HealthStatus,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("add growth log: %w", err)
	}
	return &entry, nil
}

// UpdateGrowthStage 更新某个阶段的健康状况/备注，或显式标记完成。
// 完成时间取更新时刻；保存前必须重推当前阶段。
func (s *CropService) UpdateGrowthStage(farmerID, cropID uint, input StageUpdateInput) (*db.CropRecord, error) {
	record, err := s.GetOwned(farmerID, cropID)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range record.GrowthStages {
		if record.GrowthStages[i].Name == input.Name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrStageNotFound
	}

	now := s.now()
	stage := &record.GrowthStages[idx]
	if input.HealthStatus != "" {
		stage.HealthStatus = input.HealthStatus
	}
	if input.Notes != "" {
		stage.Notes = input.Notes
	}
	if input.Completed && !stage.Completed {
		stage.Completed = true
		stage.CompletedAt = &now
	}

	lifecycle.ApplyCurrentStage(record, now)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(stage).Error; err != nil {
			return err
		}
		return tx.Model(record).Updates(map[string]interface{}{
			"current_stage": record.CurrentStage,
			"version":       gorm.Expr("version + 1"),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("update growth stage: %w", err)
	}
	return s.GetOwned(farmerID, cropID)
}

// CalendarEvent 是日历视图里的一个条目
type CalendarEvent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	Type     string    `json:"type"`
	Status   string    `json:"status"`
	Priority string    `json:"priority,omitempty"`
	CropID   uint      `json:"crop_id"`
}

// CalendarEvents 把农户的播种/收获/阶段/任务铺到时间轴上
func (s *CropService) CalendarEvents(farmerID uint, start, end time.Time) ([]CalendarEvent, error) {
	records, err := s.List(farmerID, "")
	if err != nil {
		return nil, err
	}

	var events []CalendarEvent
	inRange := func(t time.Time) bool {
		return !t.Before(start) && !t.After(end)
	}

	for i := range records {
		crop := &records[i]
		if inRange(crop.SowingDate) {
			events = append(events, CalendarEvent{
				ID:     fmt.Sprintf("sow-%d", crop.ID),
				Title:  fmt.Sprintf("Sow %s", crop.CropName),
				Start:  crop.SowingDate,
				Type:   "sowing",
				Status: "scheduled",
				CropID: crop.ID,
			})
		}
		if crop.ExpectedHarvestDate != nil && inRange(*crop.ExpectedHarvestDate) {
			status := "scheduled"
			if crop.Status == db.CropStatusHarvested {
				status = "completed"
			}
			events = append(events, CalendarEvent{
				ID:     fmt.Sprintf("harvest-%d", crop.ID),
				Title:  fmt.Sprintf("Harvest %s", crop.CropName),
				Start:  *crop.ExpectedHarvestDate,
				Type:   "harvest",
				Status: status,
				CropID: crop.ID,
			})
		}
		for j := range crop.GrowthStages {
			stage := &crop.GrowthStages[j]
			if !inRange(stage.StartDate) {
				continue
			}
			status := "scheduled"
			if stage.Completed {
				status = "completed"
			}
			events = append(events, CalendarEvent{
				ID:     fmt.Sprintf("stage-%d-%s", crop.ID, stage.Name),
				Title:  fmt.Sprintf("%s - %s", stage.Name, crop.CropName),
				Start:  stage.StartDate,
				Type:   "growth_stage",
				Status: status,
				CropID: crop.ID,
			})
		}
		for j := range crop.Tasks {
			task := &crop.Tasks[j]
			if !inRange(task.PlannedDate) {
				continue
			}
			events = append(events, CalendarEvent{
				ID:       fmt.Sprintf("task-%d", task.ID),
				Title:    task.Title,
				Start:    task.PlannedDate,
				Type:     "task",
				Status:   task.Status,
				Priority: task.Priority,
				CropID:   crop.ID,
			})
		}
	}
	return events, nil
}

// ---- 后台任务仓库接口（notify.CropRepository）----

// ListAll 返回全部作物记录，带阶段与任务
func (s *CropService) ListAll() ([]db.CropRecord, error) {
	var records []db.CropRecord
	if err := s.preloaded().Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list all crops: %w", err)
	}
	return records, nil
}

// ListByFarmer 返回某农户的全部记录，带阶段与任务
func (s *CropService) ListByFarmer(farmerID uint) ([]db.CropRecord, error) {
	return s.List(farmerID, "")
}

// Get 按主键取记录，带阶段与任务
func (s *CropService) Get(id uint) (*db.CropRecord, error) {
	var record db.CropRecord
	if err := s.preloaded().First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCropNotFound
		}
		return nil, fmt.Errorf("get crop record: %w", err)
	}
	return &record, nil
}

// SaveVersioned 以版本号做条件保存：先占住版本，再在同一事务里写回
// 任务与阶段的派生变更。占不住说明有人抢先写入，返回冲突让调用方重试。
func (s *CropService) SaveVersioned(record *db.CropRecord) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.CropRecord{}).
			Where("id = ? AND version = ?", record.ID, record.Version).
			Updates(map[string]interface{}{
				"version":       record.Version + 1,
				"current_stage": record.CurrentStage,
				"status":        record.Status,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return db.ErrVersionConflict
		}

		for i := range record.Tasks {
			if err := tx.Save(&record.Tasks[i]).Error; err != nil {
				return err
			}
		}
		for i := range record.GrowthStages {
			if err := tx.Save(&record.GrowthStages[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	record.Version++
	return nil
}

func (s *CropService) preloaded() *gorm.DB {
	return s.db.
		Preload("GrowthStages", func(tx *gorm.DB) *gorm.DB { return tx.Order("start_date") }).
		Preload("Tasks", func(tx *gorm.DB) *gorm.DB { return tx.Order("planned_date") }).
		Preload("GrowthLogs", func(tx *gorm.DB) *gorm.DB { return tx.Order("date") })
}

func validCropStatus(status string) bool {
	switch status {
	case db.CropStatusPlanning, db.CropStatusGrowing, db.CropStatusHarvested, db.CropStatusFailed:
		return true
	}
	return false
}

func validPriority(priority string) bool {
	switch priority {
	case db.PriorityLow, db.PriorityMedium, db.PriorityHigh, db.PriorityUrgent:
		return true
	}
	return false
}
