package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/lifecycle"
	"github.com/google/uuid"
)

// CropRepository 是聚合器对存储层的唯一依赖。
// SaveVersioned 以记录的版本号做条件保存，冲突时返回 db.ErrVersionConflict。
type CropRepository interface {
	ListAll() ([]db.CropRecord, error)
	ListByFarmer(farmerID uint) ([]db.CropRecord, error)
	Get(id uint) (*db.CropRecord, error)
	SaveVersioned(record *db.CropRecord) error
}

// Clock 抽象当前时间，便于测试注入
type Clock interface {
	Now() time.Time
}

// SystemClock 直接读系统时间
type SystemClock struct{}

// Now 返回当前系统时间
func (SystemClock) Now() time.Time { return time.Now() }

// Aggregator 把单条作物记录上的任务/阶段/收获信号合并为有序通知列表
type Aggregator struct {
	crops  CropRepository
	clock  Clock
	logger *log.Logger
}

// NewAggregator 构造聚合器，clock 为 nil 时使用系统时钟
func NewAggregator(crops CropRepository, clock Clock, logger *log.Logger) *Aggregator {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{crops: crops, clock: clock, logger: logger}
}

// Preview 为单个农户做纯推导：不翻转提醒标志、不写库。
// 同步接口走这里，保证网页端读取不会消耗当日的定时摘要。
func (a *Aggregator) Preview(farmerID uint) ([]Notification, error) {
	records, err := a.crops.ListByFarmer(farmerID)
	if err != nil {
		return nil, fmt.Errorf("list crops for farmer %d: %w", farmerID, err)
	}

	var out []Notification
	for i := range records {
		signals, _ := a.collect(&records[i], a.clock.Now(), false)
		out = append(out, signals...)
	}
	SortByPriority(out)
	return out, nil
}

// Digest 对全部农户执行每日摘要：推导信号、翻转提醒标志并按记录持久化。
// 单条记录保存失败（冲突重试一次后仍失败）只丢弃这条记录的通知，不影响其余记录。
func (a *Aggregator) Digest(ctx context.Context) ([]Notification, error) {
	records, err := a.crops.ListAll()
	if err != nil {
		return nil, fmt.Errorf("list all crops: %w", err)
	}

	var out []Notification
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		signals, err := a.digestRecord(&records[i])
		if err != nil {
			a.logger.Printf("[digest] crop %d skipped: %v", records[i].ID, err)
			continue
		}
		out = append(out, signals...)
	}
	SortByPriority(out)
	return out, ctx.Err()
}

// digestRecord 对单条记录推导并落库。推导出的变更与通知要么同时生效要么同时放弃。
func (a *Aggregator) digestRecord(record *db.CropRecord) ([]Notification, error) {
	now := a.clock.Now()
	signals, changed := a.collect(record, now, true)
	if !changed {
		return signals, nil
	}

	err := a.crops.SaveVersioned(record)
	if err == nil {
		return signals, nil
	}
	if !errors.Is(err, db.ErrVersionConflict) {
		return nil, err
	}

	// 乐观锁冲突：重取最新版本重算一次，再冲突就跳过
	fresh, err := a.crops.Get(record.ID)
	if err != nil {
		return nil, fmt.Errorf("refetch after conflict: %w", err)
	}
	signals, changed = a.collect(fresh, now, true)
	if !changed {
		return signals, nil
	}
	if err := a.crops.SaveVersioned(fresh); err != nil {
		return nil, fmt.Errorf("retry save: %w", err)
	}
	return signals, nil
}

// collect 对一条记录推导全部通知信号，顺序固定为任务、阶段、收获。
// mutate 为 true 时就地翻转任务的提醒标志；当前阶段推导总是先行。
func (a *Aggregator) collect(record *db.CropRecord, now time.Time, mutate bool) ([]Notification, bool) {
	changed := false
	if lifecycle.ApplyCurrentStage(record, now) && mutate {
		changed = true
	}

	var out []Notification

	for _, i := range lifecycle.DueTasks(record.Tasks, now, lifecycle.DefaultDueHorizon) {
		task := &record.Tasks[i]
		out = append(out, Notification{
			ID:       uuid.New().String(),
			FarmerID: record.FarmerID,
			Type:     TypeTaskReminder,
			Title:    fmt.Sprintf("Task Due: %s", task.Title),
			Message:  fmt.Sprintf("%s is due for %s", task.Title, record.CropName),
			Priority: task.Priority,
			CropID:   record.ID,
			TaskID:   task.ID,
			DueDate:  task.PlannedDate,
		})
		if mutate {
			task.NotificationSent = true
			changed = true
		}
	}

	// 缺少必要日期的记录只跳过阶段/收获推导，任务提醒不受影响
	if record.SowingDate.IsZero() {
		return out, changed
	}

	if stage, due := lifecycle.StageDue(record, now); due {
		out = append(out, Notification{
			ID:        uuid.New().String(),
			FarmerID:  record.FarmerID,
			Type:      TypeGrowthStageUpdate,
			Title:     "Growth Stage Update Required",
			Message:   fmt.Sprintf("Please update the %s stage for %s", stage.Name, record.CropName),
			Priority:  db.PriorityMedium,
			CropID:    record.ID,
			StageName: stage.Name,
			DueDate:   stage.StartDate.AddDate(0, 0, stage.ExpectedDuration),
		})
	}

	if days, ok := lifecycle.HarvestWindow(record, now); ok {
		switch {
		case days == lifecycle.HarvestReminderDays:
			out = append(out, Notification{
				ID:       uuid.New().String(),
				FarmerID: record.FarmerID,
				Type:     TypeHarvestReminder,
				Title:    "Harvest Approaching",
				Message:  fmt.Sprintf("%s is ready for harvest in %d days", record.CropName, days),
				Priority: db.PriorityMedium,
				CropID:   record.ID,
				DueDate:  *record.ExpectedHarvestDate,
			})
		case days < 0:
			out = append(out, Notification{
				ID:       uuid.New().String(),
				FarmerID: record.FarmerID,
				Type:     TypeHarvestOverdue,
				Title:    "Harvest Overdue",
				Message:  fmt.Sprintf("%s harvest is overdue by %d days", record.CropName, -days),
				Priority: db.PriorityHigh,
				CropID:   record.ID,
				DueDate:  *record.ExpectedHarvestDate,
			})
		}
	}

	return out, changed
}
