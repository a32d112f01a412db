package lifecycle

import (
	"errors"
	"math"
	"time"

	"github.com/agrimaster/internal/db"
)

const (
	// DefaultDueHorizon 是任务到期提醒的提前量
	DefaultDueHorizon = 24 * time.Hour
	// HarvestReminderDays 收获提醒恰好在剩余天数等于该值时触发
	HarvestReminderDays = 7

	day = 24 * time.Hour
)

var (
	// ErrInvalidSpan 在收获日期不晚于播种日期时返回
	ErrInvalidSpan = errors.New("expected harvest date must be after sowing date")
	// ErrMissingDates 在记录缺少推导所需日期时返回
	ErrMissingDates = errors.New("crop record missing required dates")
)

// 各阶段占播种到收获总天数的固定比例
var stageShares = []struct {
	name  string
	share float64
}{
	{db.StageGermination, 0.10},
	{db.StageSeedling, 0.15},
	{db.StageVegetative, 0.30},
	{db.StageFlowering, 0.20},
	{db.StageFruiting, 0.15},
	{db.StageRipening, 0.10},
}

// GenerateStages 在建档时一次性生成六个生长阶段。
// 每个阶段按固定比例切分总天数，起始日期首尾相接，从播种日开始。
func GenerateStages(sowing, harvest time.Time) ([]db.GrowthStage, error) {
	if sowing.IsZero() || harvest.IsZero() {
		return nil, ErrMissingDates
	}
	if !harvest.After(sowing) {
		return nil, ErrInvalidSpan
	}

	totalDays := harvest.Sub(sowing).Hours() / 24
	stages := make([]db.GrowthStage, 0, len(stageShares))
	cur := sowing
	for _, s := range stageShares {
		days := int(math.Round(totalDays * s.share))
		stages = append(stages, db.GrowthStage{
			Name:             s.name,
			StartDate:        cur,
			ExpectedDuration: days,
		})
		cur = cur.AddDate(0, 0, days)
	}
	return stages, nil
}

// DeriveCurrentStage 推导当前生长阶段：
// 候选为起始日期 ≤ now 且（未标记完成，或完成时间 ≥ now）的阶段，
// 取其中起始日期最晚的一个。没有候选时 ok 为 false，调用方应保留旧值。
func DeriveCurrentStage(stages []db.GrowthStage, now time.Time) (string, bool) {
	best := -1
	for i := range stages {
		st := &stages[i]
		if st.StartDate.After(now) {
			continue
		}
		if st.CompletedAt != nil && st.CompletedAt.Before(now) {
			continue
		}
		if best == -1 || st.StartDate.After(stages[best].StartDate) {
			best = i
		}
	}
	if best == -1 {
		return "", false
	}
	return stages[best].Name, true
}

// ApplyCurrentStage 把推导结果写回记录的 CurrentStage 字段。
// 无候选阶段时保留旧值（粘滞语义）。返回值表示字段是否发生变化。
// 任何阶段列表的变更都必须先经过这里再持久化。
func ApplyCurrentStage(record *db.CropRecord, now time.Time) bool {
	name, ok := DeriveCurrentStage(record.GrowthStages, now)
	if !ok || name == record.CurrentStage {
		return false
	}
	record.CurrentStage = name
	return true
}

// DueTasks 返回应当发出到期提醒的任务下标：
// 状态为 pending 或 overdue、尚未发送过提醒，且计划日期落在 now+horizon 之内。
// 逾期扫描可能先于摘要把任务置为 overdue，提醒不因此丢失；
// 至多一次由 NotificationSent 标志保证，与两个任务的执行顺序无关。
// 是否翻转 NotificationSent 由调用方决定，保证推导本身无副作用。
func DueTasks(tasks []db.Task, now time.Time, horizon time.Duration) []int {
	if horizon <= 0 {
		horizon = DefaultDueHorizon
	}
	deadline := now.Add(horizon)
	var due []int
	for i := range tasks {
		t := &tasks[i]
		if t.Status != db.TaskStatusPending && t.Status != db.TaskStatusOverdue {
			continue
		}
		if t.NotificationSent {
			continue
		}
		if t.PlannedDate.After(deadline) {
			continue
		}
		due = append(due, i)
	}
	return due
}

// OverdueTasks 返回已逾期但状态仍为 pending 的任务下标
func OverdueTasks(tasks []db.Task, now time.Time) []int {
	var overdue []int
	for i := range tasks {
		t := &tasks[i]
		if t.Status == db.TaskStatusPending && t.PlannedDate.Before(now) {
			overdue = append(overdue, i)
		}
	}
	return overdue
}

// SweepOverdue 把逾期任务置为 overdue，返回变更数量。
// 转换单调不可逆，重复扫描不会产生新的变更。
func SweepOverdue(record *db.CropRecord, now time.Time) int {
	idx := OverdueTasks(record.Tasks, now)
	for _, i := range idx {
		record.Tasks[i].Status = db.TaskStatusOverdue
	}
	return len(idx)
}

// StageDue 判断当前阶段是否到了该更新的时候：
// 预计完成日期（起始日期 + 预期时长）已到且尚未标记完成。
// 返回该阶段的指针便于调用方取名字和日期。
func StageDue(record *db.CropRecord, now time.Time) (*db.GrowthStage, bool) {
	name, ok := DeriveCurrentStage(record.GrowthStages, now)
	if !ok {
		name = record.CurrentStage
	}
	if name == "" {
		return nil, false
	}
	for i := range record.GrowthStages {
		st := &record.GrowthStages[i]
		if st.Name != name || st.Completed {
			continue
		}
		expectedEnd := st.StartDate.AddDate(0, 0, st.ExpectedDuration)
		if !expectedEnd.After(now) {
			return st, true
		}
	}
	return nil, false
}

// HarvestWindow 返回距预期收获日期的整天数（向下取整，已过期为负数）。
// 记录缺少预期收获日期或已不在生长状态时 ok 为 false。
func HarvestWindow(record *db.CropRecord, now time.Time) (int, bool) {
	if record.ExpectedHarvestDate == nil || record.Status != db.CropStatusGrowing {
		return 0, false
	}
	return DaysUntil(*record.ExpectedHarvestDate, now), true
}

// DaysUntil 计算 now 到 t 的整天数，floor((t-now)/24h)
func DaysUntil(t, now time.Time) int {
	return int(math.Floor(float64(t.Sub(now)) / float64(day)))
}
