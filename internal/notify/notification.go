package notify

import (
	"sort"
	"time"
)

// 通知类型
const (
	TypeTaskReminder      = "task_reminder"
	TypeGrowthStageUpdate = "growth_stage_update"
	TypeHarvestReminder   = "harvest_reminder"
	TypeHarvestOverdue    = "harvest_overdue"
)

// Notification 是一次聚合运算派生出的待投递通知。
// 它不落库：每轮聚合重新计算，持久化的副作用只有作物记录上的标志位。
type Notification struct {
	ID        string    `json:"id"`
	FarmerID  uint      `json:"farmer_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	CropID    uint      `json:"crop_id"`
	TaskID    uint      `json:"task_id,omitempty"`
	StageName string    `json:"stage_name,omitempty"`
	DueDate   time.Time `json:"due_date"`
}

// 优先级排序权重：urgent < high < medium < low，未知值排在最后
var priorityRank = map[string]int{
	"urgent": 0,
	"high":   1,
	"medium": 2,
	"low":    3,
}

func rankOf(priority string) int {
	if r, ok := priorityRank[priority]; ok {
		return r
	}
	return len(priorityRank)
}

// SortByPriority 按优先级稳定排序，同级保持插入顺序
func SortByPriority(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		return rankOf(list[i].Priority) < rankOf(list[j].Priority)
	})
}
