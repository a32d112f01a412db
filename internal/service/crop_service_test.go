package service

import (
	"errors"
	"testing"
	"time"

	"github.com/agrimaster/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupCropTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.CropRecord{}, &db.GrowthStage{}, &db.Task{}, &db.GrowthLog{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func fixedNow() time.Time {
	return time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
}

func newTestCropService() *CropService {
	svc := NewCropService(db.DB)
	svc.SetNowFunc(fixedNow)
	return svc
}

func TestCropServiceCreateGeneratesStages(t *testing.T) {
	cleanup := setupCropTestDB(t)
	defer cleanup()

	svc := newTestCropService()
	sowing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	record, err := svc.Create(11, CropInput{
		CropName:            "番茄",
		Variety:             "普罗旺斯",
		SowingDate:          sowing,
		ExpectedHarvestDate: sowing.AddDate(0, 0, 100),
		Area:                2.5,
		AreaUnit:            "acre",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if record.ID == 0 {
		t.Fatal("expected record to have ID")
	}
	if record.Status != db.CropStatusGrowing {
		t.Fatalf("unexpected status: %s", record.Status)
	}
	if len(record.GrowthStages) != 6 {
		t.Fatalf("expected 6 stages, got %d", len(record.GrowthStages))
	}
	// 建档当天是第 31 天，当前阶段应为营养生长期
	if record.CurrentStage != db.StageVegetative {
		t.Fatalf("unexpected current stage: %s", record.CurrentStage)
	}

	fetched, err := svc.GetOwned(11, record.ID)
	if err != nil {
		t.Fatalf("GetOwned returned error: %v", err)
	}
	if fetched.GrowthStages[0].Name != db.StageGermination || fetched.GrowthStages[0].ExpectedDuration != 10 {
		t.Fatalf("first stage mismatch: %+v", fetched.GrowthStages[0])
	}

	// 收获日期不晚于播种日期建档失败
	if _, err := svc.Create(11, CropInput{CropName: "坏记录", SowingDate: sowing, ExpectedHarvestDate: sowing}); err == nil {
		t.Fatal("expected error for invalid date span")
	}
}

func TestCropServiceOwnershipScoping(t *testing.T) {
	cleanup := setupCropTestDB(t)
	defer cleanup()

	svc := newTestCropService()
	sowing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	record, err := svc.Create(1, CropInput{CropName: "小麦", SowingDate: sowing, ExpectedHarvestDate: sowing.AddDate(0, 0, 120)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.GetOwned(2, record.ID); !errors.Is(err, ErrCropNotFound) {
		t.Fatalf("expected ErrCropNotFound for foreign farmer, got %v", err)
	}

	records, err := svc.List(1, db.CropStatusGrowing)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	if _, err := svc.List(1, "blooming"); !errors.Is(err, ErrInvalidCropStatus) {
		t.Fatalf("expected ErrInvalidCropStatus, got %v", err)
	}
}

func TestCropServiceTaskLifecycle(t *testing.T) {
	cleanup := setupCropTestDB(t)
	defer cleanup()

	svc := newTestCropService()
	sowing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	record, _ := svc.Create(5, CropInput{CropName: "黄瓜", SowingDate: sowing, ExpectedHarvestDate: sowing.AddDate(0, 0, 90)})

	task, err := svc.AddTask(5, record.ID, TaskInput{
		Type:        "irrigation",
		Title:       "滴灌检查",
		PlannedDate: fixedNow().AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatalf("AddTask returned error: %v", err)
	}
	if task.Status != db.TaskStatusPending || task.Priority != db.PriorityMedium {
		t.Fatalf("unexpected defaults: %+v", task)
	}

	// 不允许手工设置 overdue
	if _, err := svc.UpdateTaskStatus(5, record.ID, task.ID, db.TaskStatusOverdue); !errors.Is(err, ErrInvalidTaskStatus) {
		t.Fatalf("expected ErrInvalidTaskStatus, got %v", err)
	}

	done, err := svc.UpdateTaskStatus(5, record.ID, task.ID, db.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus returned error: %v", err)
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(fixedNow()) {
		t.Fatalf("completion should be timestamped, got %v", done.CompletedAt)
	}

	// 已完成的任务不能再转换
	if _, err := svc.UpdateTaskStatus(5, record.ID, task.ID, db.TaskStatusSkipped); !errors.Is(err, ErrInvalidTaskStatus) {
		t.Fatalf("expected ErrInvalidTaskStatus for completed task, got %v", err)
	}
}

func TestCropServiceUpdateGrowthStage(t *testing.T) {
	cleanup := setupCropTestDB(t)
	defer cleanup()

	svc := newTestCropService()
	sowing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	record, _ := svc.Create(8, CropInput{CropName: "辣椒", SowingDate: sowing, ExpectedHarvestDate: sowing.AddDate(0, 0, 100)})

	// 建档后第 31 天处于营养生长期；把它标记完成后当前阶段应回退重推
	updated, err := svc.UpdateGrowthStage(8, record.ID, StageUpdateInput{
		Name:         db.StageVegetative,
		HealthStatus: "excellent",
		Completed:    true,
	})
	if err != nil {
		t.Fatalf("UpdateGrowthStage returned error: %v", err)
	}

	var stage *db.GrowthStage
	for i := range updated.GrowthStages {
		if updated.GrowthStages[i].Name == db.StageVegetative {
			stage = &updated.GrowthStages[i]
		}
	}
	if stage == nil || !stage.Completed || stage.CompletedAt == nil {
		t.Fatalf("stage completion not persisted: %+v", stage)
	}
	if stage.HealthStatus != "excellent" {
		t.Fatalf("health status not persisted: %s", stage.HealthStatus)
	}

	if _, err := svc.UpdateGrowthStage(8, record.ID, StageUpdateInput{Name: "dormancy"}); !errors.Is(err, ErrStageNotFound) {
		t.Fatalf("expected ErrStageNotFound, got %v", err)
	}
}

func TestCropServiceDelete(t *testing.T) {
	cleanup := setupCropTestDB(t)
	defer cleanup()

	svc := newTestCropService()
	sowing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	record, _ := svc.Create(2, CropInput{CropName: "油菜", SowingDate: sowing, ExpectedHarvestDate: sowing.AddDate(0, 0, 80)})

	// 不能删别人的记录
	if err := svc.Delete(9, record.ID); !errors.Is(err, ErrCropNotFound) {
		t.Fatalf("expected ErrCropNotFound for foreign farmer, got %v", err)
	}

	if err := svc.Delete(2, record.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := svc.GetOwned(2, record.ID); !errors.Is(err, ErrCropNotFound) {
		t.Fatalf("expected ErrCropNotFound after delete, got %v", err)
	}
}

func TestCropServiceSaveVersionedConflict(t *testing.T) {
	cleanup := setupCropTestDB(t)
	defer cleanup()

	svc := newTestCropService()
	sowing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	record, _ := svc.Create(3, CropInput{CropName: "葡萄", SowingDate: sowing, ExpectedHarvestDate: sowing.AddDate(0, 0, 150)})

	first, err := svc.Get(record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, _ := svc.Get(record.ID)

	first.Status = db.CropStatusFailed
	if err := svc.SaveVersioned(first); err != nil {
		t.Fatalf("first save should succeed: %v", err)
	}

	// 第二个副本还拿着旧版本号，必须冲突
	second.Status = db.CropStatusHarvested
	if err := svc.SaveVersioned(second); !errors.Is(err, db.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// 重取后保存成功，版本继续推进
	fresh, _ := svc.Get(record.ID)
	if fresh.Status != db.CropStatusFailed {
		t.Fatalf("first save was lost: %s", fresh.Status)
	}
	fresh.Status = db.CropStatusHarvested
	if err := svc.SaveVersioned(fresh); err != nil {
		t.Fatalf("save after refetch should succeed: %v", err)
	}
}

func TestCropServiceCalendarEvents(t *testing.T) {
	cleanup := setupCropTestDB(t)
	defer cleanup()

	svc := newTestCropService()
	sowing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	record, _ := svc.Create(6, CropInput{CropName: "草莓", SowingDate: sowing, ExpectedHarvestDate: sowing.AddDate(0, 0, 100)})
	if _, err := svc.AddTask(6, record.ID, TaskInput{Title: "铺地膜", PlannedDate: sowing.AddDate(0, 0, 5)}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	events, err := svc.CalendarEvents(6, sowing, sowing.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("CalendarEvents returned error: %v", err)
	}

	// 30 天窗口：播种 + 前三个阶段起点 + 一个任务；收获在窗口外
	counts := map[string]int{}
	for _, e := range events {
		counts[e.Type]++
	}
	if counts["sowing"] != 1 || counts["task"] != 1 {
		t.Fatalf("unexpected event counts: %v", counts)
	}
	if counts["growth_stage"] != 3 {
		t.Fatalf("expected 3 stage events in window, got %d", counts["growth_stage"])
	}
	if counts["harvest"] != 0 {
		t.Fatal("harvest event should fall outside the window")
	}
}
