package service

import (
	"testing"
	"time"

	"github.com/agrimaster/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupReportTestDB(t *testing.T) func() {
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

func TestReportServiceHarvestReport(t *testing.T) {
	cleanup := setupReportTestDB(t)
	defer cleanup()

	crops := NewCropService(db.DB)
	crops.SetNowFunc(func() time.Time { return time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC) })

	sowing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	expected1 := 800.0
	if _, err := crops.Create(9, CropInput{
		CropName:            "番茄",
		SowingDate:          sowing,
		ExpectedHarvestDate: sowing.AddDate(0, 0, 100),
		Area:                2,
		AreaUnit:            "acre",
		ExpectedYield:       &expected1,
		YieldUnit:           "kg",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	expected2 := 1200.0
	if _, err := crops.Create(9, CropInput{
		CropName:            "小麦",
		SowingDate:          sowing.AddDate(0, 0, 10),
		ExpectedHarvestDate: sowing.AddDate(0, 0, 130),
		ExpectedYield:       &expected2,
		YieldUnit:           "kg",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// 别的农户的记录不得混入
	if _, err := crops.Create(10, CropInput{CropName: "葡萄", SowingDate: sowing, ExpectedHarvestDate: sowing.AddDate(0, 0, 150)}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc := NewReportService(db.DB)
	f, err := svc.HarvestReport(9)
	if err != nil {
		t.Fatalf("HarvestReport returned error: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetName(0); got != "Harvest" {
		t.Fatalf("unexpected sheet name: %s", got)
	}

	header, err := f.GetCellValue("Harvest", "A1")
	if err != nil || header != "Crop" {
		t.Fatalf("unexpected header cell: %q %v", header, err)
	}

	first, _ := f.GetCellValue("Harvest", "A2")
	if first != "番茄" {
		t.Fatalf("first data row mismatch: %q", first)
	}
	second, _ := f.GetCellValue("Harvest", "A3")
	if second != "小麦" {
		t.Fatalf("second data row mismatch: %q", second)
	}

	// 合计行：两条记录的预期产量之和
	label, _ := f.GetCellValue("Harvest", "A4")
	if label != "Total" {
		t.Fatalf("expected totals row, got %q", label)
	}
	total, _ := f.GetCellValue("Harvest", "H4")
	if total != "2000" {
		t.Fatalf("expected total yield 2000, got %q", total)
	}
}
