package service

import (
	"fmt"
	"time"

	"github.com/agrimaster/internal/db"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportService 把农户的收成数据导出为 xlsx 报表
type ReportService struct {
	db *gorm.DB
}

// NewReportService 构造 ReportService
func NewReportService(gdb *gorm.DB) *ReportService {
	return &ReportService{db: gdb}
}

const harvestSheet = "Harvest"

var harvestHeaders = []string{
	"Crop", "Variety", "Status", "Sowing Date", "Expected Harvest",
	"Actual Harvest", "Area", "Expected Yield", "Actual Yield", "Yield Unit",
}

// HarvestReport 生成农户的收成报表。
// 每条作物记录一行，末尾追加预期/实际产量的合计行。
func (s *ReportService) HarvestReport(farmerID uint) (*excelize.File, error) {
	var records []db.CropRecord
	err := s.db.Where("farmer_id = ?", farmerID).Order("sowing_date").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list crops for report: %w", err)
	}

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), harvestSheet)

	for col, h := range harvestHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(harvestSheet, cell, h)
	}

	fmtDate := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	fmtYield := func(v *float64) interface{} {
		if v == nil {
			return ""
		}
		return *v
	}

	var expectedTotal, actualTotal float64
	for i, rec := range records {
		row := i + 2
		values := []interface{}{
			rec.CropName,
			rec.Variety,
			rec.Status,
			rec.SowingDate.Format("2006-01-02"),
			fmtDate(rec.ExpectedHarvestDate),
			fmtDate(rec.ActualHarvestDate),
			fmt.Sprintf("%.2f %s", rec.Area, rec.AreaUnit),
			fmtYield(rec.ExpectedYield),
			fmtYield(rec.ActualYield),
			rec.YieldUnit,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(harvestSheet, cell, v)
		}
		if rec.ExpectedYield != nil {
			expectedTotal += *rec.ExpectedYield
		}
		if rec.ActualYield != nil {
			actualTotal += *rec.ActualYield
		}
	}

	totalRow := len(records) + 2
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	f.SetCellValue(harvestSheet, cell, "Total")
	cell, _ = excelize.CoordinatesToCellName(8, totalRow)
	f.SetCellValue(harvestSheet, cell, expectedTotal)
	cell, _ = excelize.CoordinatesToCellName(9, totalRow)
	f.SetCellValue(harvestSheet, cell, actualTotal)

	return f, nil
}
