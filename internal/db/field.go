package db

import (
	"time"

	"gorm.io/gorm"
)

// Field 定义了一块地块
// 坐标统一存 lat/lon 两列，入库前已在 service 层归一化顺序
type Field struct {
	gorm.Model
	UserID        uint `gorm:"index"`
	Name          string
	Latitude      float64
	Longitude     float64
	Area          float64
	AreaUnit      string
	SoilType      string
	HealthHistory []FieldHealthRecord `gorm:"constraint:OnDelete:CASCADE"`
}

// FieldHealthRecord 是地块健康巡检历史条目
type FieldHealthRecord struct {
	gorm.Model
	FieldID   uint `gorm:"index"`
	Date      time.Time
	Status    string
	Issues    []string `gorm:"serializer:json"`
	ImageURLs []string `gorm:"serializer:json"`
}
