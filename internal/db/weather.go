package db

import (
	"time"

	"gorm.io/gorm"
)

// 天气告警类型
const (
	AlertRain     = "RAIN"
	AlertDrought  = "DROUGHT"
	AlertFrost    = "FROST"
	AlertHeat     = "HEAT"
	AlertStorm    = "STORM"
	AlertPestRisk = "PEST_RISK"
)

// 天气告警级别
const (
	SeverityLow      = "LOW"
	SeverityModerate = "MODERATE"
	SeverityHigh     = "HIGH"
	SeveritySevere   = "SEVERE"
)

// WeatherSnapshot 是一次天气刷新落库的不可变快照
// 每个地块每轮刷新追加一行，创建后不再更新。
// 风速为 m/s，与上游 metric 单位一致。
type WeatherSnapshot struct {
	gorm.Model
	FieldID     uint      `gorm:"index"`
	RecordedAt  time.Time `gorm:"index"`
	TempCurrent float64
	TempMin     float64
	TempMax     float64
	FeelsLike   float64
	Humidity    float64
	RainfallMM  float64
	WindSpeedMS float64
	Condition   string
	Alerts      []WeatherAlert `gorm:"constraint:OnDelete:CASCADE"`
}

// WeatherAlert 是阈值规则触发的告警，随快照一起落库
type WeatherAlert struct {
	gorm.Model
	WeatherSnapshotID uint `gorm:"index"`
	FieldID           uint `gorm:"index"`
	Type              string
	Severity          string
	Message           string
	StartsAt          time.Time
	EndsAt            time.Time
}
