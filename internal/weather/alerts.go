package weather

import (
	"time"

	"github.com/agrimaster/internal/db"
)

// 阈值常量。所有比较都用严格大于：35.0°C 不触发高温告警，35.1°C 触发。
const (
	heatTempThreshold     = 35.0
	heavyRainThreshold    = 10.0
	pestHumidityThreshold = 80.0
	pestTempThreshold     = 25.0

	irrigationTempThreshold     = 30.0
	irrigationHumidityThreshold = 50.0
	pestCtrlHumidityThreshold   = 75.0
	pestCtrlTempThreshold       = 22.0
	windProtectionThreshold     = 20.0 // m/s
)

// 建议类型
const (
	RecommendIrrigation     = "IRRIGATION"
	RecommendPestControl    = "PEST_CONTROL"
	RecommendCropProtection = "CROP_PROTECTION"
)

// Recommendation 是一条农事建议，与告警独立生成
type Recommendation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EvaluateAlerts 按阈值规则从一次读数生成告警。
// 各规则彼此独立，一次读数可以同时触发多条。
func EvaluateAlerts(obs Observation, fieldID uint, now time.Time) []db.WeatherAlert {
	var alerts []db.WeatherAlert

	if obs.Temp > heatTempThreshold {
		alerts = append(alerts, db.WeatherAlert{
			FieldID:  fieldID,
			Type:     db.AlertHeat,
			Severity: db.SeverityHigh,
			Message:  "High temperature alert. Consider additional irrigation.",
			StartsAt: now,
			EndsAt:   now.Add(24 * time.Hour),
		})
	}

	if obs.Rainfall1h > heavyRainThreshold {
		alerts = append(alerts, db.WeatherAlert{
			FieldID:  fieldID,
			Type:     db.AlertRain,
			Severity: db.SeverityModerate,
			Message:  "Heavy rainfall expected. Check field drainage.",
			StartsAt: now,
			EndsAt:   now.Add(3 * time.Hour),
		})
	}

	if obs.Humidity > pestHumidityThreshold && obs.Temp > pestTempThreshold {
		alerts = append(alerts, db.WeatherAlert{
			FieldID:  fieldID,
			Type:     db.AlertPestRisk,
			Severity: db.SeverityHigh,
			Message:  "High pest risk conditions. Monitor crops closely.",
			StartsAt: now,
			EndsAt:   now.Add(24 * time.Hour),
		})
	}

	return alerts
}

// EvaluateRecommendations 按读数生成农事建议，与告警规则互不影响
func EvaluateRecommendations(obs Observation) []Recommendation {
	var recs []Recommendation

	if obs.Temp > irrigationTempThreshold && obs.Humidity < irrigationHumidityThreshold {
		recs = append(recs, Recommendation{
			Type:    RecommendIrrigation,
			Message: "Increase irrigation frequency due to high temperature and low humidity.",
		})
	}

	if obs.Humidity > pestCtrlHumidityThreshold && obs.Temp > pestCtrlTempThreshold {
		recs = append(recs, Recommendation{
			Type:    RecommendPestControl,
			Message: "Conditions favorable for pest growth. Consider preventive measures.",
		})
	}

	if obs.WindSpeed > windProtectionThreshold {
		recs = append(recs, Recommendation{
			Type:    RecommendCropProtection,
			Message: "Strong winds expected. Consider wind protection measures.",
		})
	}

	return recs
}

// BuildSnapshot 把一次读数打包成待追加的不可变快照，告警一并挂上
func BuildSnapshot(fieldID uint, obs Observation, now time.Time) db.WeatherSnapshot {
	return db.WeatherSnapshot{
		FieldID:     fieldID,
		RecordedAt:  now,
		TempCurrent: obs.Temp,
		TempMin:     obs.TempMin,
		TempMax:     obs.TempMax,
		FeelsLike:   obs.FeelsLike,
		Humidity:    obs.Humidity,
		RainfallMM:  obs.Rainfall1h,
		WindSpeedMS: obs.WindSpeed,
		Condition:   obs.Condition,
		Alerts:      EvaluateAlerts(obs, fieldID, now),
	}
}
