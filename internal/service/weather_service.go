package service

import (
	"errors"
	"fmt"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/weather"
	"gorm.io/gorm"
)

// ErrNoWeatherData 在地块还没有任何天气快照时返回
var ErrNoWeatherData = errors.New("no weather data for field")

// WeatherService 管理不可变的天气快照日志：只追加、只读取，从不更新
type WeatherService struct {
	db *gorm.DB
}

// NewWeatherService 构造 WeatherService
func NewWeatherService(gdb *gorm.DB) *WeatherService {
	return &WeatherService{db: gdb}
}

// FieldWeather 是对外返回的地块天气视图
type FieldWeather struct {
	Snapshot        db.WeatherSnapshot       `json:"snapshot"`
	Alerts          []db.WeatherAlert        `json:"alerts"`
	Recommendations []weather.Recommendation `json:"recommendations"`
}

// AppendSnapshot 追加一行快照（连同告警）。快照是不可变日志，没有更新路径。
func (s *WeatherService) AppendSnapshot(snap *db.WeatherSnapshot) error {
	if err := s.db.Create(snap).Error; err != nil {
		return fmt.Errorf("append weather snapshot: %w", err)
	}
	return nil
}

// FieldWeather 返回地块最近一次快照、其告警与按读数现算的建议
func (s *WeatherService) FieldWeather(fieldID uint) (*FieldWeather, error) {
	var snap db.WeatherSnapshot
	err := s.db.
		Preload("Alerts").
		Where("field_id = ?", fieldID).
		Order("recorded_at DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoWeatherData
		}
		return nil, fmt.Errorf("get field weather: %w", err)
	}

	obs := weather.Observation{
		Temp:       snap.TempCurrent,
		TempMin:    snap.TempMin,
		TempMax:    snap.TempMax,
		FeelsLike:  snap.FeelsLike,
		Humidity:   snap.Humidity,
		Rainfall1h: snap.RainfallMM,
		WindSpeed:  snap.WindSpeedMS,
		Condition:  snap.Condition,
	}

	return &FieldWeather{
		Snapshot:        snap,
		Alerts:          snap.Alerts,
		Recommendations: weather.EvaluateRecommendations(obs),
	}, nil
}

// History 返回地块最近的若干条快照，新的在前
func (s *WeatherService) History(fieldID uint, limit int) ([]db.WeatherSnapshot, error) {
	if limit <= 0 {
		limit = 24
	}
	var snaps []db.WeatherSnapshot
	err := s.db.
		Preload("Alerts").
		Where("field_id = ?", fieldID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("list weather history: %w", err)
	}
	return snaps, nil
}
