package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agrimaster/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrFieldNotFound 在地块不存在或不属于该用户时返回
	ErrFieldNotFound = errors.New("field not found")
	// ErrInvalidCoordinate 在坐标数值超出经纬度合法范围时返回
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// FieldService 负责地块的增删改查与健康巡检历史
type FieldService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewFieldService 构造 FieldService
func NewFieldService(gdb *gorm.DB) *FieldService {
	return &FieldService{db: gdb, now: time.Now}
}

// SetNowFunc 注入时间源，测试用
func (s *FieldService) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// FieldInput 定义地块可配置字段。坐标按 (lat, lon) 传入。
type FieldInput struct {
	Name      string
	Latitude  float64
	Longitude float64
	Area      float64
	AreaUnit  string
	SoilType  string
}

// HealthRecordInput 定义健康巡检条目
type HealthRecordInput struct {
	Status    string
	Issues    []string
	ImageURLs []string
}

// NormalizeLatLon 统一坐标顺序。对外天气接口和部分前端用 GeoJSON 的
// [lon, lat] 顺序，这里在入库边界做一次归一化：当第一个值超出纬度
// 范围而交换后两者都合法时视为被调换。两个值都无法构成合法坐标时报错。
func NormalizeLatLon(a, b float64) (lat, lon float64, err error) {
	valid := func(lat, lon float64) bool {
		return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
	}
	if valid(a, b) {
		return a, b, nil
	}
	if valid(b, a) {
		return b, a, nil
	}
	return 0, 0, ErrInvalidCoordinate
}

// Create 新建地块，坐标在这里完成顺序归一化
func (s *FieldService) Create(userID uint, input FieldInput) (*db.Field, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("field name is required")
	}

	lat, lon, err := NormalizeLatLon(input.Latitude, input.Longitude)
	if err != nil {
		return nil, err
	}

	field := db.Field{
		UserID:    userID,
		Name:      name,
		Latitude:  lat,
		Longitude: lon,
		Area:      input.Area,
		AreaUnit:  input.AreaUnit,
		SoilType:  strings.TrimSpace(input.SoilType),
	}
	if err := s.db.Create(&field).Error; err != nil {
		return nil, fmt.Errorf("create field: %w", err)
	}
	return &field, nil
}

// GetOwned 按归属取单个地块，带健康历史
func (s *FieldService) GetOwned(userID, id uint) (*db.Field, error) {
	var field db.Field
	err := s.db.
		Preload("HealthHistory", func(tx *gorm.DB) *gorm.DB { return tx.Order("date DESC") }).
		Where("user_id = ?", userID).
		First(&field, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFieldNotFound
		}
		return nil, fmt.Errorf("get field: %w", err)
	}
	return &field, nil
}

// List 返回某用户的地块集合
func (s *FieldService) List(userID uint) ([]db.Field, error) {
	var fields []db.Field
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return fields, nil
}

// ListFields 返回全部地块，天气刷新任务用
func (s *FieldService) ListFields() ([]db.Field, error) {
	var fields []db.Field
	if err := s.db.Order("id").Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("list all fields: %w", err)
	}
	return fields, nil
}

// FieldUpdateInput 定义地块允许修改的字段，nil 表示不修改
type FieldUpdateInput struct {
	Name     *string
	Area     *float64
	AreaUnit *string
	SoilType *string
}

// Update 修改地块基础信息。坐标建档后不再变更，搬地块等于建新地块。
func (s *FieldService) Update(userID, id uint, input FieldUpdateInput) (*db.Field, error) {
	field, err := s.GetOwned(userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("field name is required")
		}
		updates["name"] = name
	}
	if input.Area != nil {
		updates["area"] = *input.Area
	}
	if input.AreaUnit != nil {
		updates["area_unit"] = *input.AreaUnit
	}
	if input.SoilType != nil {
		updates["soil_type"] = strings.TrimSpace(*input.SoilType)
	}
	if len(updates) == 0 {
		return field, nil
	}

	if err := s.db.Model(field).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update field: %w", err)
	}
	return s.GetOwned(userID, id)
}

// Delete 删除地块，健康历史级联清除
func (s *FieldService) Delete(userID, id uint) error {
	field, err := s.GetOwned(userID, id)
	if err != nil {
		return err
	}
	if err := s.db.Select("HealthHistory").Delete(field).Error; err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	return nil
}

// AddHealthRecord 追加一条健康巡检记录
func (s *FieldService) AddHealthRecord(userID, fieldID uint, input HealthRecordInput) (*db.FieldHealthRecord, error) {
	field, err := s.GetOwned(userID, fieldID)
	if err != nil {
		return nil, err
	}

	entry := db.FieldHealthRecord{
		FieldID:   field.ID,
		Date:      s.now(),
		Status:    input.Status,
		Issues:    input.Issues,
		ImageURLs: input.ImageURLs,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("add health record: %w", err)
	}
	return &entry, nil
}
