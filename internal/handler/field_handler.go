package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/service"
	"github.com/gin-gonic/gin"
)

type fieldPayload struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Area      float64 `json:"area"`
	AreaUnit  string  `json:"area_unit"`
	SoilType  string  `json:"soil_type"`
}

type healthRecordPayload struct {
	Status    string   `json:"status"`
	Issues    []string `json:"issues"`
	ImageURLs []string `json:"image_urls"`
}

func fieldToPayload(field *db.Field) gin.H {
	history := make([]gin.H, 0, len(field.HealthHistory))
	for i := range field.HealthHistory {
		history = append(history, healthToPayload(&field.HealthHistory[i]))
	}
	return gin.H{
		"id":             field.ID,
		"name":           field.Name,
		"latitude":       field.Latitude,
		"longitude":      field.Longitude,
		"area":           field.Area,
		"area_unit":      field.AreaUnit,
		"soil_type":      field.SoilType,
		"health_history": history,
	}
}

func healthToPayload(entry *db.FieldHealthRecord) gin.H {
	return gin.H{
		"id":         entry.ID,
		"date":       entry.Date.Format(time.RFC3339),
		"status":     entry.Status,
		"issues":     entry.Issues,
		"image_urls": entry.ImageURLs,
	}
}

// ListFields 返回当前用户的地块
func (a *API) ListFields(c *gin.Context) {
	fields, err := a.fields.List(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取地块失败")
		return
	}

	items := make([]gin.H, 0, len(fields))
	for i := range fields {
		items = append(items, fieldToPayload(&fields[i]))
	}
	respondSuccess(c, http.StatusOK, gin.H{"fields": items})
}

// GetField 返回单个地块及其健康历史
func (a *API) GetField(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	field, err := a.fields.GetOwned(currentUserID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrFieldNotFound) {
			respondError(c, http.StatusNotFound, "地块不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取地块失败")
		return
	}
	respondSuccess(c, http.StatusOK, fieldToPayload(field))
}

// CreateField 新建地块，坐标顺序在服务层归一化
func (a *API) CreateField(c *gin.Context) {
	var payload fieldPayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	field, err := a.fields.Create(currentUserID(c), service.FieldInput{
		Name:      payload.Name,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Area:      payload.Area,
		AreaUnit:  payload.AreaUnit,
		SoilType:  payload.SoilType,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCoordinate) {
			respondError(c, http.StatusBadRequest, "坐标超出合法范围")
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, fieldToPayload(field))
}

// UpdateField 修改地块基础信息
func (a *API) UpdateField(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Name     *string  `json:"name"`
		Area     *float64 `json:"area"`
		AreaUnit *string  `json:"area_unit"`
		SoilType *string  `json:"soil_type"`
	}
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	field, err := a.fields.Update(currentUserID(c), id, service.FieldUpdateInput{
		Name:     payload.Name,
		Area:     payload.Area,
		AreaUnit: payload.AreaUnit,
		SoilType: payload.SoilType,
	})
	if err != nil {
		if errors.Is(err, service.ErrFieldNotFound) {
			respondError(c, http.StatusNotFound, "地块不存在")
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, fieldToPayload(field))
}

// DeleteField 删除地块
func (a *API) DeleteField(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.fields.Delete(currentUserID(c), id); err != nil {
		if errors.Is(err, service.ErrFieldNotFound) {
			respondError(c, http.StatusNotFound, "地块不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "删除地块失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "已删除"})
}

// AddFieldHealthRecord 追加地块健康巡检记录
func (a *API) AddFieldHealthRecord(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload healthRecordPayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	entry, err := a.fields.AddHealthRecord(currentUserID(c), id, service.HealthRecordInput{
		Status:    payload.Status,
		Issues:    payload.Issues,
		ImageURLs: payload.ImageURLs,
	})
	if err != nil {
		if errors.Is(err, service.ErrFieldNotFound) {
			respondError(c, http.StatusNotFound, "地块不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "添加巡检记录失败")
		return
	}
	respondSuccess(c, http.StatusCreated, healthToPayload(entry))
}
