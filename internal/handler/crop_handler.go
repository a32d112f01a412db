package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/service"
	"github.com/gin-gonic/gin"
)

const dateFormat = "2006-01-02"

type cropPayload struct {
	FieldID             *uint    `json:"field_id"`
	CropName            string   `json:"crop_name"`
	Variety             string   `json:"variety"`
	SowingDate          string   `json:"sowing_date"`
	ExpectedHarvestDate string   `json:"expected_harvest_date"`
	Area                float64  `json:"area"`
	AreaUnit            string   `json:"area_unit"`
	ExpectedYield       *float64 `json:"expected_yield"`
	YieldUnit           string   `json:"yield_unit"`
	Notes               string   `json:"notes"`
}

type cropUpdatePayload struct {
	Status            string   `json:"status"`
	ActualHarvestDate string   `json:"actual_harvest_date"`
	ActualYield       *float64 `json:"actual_yield"`
	Notes             *string  `json:"notes"`
}

type taskPayload struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PlannedDate string `json:"planned_date"`
	Priority    string `json:"priority"`
}

type growthLogPayload struct {
	Note         string `json:"note"`
	ImageURL     string `json:"image_url"`
	HealthStatus string `json:"health_status"`
}

type stageUpdatePayload struct {
	Name         string `json:"name"`
	HealthStatus string `json:"health_status"`
	Notes        string `json:"notes"`
	Completed    bool   `json:"completed"`
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateFormat, raw)
}

func formatDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateFormat)
}

func cropToPayload(record *db.CropRecord) gin.H {
	stages := make([]gin.H, 0, len(record.GrowthStages))
	for i := range record.GrowthStages {
		stages = append(stages, stageToPayload(&record.GrowthStages[i]))
	}
	tasks := make([]gin.H, 0, len(record.Tasks))
	for i := range record.Tasks {
		tasks = append(tasks, taskToPayload(&record.Tasks[i]))
	}
	logs := make([]gin.H, 0, len(record.GrowthLogs))
	for i := range record.GrowthLogs {
		entry := &record.GrowthLogs[i]
		logs = append(logs, gin.H{
			"id":            entry.ID,
			"date":          entry.Date.Format(dateFormat),
			"note":          entry.Note,
			"image_url":     entry.ImageURL,
			"health_status": entry.HealthStatus,
		})
	}

	return gin.H{
		"id":                    record.ID,
		"field_id":              record.FieldID,
		"crop_name":             record.CropName,
		"variety":               record.Variety,
		"sowing_date":           record.SowingDate.Format(dateFormat),
		"expected_harvest_date": formatDate(record.ExpectedHarvestDate),
		"actual_harvest_date":   formatDate(record.ActualHarvestDate),
		"area":                  record.Area,
		"area_unit":             record.AreaUnit,
		"status":                record.Status,
		"current_stage":         record.CurrentStage,
		"expected_yield":        record.ExpectedYield,
		"actual_yield":          record.ActualYield,
		"yield_unit":            record.YieldUnit,
		"notes":                 record.Notes,
		"growth_stages":         stages,
		"tasks":                 tasks,
		"growth_logs":           logs,
	}
}

func stageToPayload(stage *db.GrowthStage) gin.H {
	return gin.H{
		"id":                stage.ID,
		"name":              stage.Name,
		"start_date":        stage.StartDate.Format(dateFormat),
		"expected_duration": stage.ExpectedDuration,
		"completed":         stage.Completed,
		"completed_at":      formatDate(stage.CompletedAt),
		"health_status":     stage.HealthStatus,
		"notes":             stage.Notes,
	}
}

func taskToPayload(task *db.Task) gin.H {
	return gin.H{
		"id":                task.ID,
		"type":              task.Type,
		"title":             task.Title,
		"description":       task.Description,
		"planned_date":      task.PlannedDate.Format(dateFormat),
		"status":            task.Status,
		"priority":          task.Priority,
		"notification_sent": task.NotificationSent,
		"completed_at":      formatDate(task.CompletedAt),
	}
}

// ListCrops 返回当前农户的作物记录，支持按状态过滤
func (a *API) ListCrops(c *gin.Context) {
	records, err := a.crops.List(currentUserID(c), c.Query("status"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCropStatus) {
			respondError(c, http.StatusBadRequest, "无效的作物状态")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取作物记录失败")
		return
	}

	items := make([]gin.H, 0, len(records))
	for i := range records {
		items = append(items, cropToPayload(&records[i]))
	}
	respondSuccess(c, http.StatusOK, gin.H{"crops": items})
}

// GetCrop 返回单条作物记录及其阶段、任务与日志
func (a *API) GetCrop(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	record, err := a.crops.GetOwned(currentUserID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrCropNotFound) {
			respondError(c, http.StatusNotFound, "作物记录不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取作物记录失败")
		return
	}
	respondSuccess(c, http.StatusOK, cropToPayload(record))
}

// CreateCrop 建立作物记录并生成生长阶段
func (a *API) CreateCrop(c *gin.Context) {
	var payload cropPayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	sowing, err := parseDate(payload.SowingDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "播种日期格式应为 YYYY-MM-DD")
		return
	}
	harvest, err := parseDate(payload.ExpectedHarvestDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "预期收获日期格式应为 YYYY-MM-DD")
		return
	}

	record, err := a.crops.Create(currentUserID(c), service.CropInput{
		FieldID:             payload.FieldID,
		CropName:            payload.CropName,
		Variety:             payload.Variety,
		SowingDate:          sowing,
		ExpectedHarvestDate: harvest,
		Area:                payload.Area,
		AreaUnit:            payload.AreaUnit,
		ExpectedYield:       payload.ExpectedYield,
		YieldUnit:           payload.YieldUnit,
		Notes:               payload.Notes,
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, cropToPayload(record))
}

// UpdateCrop 修改作物状态与收获信息
func (a *API) UpdateCrop(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload cropUpdatePayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	input := service.CropUpdateInput{
		Status:      payload.Status,
		ActualYield: payload.ActualYield,
		Notes:       payload.Notes,
	}
	if payload.ActualHarvestDate != "" {
		harvested, err := parseDate(payload.ActualHarvestDate)
		if err != nil {
			respondError(c, http.StatusBadRequest, "实际收获日期格式应为 YYYY-MM-DD")
			return
		}
		input.ActualHarvestDate = &harvested
	}

	record, err := a.crops.Update(currentUserID(c), id, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCropNotFound):
			respondError(c, http.StatusNotFound, "作物记录不存在")
		case errors.Is(err, service.ErrInvalidCropStatus):
			respondError(c, http.StatusBadRequest, "无效的作物状态")
		default:
			respondError(c, http.StatusInternalServerError, "更新作物记录失败")
		}
		return
	}
	respondSuccess(c, http.StatusOK, cropToPayload(record))
}

// DeleteCrop 删除作物记录
func (a *API) DeleteCrop(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.crops.Delete(currentUserID(c), id); err != nil {
		if errors.Is(err, service.ErrCropNotFound) {
			respondError(c, http.StatusNotFound, "作物记录不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "删除作物记录失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"message": "已删除"})
}

// AddTask 给作物记录新增农事任务
func (a *API) AddTask(c *gin.Context) {
	cropID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload taskPayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}
	planned, err := parseDate(payload.PlannedDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "计划日期格式应为 YYYY-MM-DD")
		return
	}

	task, err := a.crops.AddTask(currentUserID(c), cropID, service.TaskInput{
		Type:        payload.Type,
		Title:       payload.Title,
		Description: payload.Description,
		PlannedDate: planned,
		Priority:    payload.Priority,
	})
	if err != nil {
		if errors.Is(err, service.ErrCropNotFound) {
			respondError(c, http.StatusNotFound, "作物记录不存在")
			return
		}
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, taskToPayload(task))
}

// UpdateTaskStatus 完成或跳过一条任务
func (a *API) UpdateTaskStatus(c *gin.Context) {
	cropID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	task, err := a.crops.UpdateTaskStatus(currentUserID(c), cropID, taskID, payload.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCropNotFound):
			respondError(c, http.StatusNotFound, "作物记录不存在")
		case errors.Is(err, service.ErrTaskNotFound):
			respondError(c, http.StatusNotFound, "任务不存在")
		case errors.Is(err, service.ErrInvalidTaskStatus):
			respondError(c, http.StatusBadRequest, "不允许的任务状态转换")
		default:
			respondError(c, http.StatusInternalServerError, "更新任务失败")
		}
		return
	}
	respondSuccess(c, http.StatusOK, taskToPayload(task))
}

// AddGrowthLog 追加生长日志
func (a *API) AddGrowthLog(c *gin.Context) {
	cropID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload growthLogPayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	entry, err := a.crops.AddGrowthLog(currentUserID(c), cropID, service.GrowthLogInput{
		Note:         payload.Note,
		ImageURL:     payload.ImageURL,
		HealthStatus: payload.HealthStatus,
	})
	if err != nil {
		if errors.Is(err, service.ErrCropNotFound) {
			respondError(c, http.StatusNotFound, "作物记录不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "添加生长日志失败")
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{
		"id":            entry.ID,
		"date":          entry.Date.Format(dateFormat),
		"note":          entry.Note,
		"image_url":     entry.ImageURL,
		"health_status": entry.HealthStatus,
	})
}

// UpdateGrowthStage 更新生长阶段的健康状况或标记完成
func (a *API) UpdateGrowthStage(c *gin.Context) {
	cropID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var payload stageUpdatePayload
	if !bindJSON(c, &payload, "请求体格式错误") {
		return
	}

	record, err := a.crops.UpdateGrowthStage(currentUserID(c), cropID, service.StageUpdateInput{
		Name:         payload.Name,
		HealthStatus: payload.HealthStatus,
		Notes:        payload.Notes,
		Completed:    payload.Completed,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCropNotFound):
			respondError(c, http.StatusNotFound, "作物记录不存在")
		case errors.Is(err, service.ErrStageNotFound):
			respondError(c, http.StatusNotFound, "阶段不存在")
		default:
			respondError(c, http.StatusInternalServerError, "更新生长阶段失败")
		}
		return
	}
	respondSuccess(c, http.StatusOK, cropToPayload(record))
}

// CropCalendar 返回时间范围内的播种/收获/阶段/任务事件
func (a *API) CropCalendar(c *gin.Context) {
	start, err := parseDate(c.DefaultQuery("start", time.Now().Format(dateFormat)))
	if err != nil {
		respondError(c, http.StatusBadRequest, "起始日期格式应为 YYYY-MM-DD")
		return
	}
	end := start.AddDate(0, 1, 0)
	if raw := c.Query("end"); raw != "" {
		end, err = parseDate(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "结束日期格式应为 YYYY-MM-DD")
			return
		}
	}

	events, err := a.crops.CalendarEvents(currentUserID(c), start, end)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取日历失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"events": events})
}
