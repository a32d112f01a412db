package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/service"
	"github.com/gin-gonic/gin"
)

func snapshotToPayload(snap *db.WeatherSnapshot) gin.H {
	alerts := make([]gin.H, 0, len(snap.Alerts))
	for i := range snap.Alerts {
		alerts = append(alerts, alertToPayload(&snap.Alerts[i]))
	}
	return gin.H{
		"id":             snap.ID,
		"field_id":       snap.FieldID,
		"recorded_at":    snap.RecordedAt.Format(time.RFC3339),
		"temp_current":   snap.TempCurrent,
		"temp_min":       snap.TempMin,
		"temp_max":       snap.TempMax,
		"feels_like":     snap.FeelsLike,
		"humidity":       snap.Humidity,
		"rainfall_mm":    snap.RainfallMM,
		"wind_speed_ms": snap.WindSpeedMS,
		"condition":      snap.Condition,
		"alerts":         alerts,
	}
}

func alertToPayload(alert *db.WeatherAlert) gin.H {
	return gin.H{
		"type":      alert.Type,
		"severity":  alert.Severity,
		"message":   alert.Message,
		"starts_at": alert.StartsAt.Format(time.RFC3339),
		"ends_at":   alert.EndsAt.Format(time.RFC3339),
	}
}

// FieldWeather 返回地块最近一次天气快照、告警与操作建议
func (a *API) FieldWeather(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	// 天气是地块的属性，先确认归属
	if _, err := a.fields.GetOwned(currentUserID(c), id); err != nil {
		if errors.Is(err, service.ErrFieldNotFound) {
			respondError(c, http.StatusNotFound, "地块不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取地块失败")
		return
	}

	view, err := a.weather.FieldWeather(id)
	if err != nil {
		if errors.Is(err, service.ErrNoWeatherData) {
			respondError(c, http.StatusNotFound, "暂无天气数据，等待下一次刷新")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取天气失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"snapshot":        snapshotToPayload(&view.Snapshot),
		"recommendations": view.Recommendations,
	})
}

// FieldWeatherHistory 返回地块最近的天气快照序列
func (a *API) FieldWeatherHistory(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := a.fields.GetOwned(currentUserID(c), id); err != nil {
		if errors.Is(err, service.ErrFieldNotFound) {
			respondError(c, http.StatusNotFound, "地块不存在")
			return
		}
		respondError(c, http.StatusInternalServerError, "获取地块失败")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "24"))
	history, err := a.weather.History(id, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取天气历史失败")
		return
	}

	items := make([]gin.H, 0, len(history))
	for i := range history {
		items = append(items, snapshotToPayload(&history[i]))
	}
	respondSuccess(c, http.StatusOK, gin.H{"history": items})
}
