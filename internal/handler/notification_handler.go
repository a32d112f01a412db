package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CropNotifications 同步推导当前农户的通知列表。
// 走纯预览路径：不翻转提醒标志，不影响定时摘要。
func (a *API) CropNotifications(c *gin.Context) {
	notifications, err := a.notifications.Preview(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取通知失败")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}
