package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HarvestReport 导出当前农户的收成报表（xlsx 下载）
func (a *API) HarvestReport(c *gin.Context) {
	f, err := a.reports.HarvestReport(currentUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "生成报表失败")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("harvest-report-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.Error(err)
	}
}
