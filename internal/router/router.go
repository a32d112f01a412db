package router

import (
	"github.com/agrimaster/internal/handler"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("agrimaster_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	v1 := r.Group("/api")
	{
		v1.POST("/auth/register", api.Register)
		v1.POST("/auth/login", api.Login)
		v1.POST("/auth/logout", api.Logout)

		// 需要认证的路由
		auth := v1.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/profile", api.Profile)
			auth.POST("/profile/crops", api.AddCropsInterested)

			auth.GET("/crops", api.ListCrops)
			auth.POST("/crops", api.CreateCrop)
			auth.GET("/crops/calendar", api.CropCalendar)
			auth.GET("/crops/:id", api.GetCrop)
			auth.PUT("/crops/:id", api.UpdateCrop)
			auth.DELETE("/crops/:id", api.DeleteCrop)
			auth.POST("/crops/:id/tasks", api.AddTask)
			auth.PUT("/crops/:id/tasks/:taskId", api.UpdateTaskStatus)
			auth.POST("/crops/:id/growth-logs", api.AddGrowthLog)
			auth.PUT("/crops/:id/growth-stages", api.UpdateGrowthStage)

			auth.GET("/crop-notifications", api.CropNotifications)

			auth.GET("/fields", api.ListFields)
			auth.POST("/fields", api.CreateField)
			auth.GET("/fields/:id", api.GetField)
			auth.PUT("/fields/:id", api.UpdateField)
			auth.DELETE("/fields/:id", api.DeleteField)
			auth.POST("/fields/:id/health", api.AddFieldHealthRecord)
			auth.GET("/fields/:id/weather", api.FieldWeather)
			auth.GET("/fields/:id/weather/history", api.FieldWeatherHistory)

			auth.GET("/posts", api.ListPosts)
			auth.GET("/posts/:id", api.GetPost)
			auth.POST("/posts", api.CreatePost)

			auth.GET("/reports/harvest", api.HarvestReport)
		}
	}

	return r
}
