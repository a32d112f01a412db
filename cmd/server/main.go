package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/agrimaster/internal/config"
	"github.com/agrimaster/internal/db"
	"github.com/agrimaster/internal/handler"
	"github.com/agrimaster/internal/jobs"
	"github.com/agrimaster/internal/notify"
	"github.com/agrimaster/internal/router"
	"github.com/agrimaster/internal/weather"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	api := handler.NewAPI(db.DB)

	// 后台任务：天气刷新、逾期扫描、每日通知摘要
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source := weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, cfg.WeatherTimeout)
	runner := jobs.NewRunner(jobs.RunnerOptions{
		Crops:        api.Crops(),
		Fields:       api.Fields(),
		Source:       source,
		Snapshots:    api.Weather(),
		Aggregator:   api.Notifications(),
		Sink:         notify.NewLogSink(nil),
		Workers:      cfg.JobWorkers,
		FetchTimeout: cfg.WeatherTimeout,
	})

	scheduler := jobs.NewScheduler(nil)
	scheduler.Add("weather_refresh", cfg.WeatherRefreshGap, runner.RefreshWeather)
	scheduler.Add("overdue_sweep", cfg.SweepGap, runner.SweepOverdueTasks)
	scheduler.Add("notification_digest", cfg.DigestGap, runner.RunDigest)
	scheduler.Start(ctx)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
