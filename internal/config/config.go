package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabasePath      string
	SessionSecret     string
	GinMode           string
	WeatherAPIKey     string
	WeatherBaseURL    string
	WeatherTimeout    time.Duration
	WeatherRefreshGap time.Duration
	SweepGap          time.Duration
	DigestGap         time.Duration
	JobWorkers        int
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 存在 .env 文件时优先加载，便于本地开发。
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[cfg] load .env: %v", err)
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "agrimaster.db"
	}

	sessionSecret := strings.TrimSpace(os.Getenv("SESSION_SECRET"))
	if sessionSecret == "" {
		sessionSecret = "agrimaster-dev-secret"
	}

	ginMode := strings.TrimSpace(os.Getenv("GIN_MODE"))
	if ginMode == "" {
		ginMode = "release"
	}

	weatherBaseURL := strings.TrimSpace(os.Getenv("OPENWEATHER_BASE_URL"))
	if weatherBaseURL == "" {
		weatherBaseURL = "https://api.openweathermap.org/data/2.5"
	}

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      databasePath,
		SessionSecret:     sessionSecret,
		GinMode:           ginMode,
		WeatherAPIKey:     strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		WeatherBaseURL:    weatherBaseURL,
		WeatherTimeout:    durationEnv("WEATHER_FETCH_TIMEOUT", 5*time.Second),
		WeatherRefreshGap: durationEnv("WEATHER_REFRESH_INTERVAL", time.Hour),
		SweepGap:          durationEnv("TASK_SWEEP_INTERVAL", time.Hour),
		DigestGap:         durationEnv("NOTIFICATION_DIGEST_INTERVAL", 24*time.Hour),
		JobWorkers:        intEnv("JOB_WORKERS", 4),
	}
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("[cfg] invalid %s=%q, using default %s", key, raw, def)
		return def
	}
	return d
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("[cfg] invalid %s=%q, using default %d", key, raw, def)
		return def
	}
	return n
}
