package weather

import (
	"testing"
	"time"

	"github.com/agrimaster/internal/db"
)

func TestEvaluateAlertsHeatThresholdIsStrict(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	// 恰好 35.0 不触发，35.1 触发
	if alerts := EvaluateAlerts(Observation{Temp: 35.0}, 1, now); len(alerts) != 0 {
		t.Fatalf("temp 35.0 must not trigger HEAT, got %d alerts", len(alerts))
	}

	alerts := EvaluateAlerts(Observation{Temp: 35.1}, 1, now)
	if len(alerts) != 1 || alerts[0].Type != db.AlertHeat {
		t.Fatalf("temp 35.1 should trigger exactly one HEAT alert, got %+v", alerts)
	}
	if alerts[0].Severity != db.SeverityHigh {
		t.Fatalf("HEAT severity should be HIGH, got %s", alerts[0].Severity)
	}
	if want := now.Add(24 * time.Hour); !alerts[0].EndsAt.Equal(want) {
		t.Fatalf("HEAT window should end at +24h, got %s", alerts[0].EndsAt)
	}
}

func TestEvaluateAlertsRainWindow(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	alerts := EvaluateAlerts(Observation{Temp: 20, Rainfall1h: 12}, 3, now)
	if len(alerts) != 1 || alerts[0].Type != db.AlertRain {
		t.Fatalf("expected single RAIN alert, got %+v", alerts)
	}
	if alerts[0].Severity != db.SeverityModerate {
		t.Fatalf("RAIN severity should be MODERATE, got %s", alerts[0].Severity)
	}
	if want := now.Add(3 * time.Hour); !alerts[0].EndsAt.Equal(want) {
		t.Fatalf("RAIN window should end at +3h, got %s", alerts[0].EndsAt)
	}
	if alerts[0].FieldID != 3 {
		t.Fatalf("alert should carry the field id, got %d", alerts[0].FieldID)
	}
}

func TestEvaluateAlertsCombinedConditions(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	// 高温 + 高湿：HEAT 与 PEST_RISK 同时触发，无降雨则无 RAIN
	alerts := EvaluateAlerts(Observation{Temp: 36, Humidity: 85, Rainfall1h: 0, WindSpeed: 5}, 7, now)
	if len(alerts) != 2 {
		t.Fatalf("expected exactly 2 alerts, got %d", len(alerts))
	}

	types := map[string]bool{}
	for _, a := range alerts {
		types[a.Type] = true
	}
	if !types[db.AlertHeat] || !types[db.AlertPestRisk] {
		t.Fatalf("expected HEAT and PEST_RISK, got %v", types)
	}
	if types[db.AlertRain] {
		t.Fatal("RAIN must not trigger without rainfall")
	}
}

func TestEvaluateRecommendations(t *testing.T) {
	// 高温低湿 → 灌溉建议
	recs := EvaluateRecommendations(Observation{Temp: 32, Humidity: 40})
	if len(recs) != 1 || recs[0].Type != RecommendIrrigation {
		t.Fatalf("expected irrigation recommendation, got %+v", recs)
	}

	// 高湿温和 → 病虫害防治建议
	recs = EvaluateRecommendations(Observation{Temp: 23, Humidity: 80})
	if len(recs) != 1 || recs[0].Type != RecommendPestControl {
		t.Fatalf("expected pest control recommendation, got %+v", recs)
	}

	// 大风独立触发防护建议
	recs = EvaluateRecommendations(Observation{Temp: 18, Humidity: 60, WindSpeed: 25})
	if len(recs) != 1 || recs[0].Type != RecommendCropProtection {
		t.Fatalf("expected crop protection recommendation, got %+v", recs)
	}

	// 平静条件下没有任何建议
	if recs = EvaluateRecommendations(Observation{Temp: 20, Humidity: 60, WindSpeed: 5}); len(recs) != 0 {
		t.Fatalf("expected no recommendations, got %+v", recs)
	}
}

func TestBuildSnapshot(t *testing.T) {
	now := time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC)
	obs := Observation{Temp: 36, TempMin: 28, TempMax: 38, FeelsLike: 39, Humidity: 85, WindSpeed: 4, Condition: "Clear"}

	snap := BuildSnapshot(9, obs, now)
	if snap.FieldID != 9 || !snap.RecordedAt.Equal(now) {
		t.Fatalf("snapshot header mismatch: %+v", snap)
	}
	if snap.TempCurrent != 36 || snap.Humidity != 85 || snap.Condition != "Clear" {
		t.Fatalf("snapshot readings mismatch: %+v", snap)
	}
	// 风速按 m/s 原样落库，不做单位换算
	if snap.WindSpeedMS != 4 {
		t.Fatalf("wind speed should carry the raw m/s reading, got %f", snap.WindSpeedMS)
	}
	if len(snap.Alerts) != 2 {
		t.Fatalf("expected snapshot to embed 2 alerts, got %d", len(snap.Alerts))
	}
}
