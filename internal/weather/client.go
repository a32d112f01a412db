package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Observation 是一次外部天气读数，已换算为公制单位
type Observation struct {
	Temp       float64
	TempMin    float64
	TempMax    float64
	FeelsLike  float64
	Humidity   float64
	Rainfall1h float64
	WindSpeed  float64
	Condition  string
}

// ForecastEntry 是预报序列中的一个时间点
type ForecastEntry struct {
	At time.Time
	Observation
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client 调用 OpenWeatherMap 风格的天气接口。
// 每次请求带独立超时，失败由调用方按"下个周期再试"处理。
type Client struct {
	http    httpDoer
	baseURL string
	apiKey  string
}

type currentResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Message string `json:"message"`
}

type forecastResponse struct {
	List []struct {
		Dt int64 `json:"dt"`
		currentResponse
	} `json:"list"`
	Message json.RawMessage `json:"message"`
}

// NewClient 构造天气客户端
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.openweathermap.org/data/2.5"
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: base,
		apiKey:  strings.TrimSpace(apiKey),
	}
}

// SetHTTPClient 替换底层 HTTP 客户端，测试用
func (c *Client) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 5 * time.Second}
		return
	}
	c.http = client
}

// FetchCurrent 拉取某坐标的当前天气
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64) (Observation, error) {
	var parsed currentResponse
	if err := c.get(ctx, "/weather", lat, lon, &parsed); err != nil {
		return Observation{}, err
	}
	return parsed.toObservation(), nil
}

// FetchForecast 拉取某坐标的预报序列
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64) ([]ForecastEntry, error) {
	var parsed forecastResponse
	if err := c.get(ctx, "/forecast", lat, lon, &parsed); err != nil {
		return nil, err
	}

	entries := make([]ForecastEntry, 0, len(parsed.List))
	for _, item := range parsed.List {
		entries = append(entries, ForecastEntry{
			At:          time.Unix(item.Dt, 0).UTC(),
			Observation: item.toObservation(),
		})
	}
	return entries, nil
}

func (c *Client) get(ctx context.Context, path string, lat, lon float64, out interface{}) error {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lon", fmt.Sprintf("%.6f", lon))
	q.Set("units", "metric")
	if c.apiKey != "" {
		q.Set("appid", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode weather response: %w", err)
	}
	return nil
}

func (r currentResponse) toObservation() Observation {
	obs := Observation{
		Temp:       r.Main.Temp,
		TempMin:    r.Main.TempMin,
		TempMax:    r.Main.TempMax,
		FeelsLike:  r.Main.FeelsLike,
		Humidity:   r.Main.Humidity,
		Rainfall1h: r.Rain.OneHour,
		WindSpeed:  r.Wind.Speed,
	}
	if len(r.Weather) > 0 {
		obs.Condition = r.Weather[0].Main
	}
	return obs
}
