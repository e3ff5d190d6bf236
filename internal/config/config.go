// 包 config：从环境变量读取叠加编辑服务的配置；.env 由入口通过 godotenv 预先加载
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"roi-overlay/internal/geometry"
	"roi-overlay/internal/logger"
)

// Config：编辑会话所需的全部参数
// 约束：分辨率常量只在 Geometry 中出现一次，映射器与渲染器均从此注入。
type Config struct {
	Geometry geometry.Config

	AreaID     int
	APIBaseURL string // 后端协作方地址，例如 http://127.0.0.1:8000
	StreamURL  string // HLS 播放列表，仅透传给前端

	DetectionInterval time.Duration
	StatsInterval     time.Duration
	RequestTimeout    time.Duration

	LabelFontSize float64
	JPEGQuality   int

	Addr       string
	EditorBase string
	UIDir      string // 为空时使用内置页面
}

// Load：读取环境变量，未设置或非法时回退默认值
func Load() Config {
	c := Config{
		Geometry: geometry.Config{
			Native: geometry.Dims{
				Width:  envFloat("NATIVE_WIDTH", 1920),
				Height: envFloat("NATIVE_HEIGHT", 1080),
			},
			Edit: geometry.Dims{
				Width:  envFloat("EDIT_WIDTH", 960),
				Height: envFloat("EDIT_HEIGHT", 540),
			},
		},
		AreaID:            envInt("AREA_ID", 1),
		APIBaseURL:        strings.TrimRight(envStr("BACKEND_URL", "http://127.0.0.1:8000"), "/"),
		StreamURL:         envStr("STREAM_URL", "https://cctvjss.jogjakota.go.id/malioboro/Malioboro_10_Kepatihan.stream/playlist.m3u8"),
		DetectionInterval: envDuration("DETECTION_INTERVAL", 150*time.Millisecond),
		StatsInterval:     envDuration("STATS_INTERVAL", 3*time.Second),
		RequestTimeout:    envDuration("BACKEND_TIMEOUT", 2*time.Second),
		LabelFontSize:     envFloat("LABEL_FONT_SIZE", 14),
		JPEGQuality:       envInt("MJPEG_QUALITY", 80),
		Addr:              envStr("ADDR", ":8090"),
		EditorBase:        envStr("EDITOR_BASE", "/editor"),
		UIDir:             envStr("UI_DIST", ""),
	}
	if !c.Geometry.Valid() {
		logger.L().Warn("config_dims_invalid", "native", c.Geometry.Native, "edit", c.Geometry.Edit)
		c.Geometry = geometry.DefaultConfig()
	}
	return c
}

// APIConfig：区域与检测服务的参数
type APIConfig struct {
	Addr    string
	APIBase string
	// ProcessAreaID：参与计数的区域；0 表示默认区域
	ProcessAreaID int
	TrackTTL      time.Duration
}

// LoadAPI：读取区域与检测服务的环境变量；API_ADDR 与编辑服务的 ADDR 分开，便于共用一个 .env
func LoadAPI() APIConfig {
	return APIConfig{
		Addr:          envStr("API_ADDR", ":8000"),
		APIBase:       strings.TrimRight(envStr("API_BASE", "/api"), "/"),
		ProcessAreaID: envInt("PROCESS_AREA_ID", 0),
		TrackTTL:      envDuration("TRACK_STATE_TTL", 10*time.Minute),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

// envDuration：支持 "150ms" 形式，也接受纯数字（按毫秒）
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return def
}
