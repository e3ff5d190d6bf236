// 包 backend：区域配置、实时检测与统计接口的 HTTP 客户端
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"roi-overlay/internal/detection"
	"roi-overlay/internal/logger"
	"roi-overlay/internal/metrics"
	"roi-overlay/internal/polygon"
)

// Area：GET /api/config/area/{id} 的响应，坐标为原生分辨率整数
type Area struct {
	ID          int      `json:"id,omitempty"`
	Name        string   `json:"name"`
	Coordinates [][2]int `json:"coordinates"`
}

// Stats：GET /api/stats/live 的计数快照
type Stats struct {
	TotalIn       int `json:"total_in"`
	TotalOut      int `json:"total_out"`
	CurrentInside int `json:"current_inside"`
}

// StatusError：对端返回非 2xx
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Code)
}

// Client：后端协作方客户端
// 约束：超时由 http.Client 与调用方 ctx 共同控制；不做重试，降级策略由会话层决定。
type Client struct {
	base string
	hc   *http.Client
}

// New：base 形如 http://127.0.0.1:8000；hc 为空时使用 5s 超时的默认客户端
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{base: base, hc: hc}
}

func (c *Client) FetchArea(ctx context.Context, areaID int) (Area, error) {
	var a Area
	err := c.do(ctx, "area_get", http.MethodGet, "/api/config/area/"+strconv.Itoa(areaID), nil, &a)
	return a, err
}

// SaveArea：PUT 新的多边形；仅以 HTTP 状态判断成败，不解析响应体
func (c *Client) SaveArea(ctx context.Context, areaID int, p polygon.Payload) error {
	return c.do(ctx, "area_put", http.MethodPut, "/api/config/area/"+strconv.Itoa(areaID), p, nil)
}

func (c *Client) FetchDetections(ctx context.Context, areaID int) ([]detection.Detection, error) {
	var dets []detection.Detection
	q := url.Values{}
	q.Set("area_id", strconv.Itoa(areaID))
	err := c.do(ctx, "detections_live", http.MethodGet, "/api/detections/live?"+q.Encode(), nil, &dets)
	return dets, err
}

func (c *Client) FetchStats(ctx context.Context, areaID int) (Stats, error) {
	var s Stats
	q := url.Values{}
	q.Set("area_id", strconv.Itoa(areaID))
	err := c.do(ctx, "stats_live", http.MethodGet, "/api/stats/live?"+q.Encode(), nil, &s)
	return s, err
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	t0 := time.Now()
	resp, err := c.hc.Do(req)
	metrics.BackendDurationMs.WithLabelValues(endpoint).Observe(metrics.SinceMs(t0))
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.BackendRequestsTotal.WithLabelValues(endpoint, "status").Inc()
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			metrics.BackendRequestsTotal.WithLabelValues(endpoint, "decode").Inc()
			logger.L().Debug("backend_decode_error", "endpoint", endpoint, "err", err)
			return fmt.Errorf("%s: decode: %w", endpoint, err)
		}
	}
	metrics.BackendRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return nil
}
