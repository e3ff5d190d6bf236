package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BackendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roi_backend_requests_total",
		Help: "Requests sent to the area/detection API by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	BackendDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roi_backend_duration_ms",
		Help:    "Area/detection API call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	}, []string{"endpoint"})
	DetectionTicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roi_detection_ticks_total",
		Help: "Detection poll ticks by result (applied, failed, stale, discarded)",
	}, []string{"result"})
	RendersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roi_overlay_renders_total",
		Help: "Total overlay composites",
	})
	RenderDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roi_overlay_render_duration_ms",
		Help:    "Overlay composite and encode duration in milliseconds",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})
	PolygonVertices = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roi_polygon_vertices",
		Help: "Vertices in the polygon being edited",
	})
	DetectionsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roi_detections_live",
		Help: "Detections in the current snapshot",
	})
	SavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roi_polygon_saves_total",
		Help: "Polygon save attempts by outcome (ok, invalid, failed)",
	}, []string{"outcome"})
	IngestTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roi_ingest_batches_total",
		Help: "Tracked box batches classified by the area API",
	})
	CountingEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roi_counting_events_total",
		Help: "In/out counting events by area",
	}, []string{"area", "event"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roi_http_requests_total",
		Help: "Inbound HTTP requests by status class",
	}, []string{"class"})
)

func init() {
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendDurationMs)
	prometheus.MustRegister(DetectionTicksTotal)
	prometheus.MustRegister(RendersTotal)
	prometheus.MustRegister(RenderDurationMs)
	prometheus.MustRegister(PolygonVertices)
	prometheus.MustRegister(DetectionsLive)
	prometheus.MustRegister(SavesTotal)
	prometheus.MustRegister(IngestTotal)
	prometheus.MustRegister(CountingEventsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// 文档注释：返回 Prometheus 指标处理器
// 背景：两个服务都在各自的 /metrics 路径挂载。
func Handler() http.Handler { return promhttp.Handler() }

// SinceMs：自 t0 起的耗时（毫秒，保留小数）
// 约束：渲染与本地调用常在 1ms 以内，按整毫秒截断会把样本全部落到 0。
func SinceMs(t0 time.Time) float64 {
	return float64(time.Since(t0).Microseconds()) / 1000
}
