// 包 session：单个区域的编辑会话；持有多边形编辑状态、检测快照与画布，并驱动两条互不协调的轮询循环
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"roi-overlay/internal/backend"
	"roi-overlay/internal/detection"
	"roi-overlay/internal/geometry"
	"roi-overlay/internal/logger"
	"roi-overlay/internal/metrics"
	"roi-overlay/internal/overlay"
	"roi-overlay/internal/polygon"
)

// RestartNotice：保存成功后提示操作员；后端不热加载区域配置
const RestartNotice = "Polygon saved successfully! Please restart the backend server to apply changes."

var (
	ErrSaveFailed = errors.New("save failed")
	ErrClosed     = errors.New("session closed")
	ErrStarted    = errors.New("session already started")
)

// Backend：会话依赖的后端协作方；*backend.Client 实现该接口
type Backend interface {
	FetchArea(ctx context.Context, areaID int) (backend.Area, error)
	SaveArea(ctx context.Context, areaID int, p polygon.Payload) error
	FetchDetections(ctx context.Context, areaID int) ([]detection.Detection, error)
	FetchStats(ctx context.Context, areaID int) (backend.Stats, error)
}

// FrameSink：每次合成后接收 JPEG 帧，例如 *mjpeg.Stream
type FrameSink interface {
	UpdateJPEG(jpeg []byte)
}

// canvas：渲染目标，*gg.Context 满足
type canvas interface {
	overlay.Surface
	EncodePNG(w io.Writer) error
	EncodeJPEG(w io.Writer, quality int) error
}

type Options struct {
	AreaID            int
	Geometry          geometry.Config
	DetectionInterval time.Duration
	StatsInterval     time.Duration
	RequestTimeout    time.Duration
	LabelFontSize     float64
	JPEGQuality       int
}

func (o *Options) defaults() {
	if !o.Geometry.Valid() {
		o.Geometry = geometry.DefaultConfig()
	}
	if o.DetectionInterval <= 0 {
		o.DetectionInterval = 150 * time.Millisecond
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = 3 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 2 * time.Second
	}
	if o.LabelFontSize <= 0 {
		o.LabelFontSize = 14
	}
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = 80
	}
}

// Session：编辑会话
// 约束：所有状态修改与渲染都在 mu 内一次执行完毕，相当于单线程事件循环；
// 网络请求在锁外进行，结果回来时先核对代际令牌 gen，会话已关闭或已换代则整体丢弃。
type Session struct {
	mu   sync.Mutex
	opts Options
	be   Backend
	sink FrameSink
	log  *slog.Logger

	mapper   geometry.Mapper
	poly     *polygon.State
	dets     *detection.Cache
	renderer *overlay.Renderer
	canvas   canvas

	gen        string
	closed     bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	appliedSeq uint64

	regionErr string
	stats     backend.Stats
	statsErr  string
	statsAt   time.Time

	renders     uint64
	frame       []byte
	frameRender uint64

	// tickDone：每个检测周期结束时回调（测试用）
	tickDone func(result string)
}

// New：创建会话并绘制一张空白帧；sink 可为 nil
func New(opts Options, be Backend, sink FrameSink) (*Session, error) {
	opts.defaults()
	cv, err := overlay.NewCanvas(opts.Geometry, opts.LabelFontSize)
	if err != nil {
		return nil, fmt.Errorf("canvas: %w", err)
	}
	mapper := geometry.NewMapper(opts.Geometry)
	s := &Session{
		opts:     opts,
		be:       be,
		sink:     sink,
		log:      logger.Component("session").With("area_id", opts.AreaID),
		mapper:   mapper,
		poly:     polygon.New(mapper),
		dets:     detection.NewCache(),
		renderer: overlay.NewRenderer(opts.Geometry, overlay.DefaultPalette()),
		canvas:   cv,
	}
	s.mu.Lock()
	s.renderLocked()
	s.mu.Unlock()
	return s, nil
}

// liveLocked：gen 仍对应当前存活的会话
func (s *Session) liveLocked(gen string) bool {
	return !s.closed && gen != "" && gen == s.gen
}

// renderLocked：合成一帧；PNG 在读取时按需编码，JPEG 推送给 sink
func (s *Session) renderLocked() {
	t0 := time.Now()
	if err := s.renderer.Render(s.canvas, s.poly.Vertices(), s.dets.Snapshot()); err != nil {
		s.log.Error("render_error", "err", err)
		return
	}
	s.renders++
	if s.sink != nil {
		var buf bytes.Buffer
		if err := s.canvas.EncodeJPEG(&buf, s.opts.JPEGQuality); err != nil {
			s.log.Error("jpeg_encode_error", "err", err)
		} else {
			s.sink.UpdateJPEG(buf.Bytes())
		}
	}
	metrics.RendersTotal.Inc()
	metrics.RenderDurationMs.Observe(metrics.SinceMs(t0))
	metrics.PolygonVertices.Set(float64(s.poly.Len()))
	metrics.DetectionsLive.Set(float64(s.dets.Len()))
}

// Frame：最近一次合成结果的 PNG 编码
func (s *Session) Frame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != nil && s.frameRender == s.renders {
		return s.frame, nil
	}
	var buf bytes.Buffer
	if err := s.canvas.EncodePNG(&buf); err != nil {
		return nil, err
	}
	s.frame = buf.Bytes()
	s.frameRender = s.renders
	return s.frame, nil
}

// Click：屏幕点击 → 编辑空间顶点，追加后立即重绘
func (s *Session) Click(p geometry.Point, box geometry.Rect) (geometry.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return geometry.Point{}, ErrClosed
	}
	e := s.mapper.ScreenToEdit(p, box)
	s.poly.Append(e)
	s.renderLocked()
	return e, nil
}

// Undo：撤销最后一个顶点；空多边形上调用不报错
func (s *Session) Undo() error {
	return s.edit(s.poly.UndoLast)
}

func (s *Session) Clear() error {
	return s.edit(s.poly.Clear)
}

func (s *Session) edit(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	rev := s.poly.Revision()
	fn()
	if s.poly.Revision() != rev {
		s.renderLocked()
	}
	return nil
}

// Save：校验并提交多边形；无论成败都不修改编辑状态
// 返回：少于 3 个顶点时为 *polygon.ValidationError 且不发请求；网络或对端失败时包装 ErrSaveFailed。
func (s *Session) Save(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}
	p, err := s.poly.ToPersistablePayload()
	s.mu.Unlock()
	if err != nil {
		metrics.SavesTotal.WithLabelValues("invalid").Inc()
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	if err := s.be.SaveArea(ctx, s.opts.AreaID, p); err != nil {
		metrics.SavesTotal.WithLabelValues("failed").Inc()
		s.log.Error("polygon_save_error", "err", err)
		return "", fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	metrics.SavesTotal.WithLabelValues("ok").Inc()
	s.log.Info("polygon_saved", "name", p.Name, "vertices", len(p.Coordinates))
	return RestartNotice, nil
}

// View：会话状态的只读视图
type View struct {
	SessionID   string                `json:"session_id"`
	AreaID      int                   `json:"area_id"`
	Name        string                `json:"name"`
	Phase       polygon.Phase         `json:"phase"`
	Vertices    []geometry.Point      `json:"vertices"`
	Detections  []detection.Detection `json:"detections"`
	RegionError string                `json:"region_error,omitempty"`
	Renders     uint64                `json:"renders"`
	Geometry    geometry.Config       `json:"geometry"`
}

func (s *Session) State() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		SessionID:   s.gen,
		AreaID:      s.opts.AreaID,
		Name:        s.poly.Name(),
		Phase:       s.poly.Phase(),
		Vertices:    s.poly.Vertices(),
		Detections:  s.dets.Snapshot(),
		RegionError: s.regionErr,
		Renders:     s.renders,
		Geometry:    s.opts.Geometry,
	}
}

// StatsView：统计展示协作方读取的计数快照；Error 非空表示最近一次拉取失败
type StatsView struct {
	backend.Stats
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Stats() StatsView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsView{Stats: s.stats, Error: s.statsErr, UpdatedAt: s.statsAt}
}
