// 包 geometry：原生分辨率、编辑画布与屏幕三套坐标之间的换算；纯函数，无状态，可并发调用
package geometry

import "math"

// Point：二维坐标点，所属坐标空间由调用方约定
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dims：某一坐标空间的宽高（像素或逻辑单位）
type Dims struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect：画布元素在页面上的包围盒（屏幕空间）
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Config：分辨率常量的唯一配置记录
// 背景：原生流分辨率与编辑画布尺寸只在此处定义，映射器与渲染器均由它注入，避免散落的字面量。
type Config struct {
	Native Dims `json:"native"`
	Edit   Dims `json:"edit"`
}

// DefaultConfig：1920x1080 原生流，960x540 编辑画布
func DefaultConfig() Config {
	return Config{
		Native: Dims{Width: 1920, Height: 1080},
		Edit:   Dims{Width: 960, Height: 540},
	}
}

// Valid：四个尺寸均为正数
func (c Config) Valid() bool {
	return c.Native.Width > 0 && c.Native.Height > 0 && c.Edit.Width > 0 && c.Edit.Height > 0
}

// Mapper：按轴独立线性缩放，不涉及旋转与透视
type Mapper struct {
	sx  float64 // edit / native, x 轴
	sy  float64 // edit / native, y 轴
	cfg Config
}

func NewMapper(cfg Config) Mapper {
	return Mapper{
		sx:  cfg.Edit.Width / cfg.Native.Width,
		sy:  cfg.Edit.Height / cfg.Native.Height,
		cfg: cfg,
	}
}

func (m Mapper) Config() Config { return m.cfg }

// ToEdit：原生空间 → 编辑空间
func (m Mapper) ToEdit(p Point) Point {
	return Point{X: p.X * m.sx, Y: p.Y * m.sy}
}

// ToNative：编辑空间 → 原生空间，不取整
func (m Mapper) ToNative(p Point) Point {
	return Point{X: p.X / m.sx, Y: p.Y / m.sy}
}

// ToNativeInt：编辑空间 → 原生空间并四舍五入到整数像素
// 约束：持久化坐标是流的像素索引，必须为整数
func (m Mapper) ToNativeInt(p Point) [2]int {
	n := m.ToNative(p)
	return [2]int{int(math.Round(n.X)), int(math.Round(n.Y))}
}

// ScreenToEdit：屏幕点击坐标 → 编辑空间
// 先减去画布在页面上的偏移；画布未被拉伸时（包围盒为零或与编辑尺寸一致）屏幕像素即编辑单位，
// 否则按包围盒与编辑尺寸的比例补一个缩放项。
func (m Mapper) ScreenToEdit(p Point, box Rect) Point {
	x := p.X - box.Left
	y := p.Y - box.Top
	if box.Width > 0 {
		x *= m.cfg.Edit.Width / box.Width
	}
	if box.Height > 0 {
		y *= m.cfg.Edit.Height / box.Height
	}
	return Point{X: x, Y: y}
}

// BoxToEdit：把原生空间的 [x1,y1,x2,y2] 框换算为编辑空间左上角与宽高
func (m Mapper) BoxToEdit(box [4]int) (x, y, w, h float64) {
	tl := m.ToEdit(Point{X: float64(box[0]), Y: float64(box[1])})
	br := m.ToEdit(Point{X: float64(box[2]), Y: float64(box[3])})
	return tl.X, tl.Y, br.X - tl.X, br.Y - tl.Y
}
