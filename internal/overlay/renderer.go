package overlay

import (
	"strconv"

	"roi-overlay/internal/detection"
	"roi-overlay/internal/geometry"
	"roi-overlay/internal/polygon"
)

// Palette：叠加层配色；具体色值只是外观选择，内外两色必须可区分
type Palette struct {
	PolygonStroke string
	PolygonFill   [4]float64 // r, g, b, a (0-1)
	Vertex        string
	Inside        string
	Outside       string
}

func DefaultPalette() Palette {
	return Palette{
		PolygonStroke: "#00FF00",
		PolygonFill:   [4]float64{0, 1, 0, 0.2},
		Vertex:        "#FF0000",
		Inside:        "#FF4136",
		Outside:       "#0074D9",
	}
}

const (
	polygonLineWidth = 3
	boxLineWidth     = 2
	vertexRadius     = 5
	labelOffsetY     = 5
)

// Renderer：无状态合成器；尺寸来自注入的 geometry.Config
type Renderer struct {
	mapper  geometry.Mapper
	palette Palette
}

func NewRenderer(cfg geometry.Config, palette Palette) *Renderer {
	return &Renderer{mapper: geometry.NewMapper(cfg), palette: palette}
}

// Render：清空画面后先画多边形，再按快照顺序画检测框
// 约束：每次调用的输出只取决于入参，与上一次画面无关；空多边形与空快照只得到一张清空的画面。
func (r *Renderer) Render(s Surface, vertices []geometry.Point, dets []detection.Detection) error {
	s.ClearPath()
	s.Clear()
	if err := r.drawPolygon(s, vertices); err != nil {
		return err
	}
	for _, d := range dets {
		if err := r.drawDetection(s, d); err != nil {
			return err
		}
	}
	return nil
}

// 少于 3 个顶点时只画开放折线，不暗示闭合；≥3 时闭合、填充并描边
func (r *Renderer) drawPolygon(s Surface, vs []geometry.Point) error {
	if len(vs) == 0 {
		return nil
	}
	s.SetLineWidth(polygonLineWidth)
	s.MoveTo(vs[0].X, vs[0].Y)
	for _, v := range vs[1:] {
		s.LineTo(v.X, v.Y)
	}
	if len(vs) >= polygon.MinVertices {
		s.ClosePath()
		f := r.palette.PolygonFill
		s.SetRGBA(f[0], f[1], f[2], f[3])
		if err := s.FillPreserve(); err != nil {
			return err
		}
	}
	s.SetHexColor(r.palette.PolygonStroke)
	if err := s.Stroke(); err != nil {
		return err
	}
	s.SetHexColor(r.palette.Vertex)
	for _, v := range vs {
		s.DrawCircle(v.X, v.Y, vertexRadius)
		if err := s.Fill(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawDetection(s Surface, d detection.Detection) error {
	x, y, w, h := r.mapper.BoxToEdit(d.Box)
	col := r.palette.Outside
	if d.IsInside {
		col = r.palette.Inside
	}
	s.SetHexColor(col)
	s.SetLineWidth(boxLineWidth)
	s.DrawRectangle(x, y, w, h)
	if err := s.Stroke(); err != nil {
		return err
	}
	s.DrawString(Label(d.TrackID), x, y-labelOffsetY)
	return nil
}

// Label：检测框上方的跟踪编号文本
func Label(trackID int) string { return "ID: " + strconv.Itoa(trackID) }
