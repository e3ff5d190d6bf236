package overlay

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"testing"

	"roi-overlay/internal/detection"
	"roi-overlay/internal/geometry"
)

// recorder 记录绘图调用，便于断言几何与颜色
type recorder struct {
	ops   []string
	color string
}

func (r *recorder) add(f string, a ...any) { r.ops = append(r.ops, fmt.Sprintf(f, a...)) }

func (r *recorder) Clear()     { r.add("clear") }
func (r *recorder) ClearPath() { r.add("clearpath") }
func (r *recorder) ClosePath() { r.add("close") }

func (r *recorder) SetHexColor(h string) {
	r.color = h
	r.add("color %s", h)
}

func (r *recorder) SetRGBA(cr, g, b, a float64) {
	r.color = "rgba"
	r.add("rgba %g %g %g %g", cr, g, b, a)
}

func (r *recorder) SetLineWidth(w float64) { r.add("width %g", w) }
func (r *recorder) MoveTo(x, y float64)    { r.add("move %g %g", x, y) }
func (r *recorder) LineTo(x, y float64)    { r.add("line %g %g", x, y) }

func (r *recorder) DrawRectangle(x, y, w, h float64) { r.add("rect %g %g %g %g", x, y, w, h) }
func (r *recorder) DrawCircle(x, y, rad float64)     { r.add("circle %g %g %g", x, y, rad) }
func (r *recorder) DrawString(s string, x, y float64) {
	r.add("text %q %g %g", s, x, y)
}

func (r *recorder) Fill() error {
	r.add("fill %s", r.color)
	return nil
}

func (r *recorder) Stroke() error {
	r.add("stroke %s", r.color)
	return nil
}

func (r *recorder) FillPreserve() error {
	r.add("fillp %s", r.color)
	return nil
}

func (r *recorder) has(op string) bool {
	for _, o := range r.ops {
		if o == op {
			return true
		}
	}
	return false
}

func (r *recorder) index(op string) int {
	for i, o := range r.ops {
		if o == op {
			return i
		}
	}
	return -1
}

func newRenderer() *Renderer { return NewRenderer(geometry.DefaultConfig(), DefaultPalette()) }

func TestRenderEmptyOnlyClears(t *testing.T) {
	rec := &recorder{}
	if err := newRenderer().Render(rec, nil, nil); err != nil {
		t.Fatal(err)
	}
	if len(rec.ops) != 2 || rec.ops[0] != "clearpath" || rec.ops[1] != "clear" {
		t.Fatalf("ops = %v, want only clears", rec.ops)
	}
}

func TestRenderDetectionScenario(t *testing.T) {
	rec := &recorder{}
	dets := []detection.Detection{{TrackID: 7, Box: [4]int{100, 100, 300, 300}, IsInside: true}}
	if err := newRenderer().Render(rec, nil, dets); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"color #FF4136",
		"rect 50 50 100 100",
		"stroke #FF4136",
		`text "ID: 7" 50 45`,
	} {
		if !rec.has(want) {
			t.Errorf("missing op %q in %v", want, rec.ops)
		}
	}
}

func TestRenderOutsideColor(t *testing.T) {
	rec := &recorder{}
	dets := []detection.Detection{{TrackID: 1, Box: [4]int{0, 0, 10, 10}}}
	_ = newRenderer().Render(rec, nil, dets)
	if !rec.has("stroke #0074D9") {
		t.Fatalf("outside box should use outside color: %v", rec.ops)
	}
}

func TestRenderClosureGating(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		closed bool
	}{
		{"one vertex", 1, false},
		{"two vertices", 2, false},
		{"three vertices", 3, true},
		{"five vertices", 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := make([]geometry.Point, tt.n)
			for i := range vs {
				vs[i] = geometry.Point{X: float64(10 * i), Y: float64(5 * i * i)}
			}
			rec := &recorder{}
			_ = newRenderer().Render(rec, vs, nil)
			if rec.has("close") != tt.closed {
				t.Errorf("closed = %v, want %v (%v)", rec.has("close"), tt.closed, rec.ops)
			}
			if strings.Contains(strings.Join(rec.ops, ","), "fillp") != tt.closed {
				t.Errorf("fill of polygon should follow closure")
			}
			markers := 0
			for _, o := range rec.ops {
				if strings.HasPrefix(o, "circle ") {
					markers++
				}
			}
			if markers != tt.n {
				t.Errorf("markers = %d, want %d", markers, tt.n)
			}
		})
	}
}

func TestPolygonDrawnBeforeDetections(t *testing.T) {
	rec := &recorder{}
	vs := []geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}}
	dets := []detection.Detection{{TrackID: 1, Box: [4]int{0, 0, 20, 20}}}
	_ = newRenderer().Render(rec, vs, dets)
	if rec.index("stroke #00FF00") > rec.index("rect 0 0 10 10") {
		t.Fatalf("polygon must be drawn under detections: %v", rec.ops)
	}
}

func renderPNG(t *testing.T, vs []geometry.Point, dets []detection.Detection) ([]byte, image.Image) {
	t.Helper()
	dc, err := NewCanvas(geometry.DefaultConfig(), 14)
	if err != nil {
		t.Fatal(err)
	}
	if err := newRenderer().Render(dc, vs, dets); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), dc.Image()
}

func TestRenderIdempotentPixels(t *testing.T) {
	vs := []geometry.Point{{X: 100, Y: 100}, {X: 400, Y: 120}, {X: 300, Y: 400}}
	dets := []detection.Detection{{TrackID: 3, Box: [4]int{200, 200, 500, 700}, IsInside: true}}
	a, _ := renderPNG(t, vs, dets)
	b, _ := renderPNG(t, vs, dets)
	if !bytes.Equal(a, b) {
		t.Fatal("identical inputs must produce identical output")
	}
}

func TestRenderDoesNotAccumulate(t *testing.T) {
	dc, err := NewCanvas(geometry.DefaultConfig(), 14)
	if err != nil {
		t.Fatal(err)
	}
	r := newRenderer()
	dets := []detection.Detection{{TrackID: 9, Box: [4]int{100, 100, 300, 300}}}
	if err := r.Render(dc, nil, dets); err != nil {
		t.Fatal(err)
	}
	if err := r.Render(dc, nil, nil); err != nil {
		t.Fatal(err)
	}
	img := dc.Image()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				t.Fatalf("pixel (%d,%d) not cleared", x, y)
			}
		}
	}
}

func TestRenderInsideBoxPixels(t *testing.T) {
	dets := []detection.Detection{{TrackID: 7, Box: [4]int{100, 100, 300, 300}, IsInside: true}}
	_, img := renderPNG(t, nil, dets)
	r, g, b, a := img.At(50, 100).RGBA()
	if a>>8 < 200 || r>>8 < 200 || g>>8 > 120 || b>>8 > 120 {
		t.Fatalf("left edge pixel = %d %d %d %d, want inside color", r>>8, g>>8, b>>8, a>>8)
	}
	if _, _, _, a := img.At(100, 100).RGBA(); a != 0 {
		t.Fatal("box interior must stay transparent")
	}
}
