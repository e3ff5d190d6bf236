// 包 overlay：把操作员绘制的多边形与实时检测框合成到编辑画布大小的栅格面上
package overlay

import (
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"roi-overlay/internal/geometry"
)

// Surface：渲染器需要的最小绘图能力，语义与 2D canvas 一致
// *gg.Context 直接满足该接口；测试可注入记录型实现。
type Surface interface {
	Clear()
	ClearPath()
	SetHexColor(hex string)
	SetRGBA(r, g, b, a float64)
	SetLineWidth(width float64)
	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	DrawRectangle(x, y, w, h float64)
	DrawCircle(x, y, r float64)
	DrawString(s string, x, y float64)
	Fill() error
	Stroke() error
	FillPreserve() error
}

var _ Surface = (*gg.Context)(nil)

var (
	fontOnce sync.Once
	fontSrc  *text.FontSource
	fontErr  error
)

// labelFont：Go Regular 字体源，进程内只解析一次
func labelFont() (*text.FontSource, error) {
	fontOnce.Do(func() {
		fontSrc, fontErr = text.NewFontSource(goregular.TTF)
	})
	return fontSrc, fontErr
}

// NewCanvas：按编辑画布尺寸创建栅格面并设置标签字体
func NewCanvas(cfg geometry.Config, fontSize float64) (*gg.Context, error) {
	src, err := labelFont()
	if err != nil {
		return nil, err
	}
	dc := gg.NewContext(int(cfg.Edit.Width), int(cfg.Edit.Height))
	dc.SetFont(src.Face(fontSize))
	return dc, nil
}
