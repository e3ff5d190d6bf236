// 包 polygon：感兴趣区域多边形的编辑状态；顶点以编辑画布坐标保存，持久化时换算回原生分辨率
package polygon

import (
	"fmt"

	"roi-overlay/internal/geometry"
)

// MinVertices：可持久化多边形的最少顶点数
const MinVertices = 3

// Phase：编辑面的状态机
// Empty → Drawing(1..2) → Complete(≥3)；Complete 不是终态，可继续追加、撤销或清空。
type Phase string

const (
	PhaseEmpty    Phase = "empty"
	PhaseDrawing  Phase = "drawing"
	PhaseComplete Phase = "complete"
)

// ValidationError：保存前校验失败；提示给操作员，不影响会话
type ValidationError struct {
	Vertices int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("a polygon must have at least %d points, got %d", MinVertices, e.Vertices)
}

// Payload：PUT /api/config/area/{id} 的请求体（原生空间整数坐标）
type Payload struct {
	Name        string   `json:"name"`
	Coordinates [][2]int `json:"coordinates"`
}

// State：有序顶点序列与区域名称
// 约束：字段不对外暴露，仅能通过下列操作修改；每次修改递增 revision，会话据此重新合成画面。
type State struct {
	mapper   geometry.Mapper
	vertices []geometry.Point
	name     string
	revision uint64
}

func New(mapper geometry.Mapper) *State {
	return &State{mapper: mapper}
}

// Append：在末尾追加一个编辑空间顶点；不限数量，不去重
func (s *State) Append(p geometry.Point) {
	s.vertices = append(s.vertices, p)
	s.revision++
}

// UndoLast：移除最后一个顶点；空序列时不做任何事
func (s *State) UndoLast() {
	if len(s.vertices) == 0 {
		return
	}
	s.vertices = s.vertices[:len(s.vertices)-1]
	s.revision++
}

func (s *State) Clear() {
	s.vertices = nil
	s.revision++
}

// Load：用持久化的原生坐标整体替换顶点，并设置名称
func (s *State) Load(native [][2]int, name string) {
	vs := make([]geometry.Point, 0, len(native))
	for _, c := range native {
		vs = append(vs, s.mapper.ToEdit(geometry.Point{X: float64(c[0]), Y: float64(c[1])}))
	}
	s.vertices = vs
	s.name = name
	s.revision++
}

// ToPersistablePayload：少于 3 个顶点返回 *ValidationError，状态不变
func (s *State) ToPersistablePayload() (Payload, error) {
	if len(s.vertices) < MinVertices {
		return Payload{}, &ValidationError{Vertices: len(s.vertices)}
	}
	coords := make([][2]int, 0, len(s.vertices))
	for _, v := range s.vertices {
		coords = append(coords, s.mapper.ToNativeInt(v))
	}
	return Payload{Name: s.name, Coordinates: coords}, nil
}

// Vertices：返回顶点副本，调用方修改不会影响内部状态
func (s *State) Vertices() []geometry.Point {
	out := make([]geometry.Point, len(s.vertices))
	copy(out, s.vertices)
	return out
}

func (s *State) Name() string     { return s.name }
func (s *State) Len() int         { return len(s.vertices) }
func (s *State) Revision() uint64 { return s.revision }

func (s *State) Phase() Phase {
	switch n := len(s.vertices); {
	case n == 0:
		return PhaseEmpty
	case n < MinVertices:
		return PhaseDrawing
	default:
		return PhaseComplete
	}
}
