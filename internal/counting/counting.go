// 包 counting：按检测框底边中点判定进出区域，并根据上一状态产生进入/离开事件
package counting

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"roi-overlay/internal/detection"
)

const (
	EventIn  = "in"
	EventOut = "out"
)

// Region：原生分辨率下的区域多边形
// 约束：边界上的点视为在内；少于 3 个点的区域不包含任何点。
type Region struct {
	ring  orb.Ring
	bound orb.Bound
}

func NewRegion(coords [][2]int) Region {
	ring := make(orb.Ring, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, orb.Point{float64(c[0]), float64(c[1])})
	}
	return Region{ring: ring, bound: ring.Bound()}
}

func (r Region) Contains(p orb.Point) bool {
	if len(r.ring) < 3 {
		return false
	}
	// 快速包围盒过滤
	if !r.bound.Contains(p) {
		return false
	}
	return planar.RingContains(r.ring, p)
}

// Anchor：人物落脚点，取检测框底边中点（整数截断）
func Anchor(box [4]int) orb.Point {
	return orb.Point{float64((box[0] + box[2]) / 2), float64(box[3])}
}

// Track：外部跟踪器上报的一条原始检测
type Track struct {
	TrackID int    `json:"track_id"`
	Box     [4]int `json:"box"`
}

// Event：一次进出事件
type Event struct {
	Type    string `json:"event_type"`
	TrackID int    `json:"track_id"`
}

// Transition：was→now 的状态变化对应的事件；状态不变时 ok 为 false
func Transition(was, now bool) (string, bool) {
	switch {
	case now && !was:
		return EventIn, true
	case !now && was:
		return EventOut, true
	}
	return "", false
}

// Classify：判定一帧检测并与上一状态比较
// 参数：prev 为各轨迹上一次是否在内，未出现的轨迹视为在外；判定后原地更新为本帧状态。
// 返回：带 is_inside 的检测集合（顺序与输入一致）以及本帧产生的事件。
func Classify(r Region, tracks []Track, prev map[int]bool) ([]detection.Detection, []Event) {
	dets := make([]detection.Detection, 0, len(tracks))
	var events []Event
	for _, t := range tracks {
		now := r.Contains(Anchor(t.Box))
		dets = append(dets, detection.Detection{TrackID: t.TrackID, Box: t.Box, IsInside: now})
		if typ, ok := Transition(prev[t.TrackID], now); ok {
			events = append(events, Event{Type: typ, TrackID: t.TrackID})
		}
		prev[t.TrackID] = now
	}
	return dets, events
}
