package api

import (
	"context"
	"strconv"
	"sync"

	"roi-overlay/internal/counting"
	"roi-overlay/internal/detection"
	"roi-overlay/internal/logger"
	"roi-overlay/internal/metrics"
	"roi-overlay/internal/store"
)

// Processor：单个区域的计数处理；区域多边形在启动时捕获，之后的 PUT 需重启才生效
// 约束：同一区域的上报串行处理，保证轨迹状态读改写不交错。
type Processor struct {
	mu     sync.Mutex
	area   store.Area
	region counting.Region
	areas  AreaStore
	live   LiveStore
}

func NewProcessor(area store.Area, areas AreaStore, lv LiveStore) *Processor {
	return &Processor{area: area, region: counting.NewRegion(area.Coordinates), areas: areas, live: lv}
}

func (p *Processor) AreaID() int { return p.area.ID }

// IngestResult：一次上报的处理结果
type IngestResult struct {
	Duplicate  bool                  `json:"duplicate,omitempty"`
	Detections []detection.Detection `json:"detections"`
	Events     []counting.Event      `json:"events"`
}

// Ingest：判定一帧检测，记录进出事件并替换实时检测
// 背景：事件写库或计数失败只记录日志，不影响本帧其余轨迹与实时检测的更新。
func (p *Processor) Ingest(ctx context.Context, frameID string, tracks []counting.Track) (IngestResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	areaID := p.area.ID
	l := logger.L()

	first, err := p.live.FirstSeen(ctx, areaID, frameID)
	if err != nil {
		l.Debug("ingest_dedup_error", "area_id", areaID, "err", err)
	}
	if !first {
		l.Debug("ingest_duplicate_frame", "area_id", areaID, "frame_id", frameID)
		return IngestResult{Duplicate: true, Detections: []detection.Detection{}, Events: []counting.Event{}}, nil
	}

	ids := make([]int, len(tracks))
	for i, t := range tracks {
		ids[i] = t.TrackID
	}
	prev, err := p.live.TrackStates(ctx, areaID, ids)
	if err != nil {
		return IngestResult{}, err
	}
	dets, events := counting.Classify(p.region, tracks, prev)
	area := strconv.Itoa(areaID)
	for _, e := range events {
		if err := p.areas.RecordEvent(ctx, areaID, e.TrackID, e.Type); err != nil {
			l.Error("counting_event_record_error", "area_id", areaID, "track_id", e.TrackID, "err", err)
		}
		if err := p.live.Count(ctx, areaID, e.Type); err != nil {
			l.Error("counting_event_count_error", "area_id", areaID, "err", err)
		}
		metrics.CountingEventsTotal.WithLabelValues(area, e.Type).Inc()
		l.Info("counting_event", "area_id", areaID, "track_id", e.TrackID, "event", e.Type)
	}
	if err := p.live.SaveTrackStates(ctx, areaID, prev); err != nil {
		return IngestResult{}, err
	}
	if err := p.live.SetDetections(ctx, areaID, dets); err != nil {
		return IngestResult{}, err
	}
	metrics.IngestTotal.Inc()
	if events == nil {
		events = []counting.Event{}
	}
	return IngestResult{Detections: dets, Events: events}, nil
}
