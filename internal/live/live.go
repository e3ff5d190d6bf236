// 包 live：Redis 中的实时数据；最新一帧检测、进出计数与各轨迹上一状态
package live

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"roi-overlay/internal/backend"
	"roi-overlay/internal/counting"
	"roi-overlay/internal/detection"
	"roi-overlay/internal/logger"
)

const (
	fieldIn  = "total_in"
	fieldOut = "total_out"
)

func detectionsKey(areaID int) string { return "live:detections:" + strconv.Itoa(areaID) }
func statsKey(areaID int) string      { return "live:stats:" + strconv.Itoa(areaID) }
func tracksKey(areaID int) string     { return "live:tracks:" + strconv.Itoa(areaID) }

// Store：实时数据访问
// 约束：轨迹状态哈希整体设置 TTL，长时间无上报的区域自动丢弃旧轨迹；计数与检测不过期。
type Store struct {
	rc       *redis.Client
	trackTTL time.Duration
}

func New(rc *redis.Client, trackTTL time.Duration) *Store {
	if trackTTL <= 0 {
		trackTTL = 10 * time.Minute
	}
	return &Store{rc: rc, trackTTL: trackTTL}
}

// Detections：最新一帧检测；尚无数据时返回空切片
func (s *Store) Detections(ctx context.Context, areaID int) ([]detection.Detection, error) {
	b, err := s.rc.Get(ctx, detectionsKey(areaID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []detection.Detection{}, nil
	}
	if err != nil {
		return nil, err
	}
	var dets []detection.Detection
	if err := json.Unmarshal(b, &dets); err != nil {
		return nil, err
	}
	if dets == nil {
		dets = []detection.Detection{}
	}
	return dets, nil
}

// SetDetections：整体替换最新一帧
func (s *Store) SetDetections(ctx context.Context, areaID int, dets []detection.Detection) error {
	if dets == nil {
		dets = []detection.Detection{}
	}
	b, err := json.Marshal(dets)
	if err != nil {
		return err
	}
	return s.rc.Set(ctx, detectionsKey(areaID), b, 0).Err()
}

// InitStats：处理区域启动时写入零计数；已有计数不覆盖
func (s *Store) InitStats(ctx context.Context, areaID int) error {
	k := statsKey(areaID)
	if err := s.rc.HSetNX(ctx, k, fieldIn, 0).Err(); err != nil {
		return err
	}
	return s.rc.HSetNX(ctx, k, fieldOut, 0).Err()
}

// Stats：当前计数；ok 为 false 表示该区域尚无计数
func (s *Store) Stats(ctx context.Context, areaID int) (backend.Stats, bool, error) {
	m, err := s.rc.HGetAll(ctx, statsKey(areaID)).Result()
	if err != nil {
		return backend.Stats{}, false, err
	}
	if len(m) == 0 {
		return backend.Stats{}, false, nil
	}
	in, _ := strconv.Atoi(m[fieldIn])
	out, _ := strconv.Atoi(m[fieldOut])
	return backend.Stats{TotalIn: in, TotalOut: out, CurrentInside: in - out}, true, nil
}

// Count：按事件类型递增计数
func (s *Store) Count(ctx context.Context, areaID int, eventType string) error {
	field := fieldIn
	if eventType == counting.EventOut {
		field = fieldOut
	}
	return s.rc.HIncrBy(ctx, statsKey(areaID), field, 1).Err()
}

// TrackStates：读取给定轨迹的上一状态；缺失的轨迹不出现在结果中
func (s *Store) TrackStates(ctx context.Context, areaID int, ids []int) (map[int]bool, error) {
	out := make(map[int]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.Itoa(id)
	}
	vals, err := s.rc.HMGet(ctx, tracksKey(areaID), fields...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[ids[i]] = str == "1"
		}
	}
	return out, nil
}

// SaveTrackStates：写回各轨迹本帧状态并刷新 TTL
func (s *Store) SaveTrackStates(ctx context.Context, areaID int, states map[int]bool) error {
	if len(states) == 0 {
		return nil
	}
	vals := make([]any, 0, len(states)*2)
	for id, in := range states {
		v := "0"
		if in {
			v = "1"
		}
		vals = append(vals, strconv.Itoa(id), v)
	}
	k := tracksKey(areaID)
	pipe := s.rc.TxPipeline()
	pipe.HSet(ctx, k, vals...)
	pipe.Expire(ctx, k, s.trackTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.L().Debug("track_state_save_error", "area_id", areaID, "err", err)
		return err
	}
	return nil
}
