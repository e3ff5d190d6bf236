package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"roi-overlay/internal/detection"
	"roi-overlay/internal/metrics"
)

// Start：分配新的代际令牌并启动区域加载与两条轮询循环
// 区域配置只拉取一次；检测按固定周期拉取；统计启动即拉取一次，此后按周期拉取。
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.gen != "" {
		s.mu.Unlock()
		return ErrStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.gen = uuid.NewString()
	s.cancel = cancel
	gen := s.gen
	s.mu.Unlock()

	s.log.Info("session_start", "session_id", gen,
		"detection_interval", s.opts.DetectionInterval, "stats_interval", s.opts.StatsInterval)
	go s.loadRegion(ctx, gen)
	s.wg.Add(2)
	go s.pollDetections(ctx, gen)
	go s.pollStats(ctx, gen)
	return nil
}

// Close：取消计时器与在途请求并使令牌失效；之后到达的结果不修改状态、不触发重绘
// 只等待计时循环退出，不等待忽略取消的在途请求。可重复调用。
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	gen := s.gen
	s.gen = ""
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info("session_closed", "session_id", gen)
}

// loadRegion：失败只记录并保留空多边形，不重试
func (s *Session) loadRegion(ctx context.Context, gen string) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	a, err := s.be.FetchArea(ctx, s.opts.AreaID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(gen) {
		s.log.Debug("region_result_discarded")
		return
	}
	if err != nil {
		s.regionErr = err.Error()
		s.log.Error("region_load_error", "err", err)
		return
	}
	s.regionErr = ""
	s.poly.Load(a.Coordinates, a.Name)
	s.log.Info("region_loaded", "name", a.Name, "vertices", len(a.Coordinates))
	s.renderLocked()
}

// pollDetections：每个周期在独立协程中发起请求，慢响应不会阻塞下一次计时
func (s *Session) pollDetections(ctx context.Context, gen string) {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.DetectionInterval)
	defer t.Stop()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			seq++
			go s.detectionTick(ctx, gen, seq)
		}
	}
}

// detectionTick：成功则整体替换快照并重绘；失败静默跳过，保留旧快照
// 约束：序号不大于已应用序号的响应视为乱序到达，直接丢弃
func (s *Session) detectionTick(ctx context.Context, gen string, seq uint64) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	dets, err := s.be.FetchDetections(ctx, s.opts.AreaID)

	result := s.applyDetections(gen, seq, dets, err)
	metrics.DetectionTicksTotal.WithLabelValues(result).Inc()
	if s.tickDone != nil {
		s.tickDone(result)
	}
}

func (s *Session) applyDetections(gen string, seq uint64, dets []detection.Detection, err error) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.liveLocked(gen):
		return "discarded"
	case err != nil:
		s.log.Debug("detection_tick_skipped", "seq", seq, "err", err)
		return "failed"
	case seq <= s.appliedSeq:
		return "stale"
	}
	s.appliedSeq = seq
	s.dets.Replace(dets)
	s.renderLocked()
	return "applied"
}

func (s *Session) pollStats(ctx context.Context, gen string) {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.StatsInterval)
	defer t.Stop()
	go s.statsTick(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			go s.statsTick(ctx, gen)
		}
	}
}

// statsTick：成功更新计数并清除错误；失败只设置错误提示，保留上次计数
func (s *Session) statsTick(ctx context.Context, gen string) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()
	st, err := s.be.FetchStats(ctx, s.opts.AreaID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(gen) {
		return
	}
	if err != nil {
		s.statsErr = "Could not connect to API."
		s.log.Debug("stats_fetch_error", "err", err)
		return
	}
	s.stats = st
	s.statsErr = ""
	s.statsAt = time.Now()
}
