// 包 api：区域与检测服务的 HTTP 路由；独立 ServeMux 便于在主入口挂载到 /api 前缀
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"roi-overlay/internal/backend"
	"roi-overlay/internal/counting"
	"roi-overlay/internal/detection"
	"roi-overlay/internal/logger"
	"roi-overlay/internal/store"
)

// AreaStore：区域与事件的持久化；*store.Store 实现该接口
type AreaStore interface {
	GetArea(ctx context.Context, id int) (*store.Area, error)
	CreateArea(ctx context.Context, name string, coords [][2]int) (*store.Area, error)
	UpdateArea(ctx context.Context, id int, coords [][2]int) (*store.Area, error)
	RecordEvent(ctx context.Context, areaID, trackID int, eventType string) error
	History(ctx context.Context, q store.HistoryQuery) ([]store.CountingEvent, error)
}

// LiveStore：实时数据；*live.Store 实现该接口
type LiveStore interface {
	Detections(ctx context.Context, areaID int) ([]detection.Detection, error)
	SetDetections(ctx context.Context, areaID int, dets []detection.Detection) error
	Stats(ctx context.Context, areaID int) (backend.Stats, bool, error)
	Count(ctx context.Context, areaID int, eventType string) error
	TrackStates(ctx context.Context, areaID int, ids []int) (map[int]bool, error)
	SaveTrackStates(ctx context.Context, areaID int, states map[int]bool) error
	FirstSeen(ctx context.Context, areaID int, frameID string) (bool, error)
}

type server struct {
	areas AreaStore
	live  LiveStore
	proc  *Processor
	log   *slog.Logger
}

// 区域写入请求体
type areaBody struct {
	Name        string   `json:"name"`
	Coordinates [][2]int `json:"coordinates"`
}

func (b areaBody) validate() string {
	if b.Name == "" {
		return "name is required"
	}
	return validCoordinates(b.Coordinates)
}

func validCoordinates(coords [][2]int) string {
	if len(coords) < 3 {
		return "at least 3 coordinates are required"
	}
	return ""
}

// BuildRoutes：构建并返回 API 路由；proc 为启动时捕获的处理区域
func BuildRoutes(areas AreaStore, lv LiveStore, proc *Processor) *http.ServeMux {
	s := &server{areas: areas, live: lv, proc: proc, log: logger.Component("api")}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /config/area", s.createArea)
	mux.HandleFunc("GET /config/area/{id}", s.getArea)
	mux.HandleFunc("PUT /config/area/{id}", s.updateArea)
	mux.HandleFunc("POST /detections/ingest", s.ingest)
	mux.HandleFunc("GET /detections/live", s.liveDetections)
	mux.HandleFunc("GET /stats/live", s.liveStats)
	mux.HandleFunc("GET /stats", s.history)
	mux.HandleFunc("GET /stats/{$}", s.history)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"detail": msg})
}

// areaIDParam：?area_id=，缺省为 1
func areaIDParam(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("area_id")
	if v == "" {
		return 1, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func (s *server) createArea(w http.ResponseWriter, r *http.Request) {
	var b areaBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if msg := b.validate(); msg != "" {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	a, err := s.areas.CreateArea(r.Context(), b.Name, b.Coordinates)
	if errors.Is(err, store.ErrNameTaken) {
		writeDetail(w, http.StatusBadRequest, "Area name already registered")
		return
	}
	if err != nil {
		s.log.Error("area_create_error", "err", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *server) getArea(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid area id")
		return
	}
	a, err := s.areas.GetArea(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Area not found")
		return
	}
	if err != nil {
		s.log.Error("area_get_error", "id", id, "err", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// updateArea：只替换坐标，请求体中的 name 被忽略；处理中的区域多边形在启动时捕获，需重启后生效
func (s *server) updateArea(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid area id")
		return
	}
	var b areaBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	if msg := validCoordinates(b.Coordinates); msg != "" {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	a, err := s.areas.UpdateArea(r.Context(), id, b.Coordinates)
	if errors.Is(err, store.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Area not found")
		return
	}
	if err != nil {
		s.log.Error("area_update_error", "id", id, "err", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.log.Info("area_updated_restart_required", "id", id, "vertices", len(b.Coordinates))
	writeJSON(w, http.StatusOK, a)
}

func (s *server) liveDetections(w http.ResponseWriter, r *http.Request) {
	areaID, ok := areaIDParam(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid area_id")
		return
	}
	dets, err := s.live.Detections(r.Context(), areaID)
	if err != nil {
		s.log.Error("live_detections_error", "area_id", areaID, "err", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dets)
}

func (s *server) liveStats(w http.ResponseWriter, r *http.Request) {
	areaID, ok := areaIDParam(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid area_id")
		return
	}
	st, found, err := s.live.Stats(r.Context(), areaID)
	if err != nil {
		s.log.Error("live_stats_error", "area_id", areaID, "err", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		writeDetail(w, http.StatusNotFound, "No live stats available for area_id "+strconv.Itoa(areaID)+". Is processing running?")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// history：?area_id=&start_time=&end_time=&skip=&limit=，时间为 RFC3339
func (s *server) history(w http.ResponseWriter, r *http.Request) {
	q := store.HistoryQuery{}
	var ok bool
	if q.AreaID, ok = areaIDParam(r); !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid area_id")
		return
	}
	v := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"start_time", &q.Start}, {"end_time", &q.End}} {
		if raw := v.Get(p.key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeDetail(w, http.StatusUnprocessableEntity, "invalid "+p.key)
				return
			}
			*p.dst = t
		}
	}
	for _, p := range []struct {
		key string
		dst *int
	}{{"skip", &q.Skip}, {"limit", &q.Limit}} {
		if raw := v.Get(p.key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeDetail(w, http.StatusUnprocessableEntity, "invalid "+p.key)
				return
			}
			*p.dst = n
		}
	}
	q.Normalize(time.Now())
	events, err := s.areas.History(r.Context(), q)
	if err != nil {
		s.log.Error("history_error", "area_id", q.AreaID, "err", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) ingest(w http.ResponseWriter, r *http.Request) {
	areaID, ok := areaIDParam(r)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid area_id")
		return
	}
	if s.proc == nil || s.proc.AreaID() != areaID {
		writeDetail(w, http.StatusNotFound, "Area "+strconv.Itoa(areaID)+" is not being processed")
		return
	}
	var tracks []counting.Track
	if err := json.NewDecoder(r.Body).Decode(&tracks); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	res, err := s.proc.Ingest(r.Context(), r.URL.Query().Get("frame_id"), tracks)
	if err != nil {
		s.log.Error("ingest_error", "area_id", areaID, "err", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
