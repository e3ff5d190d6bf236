// 包 store：PostgreSQL 数据访问层，区域配置与进出事件
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"roi-overlay/internal/logger"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNameTaken = errors.New("area name already registered")
)

// Store：数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// Area：区域配置，坐标为原生分辨率整数
type Area struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Coordinates [][2]int `json:"coordinates"`
}

// CountingEvent：一次进出记录
type CountingEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	TrackID   int       `json:"track_id"`
	AreaID    int       `json:"area_id"`
}

func scanArea(row *sql.Row) (*Area, error) {
	var a Area
	var raw []byte
	if err := row.Scan(&a.ID, &a.Name, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &a.Coordinates); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetArea(ctx context.Context, id int) (*Area, error) {
	return scanArea(s.db.QueryRowContext(ctx, "SELECT id, name, coordinates FROM areas WHERE id=$1", id))
}

func (s *Store) GetAreaByName(ctx context.Context, name string) (*Area, error) {
	return scanArea(s.db.QueryRowContext(ctx, "SELECT id, name, coordinates FROM areas WHERE name=$1", name))
}

// CreateArea：名称唯一；重名返回 ErrNameTaken
func (s *Store) CreateArea(ctx context.Context, name string, coords [][2]int) (*Area, error) {
	b, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}
	a := &Area{Name: name, Coordinates: coords}
	err = s.db.QueryRowContext(ctx, "INSERT INTO areas(name, coordinates) VALUES($1, $2) RETURNING id", name, b).Scan(&a.ID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, ErrNameTaken
	}
	if err != nil {
		return nil, err
	}
	logger.L().Debug("area_created", "id", a.ID, "name", name)
	return a, nil
}

// UpdateArea：只替换坐标，名称保持不变；区域不存在返回 ErrNotFound
func (s *Store) UpdateArea(ctx context.Context, id int, coords [][2]int) (*Area, error) {
	b, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}
	a := &Area{ID: id, Coordinates: coords}
	err = s.db.QueryRowContext(ctx, "UPDATE areas SET coordinates=$2 WHERE id=$1 RETURNING name", id, b).Scan(&a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// EnsureArea：按名称查找，不存在时创建；返回区域及是否新建
func (s *Store) EnsureArea(ctx context.Context, name string, coords [][2]int) (*Area, bool, error) {
	a, err := s.GetAreaByName(ctx, name)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	a, err = s.CreateArea(ctx, name, coords)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// RecordEvent：写入一条进出事件，时间取数据库当前时间
func (s *Store) RecordEvent(ctx context.Context, areaID, trackID int, eventType string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO counting_events(event_type, track_id, area_id) VALUES($1, $2, $3)",
		eventType, trackID, areaID)
	return err
}

// HistoryQuery：历史查询条件
type HistoryQuery struct {
	AreaID int
	Start  time.Time
	End    time.Time
	Skip   int
	Limit  int
}

// Normalize：未指定结束时间取当前时间；未指定开始时间取结束前 24 小时；limit 默认 100
func (q *HistoryQuery) Normalize(now time.Time) {
	if q.End.IsZero() {
		q.End = now.UTC()
	}
	if q.Start.IsZero() {
		q.Start = q.End.Add(-24 * time.Hour)
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}
}

// History：按时间倒序分页返回区间内事件（闭区间）
func (s *Store) History(ctx context.Context, q HistoryQuery) ([]CountingEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, ts, event_type, track_id, area_id
        FROM counting_events
        WHERE area_id=$1 AND ts >= $2 AND ts <= $3
        ORDER BY ts DESC
        OFFSET $4 LIMIT $5`, q.AreaID, q.Start.UTC(), q.End.UTC(), q.Skip, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CountingEvent{}
	for rows.Next() {
		var e CountingEvent
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.TrackID, &e.AreaID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
