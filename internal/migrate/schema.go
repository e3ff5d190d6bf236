package migrate

import (
	"context"
	"database/sql"

	"roi-overlay/internal/logger"
	"roi-overlay/internal/store"
)

// DefaultAreaName：首次启动时写入的默认区域
const DefaultAreaName = "Malioboro Gate"

// DefaultAreaCoordinates：默认区域的原生分辨率坐标（1920x1080）
var DefaultAreaCoordinates = [][2]int{{914, 949}, {1875, 832}, {1415, 681}, {1438, 346}, {691, 264}, {669, 687}, {915, 950}}

// 背景：首次运行自动创建区域与事件表，保障后续配置读写与计数
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS areas (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            coordinates JSONB NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS counting_events (
            id BIGSERIAL PRIMARY KEY,
            ts TIMESTAMPTZ NOT NULL DEFAULT now(),
            event_type TEXT NOT NULL CHECK (event_type IN ('in','out')),
            track_id INT NOT NULL,
            area_id INT NOT NULL REFERENCES areas(id)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_counting_events_area_ts ON counting_events(area_id, ts DESC)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

// SeedDefaultArea：默认区域不存在时创建，返回其记录
func SeedDefaultArea(ctx context.Context, st *store.Store) (*store.Area, error) {
	a, created, err := st.EnsureArea(ctx, DefaultAreaName, DefaultAreaCoordinates)
	if err != nil {
		return nil, err
	}
	if created {
		logger.L().Info("default_area_created", "id", a.ID, "name", a.Name)
	}
	return a, nil
}
