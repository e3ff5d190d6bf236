// 程序入口：区域与检测服务；初始化 PostgreSQL 与 Redis，写入默认区域并挂载 /api 路由
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"roi-overlay/internal/api"
	"roi-overlay/internal/config"
	"roi-overlay/internal/live"
	"roi-overlay/internal/logger"
	"roi-overlay/internal/metrics"
	"roi-overlay/internal/middleware"
	"roi-overlay/internal/migrate"
	"roi-overlay/internal/store"
	"roi-overlay/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.LoadAPI()
	l.Debug("config_api_base", "base", cfg.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := db.PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	rc := utils.OpenRedisFromEnv()
	defer rc.Close()
	if err := rc.Ping(ctx).Err(); err != nil {
		l.Error("redis_ping_error", "err", err)
	} else {
		l.Info("redis_ping_ok")
	}
	lv := live.New(rc, cfg.TrackTTL)

	def, err := migrate.SeedDefaultArea(ctx, st)
	if err != nil {
		l.Error("default_area_error", "err", err)
		os.Exit(1)
	}
	// 背景：计数使用启动时捕获的多边形；PUT 更新区域后需重启才会生效
	area := def
	if cfg.ProcessAreaID != 0 && cfg.ProcessAreaID != def.ID {
		if area, err = st.GetArea(ctx, cfg.ProcessAreaID); err != nil {
			l.Error("process_area_error", "id", cfg.ProcessAreaID, "err", err)
			os.Exit(1)
		}
	}
	if err := lv.InitStats(ctx, area.ID); err != nil {
		l.Error("live_stats_init_error", "err", err)
	}
	l.Info("processing_area", "id", area.ID, "name", area.Name, "vertices", len(area.Coordinates))
	l.Info("restart_notice", "msg", "to apply polygon changes from the API, restart the application")

	apiMux := api.BuildRoutes(st, lv, api.NewProcessor(*area, st, lv))
	mux := http.NewServeMux()
	mux.Handle(cfg.APIBase+"/detections/ingest", middleware.Wrap(http.StripPrefix(cfg.APIBase, apiMux)))
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	s := &http.Server{Addr: cfg.Addr, Handler: logger.AccessMiddleware(l)(mux)}
	if err := utils.ListenAndServe(ctx, l, s, "roi-area-api.local"); err != nil {
		l.Error("server_error", "err", err)
	}
}
