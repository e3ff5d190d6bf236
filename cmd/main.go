// 程序入口：叠加编辑服务；读取配置、创建编辑会话并挂载编辑路由、指标与静态前端
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hybridgroup/mjpeg"
	"github.com/joho/godotenv"

	"roi-overlay/internal/backend"
	"roi-overlay/internal/config"
	"roi-overlay/internal/editor"
	"roi-overlay/internal/logger"
	"roi-overlay/internal/metrics"
	"roi-overlay/internal/session"
	"roi-overlay/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg := config.Load()
	l.Debug("config_loaded", "area_id", cfg.AreaID, "backend", cfg.APIBaseURL,
		"native", cfg.Geometry.Native, "edit", cfg.Geometry.Edit, "ui", cfg.UIDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := mjpeg.NewStream()
	be := backend.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.RequestTimeout})
	sess, err := session.New(session.Options{
		AreaID:            cfg.AreaID,
		Geometry:          cfg.Geometry,
		DetectionInterval: cfg.DetectionInterval,
		StatsInterval:     cfg.StatsInterval,
		RequestTimeout:    cfg.RequestTimeout,
		LabelFontSize:     cfg.LabelFontSize,
		JPEGQuality:       cfg.JPEGQuality,
	}, be, stream)
	if err != nil {
		l.Error("session_init_error", "err", err)
		os.Exit(1)
	}
	defer sess.Close()
	if err := sess.Start(ctx); err != nil {
		l.Error("session_start_error", "err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.EditorBase+"/", http.StripPrefix(cfg.EditorBase, editor.BuildRoutes(sess, stream)))
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", editor.UIHandler(cfg.UIDir))
	// NOTE: 向前端暴露编辑路径、视频流地址与画布尺寸，避免硬编码
	mux.Handle("/config.js", editor.ConfigJS(map[string]any{
		"__EDITOR_BASE__": cfg.EditorBase,
		"__STREAM_URL__":  cfg.StreamURL,
		"__API_BASE__":    cfg.APIBaseURL,
		"__EDIT_WIDTH__":  cfg.Geometry.Edit.Width,
		"__EDIT_HEIGHT__": cfg.Geometry.Edit.Height,
	}))

	s := &http.Server{Addr: cfg.Addr, Handler: logger.AccessMiddleware(l)(mux)}
	if err := utils.ListenAndServe(ctx, l, s, "roi-overlay.local"); err != nil {
		l.Error("server_error", "err", err)
	}
}
