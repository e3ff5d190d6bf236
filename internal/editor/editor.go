// 包 editor：编辑会话的 HTTP 界面；浏览器端只负责转发点击与按钮，合成结果以 PNG 快照和 MJPEG 流返回
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"roi-overlay/internal/geometry"
	"roi-overlay/internal/logger"
	"roi-overlay/internal/polygon"
	"roi-overlay/internal/session"
)

// Session：编辑界面依赖的会话操作；*session.Session 实现该接口
type Session interface {
	Frame() ([]byte, error)
	Click(p geometry.Point, box geometry.Rect) (geometry.Point, error)
	Undo() error
	Clear() error
	Save(ctx context.Context) (string, error)
	State() session.View
	Stats() session.StatsView
}

// clickBody：点击坐标与画布在页面上的包围盒，均为屏幕空间
type clickBody struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// BuildRoutes：构建编辑路由；stream 为 MJPEG 处理器，可为 nil
func BuildRoutes(s Session, stream http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	log := logger.Component("editor")

	mux.HandleFunc("GET /overlay.png", func(w http.ResponseWriter, r *http.Request) {
		b, err := s.Frame()
		if err != nil {
			log.Error("frame_encode_error", "err", err)
			writeError(w, http.StatusInternalServerError, "frame unavailable")
			return
		}
		w.Header().Set("content-type", "image/png")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(b)
	})
	if stream != nil {
		mux.Handle("GET /overlay.mjpeg", stream)
	}

	mux.HandleFunc("POST /click", func(w http.ResponseWriter, r *http.Request) {
		var b clickBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		p, err := s.Click(geometry.Point{X: b.X, Y: b.Y}, geometry.Rect{Left: b.Left, Top: b.Top, Width: b.Width, Height: b.Height})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		log.Debug("vertex_added", "x", p.X, "y", p.Y)
		writeJSON(w, http.StatusOK, map[string]any{"vertex": p, "state": s.State()})
	})

	for path, fn := range map[string]func() error{"POST /undo": s.Undo, "POST /clear": s.Clear} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if err := fn(); err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, s.State())
		})
	}

	// 保存：校验失败 422；网络或对端失败 502；编辑状态不受影响
	mux.HandleFunc("POST /save", func(w http.ResponseWriter, r *http.Request) {
		msg, err := s.Save(r.Context())
		var ve *polygon.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusUnprocessableEntity, ve.Error())
		case errors.Is(err, session.ErrSaveFailed):
			writeError(w, http.StatusBadGateway, "save failed")
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]string{"message": msg})
		}
	})

	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.State())
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Stats())
	})
	return mux
}
