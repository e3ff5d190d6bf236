package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"roi-overlay/internal/backend"
	"roi-overlay/internal/detection"
	"roi-overlay/internal/geometry"
	"roi-overlay/internal/logger"
	"roi-overlay/internal/polygon"
	"roi-overlay/internal/session"
)

func init() { logger.SetupWriter(io.Discard) }

type stubBackend struct {
	mu      sync.Mutex
	saveErr error
	saved   []polygon.Payload
}

func (b *stubBackend) FetchArea(ctx context.Context, areaID int) (backend.Area, error) {
	return backend.Area{}, errors.New("not used")
}

func (b *stubBackend) SaveArea(ctx context.Context, areaID int, p polygon.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saved = append(b.saved, p)
	return b.saveErr
}

func (b *stubBackend) FetchDetections(ctx context.Context, areaID int) ([]detection.Detection, error) {
	return nil, nil
}

func (b *stubBackend) FetchStats(ctx context.Context, areaID int) (backend.Stats, error) {
	return backend.Stats{}, nil
}

func newEditor(t *testing.T, be *stubBackend) *httptest.Server {
	t.Helper()
	s, err := session.New(session.Options{AreaID: 1, Geometry: geometry.DefaultConfig()}, be, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	mux := http.NewServeMux()
	mux.Handle("/editor/", http.StripPrefix("/editor", BuildRoutes(s, nil)))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func click(t *testing.T, base string, x, y float64) {
	t.Helper()
	b, _ := json.Marshal(map[string]float64{"x": x, "y": y, "left": 0, "top": 0, "width": 960, "height": 540})
	if resp := post(t, base+"/editor/click", string(b)); resp.StatusCode != http.StatusOK {
		t.Fatalf("click = %d", resp.StatusCode)
	}
}

func TestOverlayPNG(t *testing.T) {
	srv := newEditor(t, &stubBackend{})
	resp, err := http.Get(srv.URL + "/editor/overlay.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.Header.Get("content-type") != "image/png" || !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Fatalf("overlay = %s %q", resp.Header.Get("content-type"), b[:8])
	}
}

func TestClickAndUndo(t *testing.T) {
	srv := newEditor(t, &stubBackend{})
	click(t, srv.URL, 100, 50)
	click(t, srv.URL, 200, 50)

	resp := post(t, srv.URL+"/editor/undo", "")
	var v session.View
	_ = json.NewDecoder(resp.Body).Decode(&v)
	if len(v.Vertices) != 1 || v.Vertices[0] != (geometry.Point{X: 100, Y: 50}) {
		t.Fatalf("after undo = %+v", v.Vertices)
	}

	resp = post(t, srv.URL+"/editor/clear", "")
	v = session.View{}
	_ = json.NewDecoder(resp.Body).Decode(&v)
	if v.Phase != polygon.PhaseEmpty {
		t.Fatalf("after clear phase = %s", v.Phase)
	}
}

func TestSaveStatuses(t *testing.T) {
	be := &stubBackend{}
	srv := newEditor(t, be)
	click(t, srv.URL, 10, 10)
	click(t, srv.URL, 100, 10)

	if resp := post(t, srv.URL+"/editor/save", ""); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("two-vertex save = %d", resp.StatusCode)
	}

	click(t, srv.URL, 100, 100)
	resp := post(t, srv.URL+"/editor/save", "")
	var m map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&m)
	if resp.StatusCode != http.StatusOK || m["message"] != session.RestartNotice {
		t.Fatalf("save = %d %v", resp.StatusCode, m)
	}

	be.mu.Lock()
	be.saveErr = errors.New("connection refused")
	be.mu.Unlock()
	resp = post(t, srv.URL+"/editor/save", "")
	m = nil
	_ = json.NewDecoder(resp.Body).Decode(&m)
	if resp.StatusCode != http.StatusBadGateway || m["error"] != "save failed" {
		t.Fatalf("failed save = %d %v", resp.StatusCode, m)
	}
}

func TestBadClickBody(t *testing.T) {
	srv := newEditor(t, &stubBackend{})
	if resp := post(t, srv.URL+"/editor/click", "{"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body = %d", resp.StatusCode)
	}
}
