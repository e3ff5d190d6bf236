package live

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"roi-overlay/internal/backend"
	"roi-overlay/internal/counting"
	"roi-overlay/internal/detection"
)

func newStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })
	return New(rc, ttl), mr
}

func TestKeys(t *testing.T) {
	if got := detectionsKey(3); got != "live:detections:3" {
		t.Fatalf("detections key = %s", got)
	}
	if got := statsKey(3); got != "live:stats:3" {
		t.Fatalf("stats key = %s", got)
	}
	if got := tracksKey(3); got != "live:tracks:3" {
		t.Fatalf("tracks key = %s", got)
	}
}

func TestDefaultTrackTTL(t *testing.T) {
	if s := New(nil, 0); s.trackTTL != 10*time.Minute {
		t.Fatalf("ttl = %v", s.trackTTL)
	}
}

func TestDetectionsRoundTrip(t *testing.T) {
	s, _ := newStore(t, 0)
	ctx := context.Background()

	dets, err := s.Detections(ctx, 1)
	if err != nil || dets == nil || len(dets) != 0 {
		t.Fatalf("missing key = %#v, %v", dets, err)
	}
	want := []detection.Detection{{TrackID: 7, Box: [4]int{100, 100, 300, 300}, IsInside: true}}
	if err := s.SetDetections(ctx, 1, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.Detections(ctx, 1)
	if err != nil || len(got) != 1 || got[0] != want[0] {
		t.Fatalf("detections = %+v, %v", got, err)
	}

	// 空集合整体替换
	if err := s.SetDetections(ctx, 1, nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Detections(ctx, 1); got == nil || len(got) != 0 {
		t.Fatalf("after clear = %#v", got)
	}
}

func TestStatsCounters(t *testing.T) {
	s, _ := newStore(t, 0)
	ctx := context.Background()

	if _, ok, err := s.Stats(ctx, 1); ok || err != nil {
		t.Fatalf("stats before init: ok=%v err=%v", ok, err)
	}
	if err := s.InitStats(ctx, 1); err != nil {
		t.Fatal(err)
	}
	st, ok, err := s.Stats(ctx, 1)
	if !ok || err != nil || st != (backend.Stats{}) {
		t.Fatalf("stats after init = %+v ok=%v err=%v", st, ok, err)
	}

	for _, e := range []string{counting.EventIn, counting.EventIn, counting.EventIn, counting.EventOut} {
		if err := s.Count(ctx, 1, e); err != nil {
			t.Fatal(err)
		}
	}
	// 再次初始化不覆盖已有计数
	if err := s.InitStats(ctx, 1); err != nil {
		t.Fatal(err)
	}
	st, _, _ = s.Stats(ctx, 1)
	if st != (backend.Stats{TotalIn: 3, TotalOut: 1, CurrentInside: 2}) {
		t.Fatalf("stats = %+v", st)
	}
}

func TestTrackStates(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	ctx := context.Background()

	if err := s.SaveTrackStates(ctx, 1, map[int]bool{7: true, 8: false}); err != nil {
		t.Fatal(err)
	}
	got, err := s.TrackStates(ctx, 1, []int{7, 8, 9})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[7] || got[8] {
		t.Fatalf("states = %v", got)
	}
	if _, ok := got[9]; ok {
		t.Fatal("unknown track must be absent")
	}
	if ttl := mr.TTL(tracksKey(1)); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	// 过期后轨迹状态整体丢弃
	mr.FastForward(2 * time.Minute)
	got, _ = s.TrackStates(ctx, 1, []int{7})
	if len(got) != 0 {
		t.Fatalf("states after expiry = %v", got)
	}
}

func TestSaveEmptyTrackStates(t *testing.T) {
	s, mr := newStore(t, 0)
	if err := s.SaveTrackStates(context.Background(), 1, nil); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(tracksKey(1)) {
		t.Fatal("no key should be written for an empty frame")
	}
}
