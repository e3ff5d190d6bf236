package counting

import (
	"testing"

	"github.com/paulmach/orb"
)

var gate = [][2]int{{914, 949}, {1875, 832}, {1415, 681}, {1438, 346}, {691, 264}, {669, 687}, {915, 950}}

func TestAnchor(t *testing.T) {
	if got := Anchor([4]int{100, 100, 301, 300}); got != (orb.Point{200, 300}) {
		t.Fatalf("anchor = %v", got)
	}
}

func TestRegionContains(t *testing.T) {
	square := NewRegion([][2]int{{0, 0}, {100, 0}, {100, 100}, {0, 100}})
	cases := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{"inside", orb.Point{50, 50}, true},
		{"outside", orb.Point{150, 50}, false},
		{"edge", orb.Point{100, 50}, true},
		{"vertex", orb.Point{0, 0}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := square.Contains(c.p); got != c.want {
				t.Fatalf("Contains(%v) = %v, want %v", c.p, got, c.want)
			}
		})
	}
}

func TestDegenerateRegion(t *testing.T) {
	r := NewRegion([][2]int{{0, 0}, {10, 10}})
	if r.Contains(orb.Point{5, 5}) {
		t.Fatal("two-point region must contain nothing")
	}
}

func TestTransition(t *testing.T) {
	cases := []struct {
		was, now bool
		want     string
		ok       bool
	}{
		{false, true, EventIn, true},
		{true, false, EventOut, true},
		{true, true, "", false},
		{false, false, "", false},
	}
	for _, c := range cases {
		got, ok := Transition(c.was, c.now)
		if got != c.want || ok != c.ok {
			t.Fatalf("Transition(%v,%v) = %q,%v", c.was, c.now, got, ok)
		}
	}
}

func TestClassifyGate(t *testing.T) {
	r := NewRegion(gate)
	prev := map[int]bool{}
	tracks := []Track{
		{TrackID: 1, Box: [4]int{1000, 400, 1100, 700}}, // anchor (1050,700) inside
		{TrackID: 2, Box: [4]int{10, 10, 50, 90}},       // far outside
	}
	dets, events := Classify(r, tracks, prev)
	if !dets[0].IsInside || dets[1].IsInside {
		t.Fatalf("dets = %+v", dets)
	}
	if len(events) != 1 || events[0] != (Event{Type: EventIn, TrackID: 1}) {
		t.Fatalf("events = %+v", events)
	}
	if !prev[1] || prev[2] {
		t.Fatalf("prev not updated: %v", prev)
	}

	// 同一轨迹离开区域
	tracks[0].Box = [4]int{10, 10, 50, 90}
	_, events = Classify(r, tracks, prev)
	if len(events) != 1 || events[0] != (Event{Type: EventOut, TrackID: 1}) {
		t.Fatalf("events = %+v", events)
	}
}

func TestClassifyStableInsideNoEvent(t *testing.T) {
	r := NewRegion(gate)
	prev := map[int]bool{5: true}
	_, events := Classify(r, []Track{{TrackID: 5, Box: [4]int{1000, 400, 1100, 700}}}, prev)
	if len(events) != 0 {
		t.Fatalf("events = %+v", events)
	}
}
