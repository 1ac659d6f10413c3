package fcw

import (
	"testing"
	"time"
)

func newTestTracker() *Tracker {
	kinCfg := DefaultKinematicsConfig()
	return NewTracker(DefaultTrackerConfig(), &kinCfg)
}

func det(box BBox, conf float32) Detection {
	return Detection{Box: box, Confidence: conf, ClassName: "car"}
}

func TestTrackerSpawnAndIdentity(t *testing.T) {
	tr := newTestTracker()
	base := time.Now()

	box := BBox{100, 100, 160, 150}
	out := tr.Update([]Detection{det(box, 0.9)}, base)
	if len(out) != 1 {
		t.Fatalf("frame 1 emitted %d tracks, want 1", len(out))
	}
	id := out[0].TrackID

	// The same object drifting slightly keeps its identity.
	for i := 1; i <= 5; i++ {
		shift := float32(i * 2)
		moved := BBox{100 + shift, 100, 160 + shift, 150}
		out = tr.Update([]Detection{det(moved, 0.9)}, base.Add(time.Duration(i)*40*time.Millisecond))
		if len(out) != 1 {
			t.Fatalf("frame %d emitted %d tracks, want 1", i+1, len(out))
		}
		if out[0].TrackID != id {
			t.Fatalf("frame %d: identity changed from %d to %d", i+1, id, out[0].TrackID)
		}
	}
	if out[0].Hits != 6 {
		t.Errorf("hits = %d, want 6", out[0].Hits)
	}
	if tr.TrackCount() != 1 {
		t.Errorf("track count = %d, want 1", tr.TrackCount())
	}
}

func TestTrackerLowConfidenceDoesNotSpawn(t *testing.T) {
	tr := newTestTracker()
	out := tr.Update([]Detection{det(BBox{0, 0, 50, 50}, 0.4)}, time.Now())
	if len(out) != 0 || tr.TrackCount() != 0 {
		t.Errorf("emitted %d / count %d for low-confidence detection, want 0 / 0", len(out), tr.TrackCount())
	}
}

func TestTrackerDropsMalformedDetections(t *testing.T) {
	tr := newTestTracker()
	out := tr.Update([]Detection{
		det(BBox{10, 10, 5, 20}, 0.9), // inverted x extent
		det(BBox{100, 100, 160, 150}, 0.9),
	}, time.Now())
	if len(out) != 1 {
		t.Errorf("emitted %d tracks, want 1 (malformed dropped)", len(out))
	}
	if got := tr.DroppedDetections(); got != 1 {
		t.Errorf("DroppedDetections = %d, want 1", got)
	}
}

func TestTrackerCoastingAndEviction(t *testing.T) {
	tr := newTestTracker()
	var evicted []int64
	tr.OnEvict(func(id int64) { evicted = append(evicted, id) })

	base := time.Now()
	out := tr.Update([]Detection{det(BBox{100, 100, 160, 150}, 0.9)}, base)
	if len(out) != 1 {
		t.Fatalf("frame 1 emitted %d, want 1", len(out))
	}
	id := out[0].TrackID

	// Unconfirmed track coasts without being emitted, but stays alive
	// through the max-age window.
	for i := 1; i <= 5; i++ {
		out = tr.Update(nil, base.Add(time.Duration(i)*40*time.Millisecond))
		if len(out) != 0 {
			t.Errorf("frame %d: emitted %d coasting tracks, want 0", i+1, len(out))
		}
		if tr.TrackCount() != 1 {
			t.Fatalf("frame %d: track evicted early", i+1)
		}
	}

	// One more empty frame pushes it past max age.
	tr.Update(nil, base.Add(6*40*time.Millisecond))
	if tr.TrackCount() != 0 {
		t.Errorf("track count = %d after max-age window, want 0", tr.TrackCount())
	}
	if len(evicted) != 1 || evicted[0] != id {
		t.Errorf("evicted = %v, want [%d]", evicted, id)
	}
}

func TestTrackerReacquireWithinWindow(t *testing.T) {
	tr := newTestTracker()
	base := time.Now()
	box := BBox{100, 100, 160, 150}

	first := tr.Update([]Detection{det(box, 0.9)}, base)
	id := first[0].TrackID

	// Two missed frames, then the object reappears in place.
	tr.Update(nil, base.Add(40*time.Millisecond))
	tr.Update(nil, base.Add(80*time.Millisecond))
	out := tr.Update([]Detection{det(box, 0.9)}, base.Add(120*time.Millisecond))

	if len(out) != 1 {
		t.Fatalf("emitted %d tracks on reacquire, want 1", len(out))
	}
	if out[0].TrackID != id {
		t.Errorf("reacquired as new identity %d, want %d", out[0].TrackID, id)
	}
}

func TestTrackerDistinctIdentities(t *testing.T) {
	tr := newTestTracker()
	base := time.Now()

	a := BBox{50, 100, 110, 150}
	b := BBox{400, 100, 460, 150}
	var idA, idB int64
	for i := 0; i < 6; i++ {
		shift := float32(i * 3)
		out := tr.Update([]Detection{
			det(BBox{a.X1 + shift, a.Y1, a.X2 + shift, a.Y2}, 0.9),
			det(BBox{b.X1 - shift, b.Y1, b.X2 - shift, b.Y2}, 0.9),
		}, base.Add(time.Duration(i)*40*time.Millisecond))
		if len(out) != 2 {
			t.Fatalf("frame %d emitted %d tracks, want 2", i+1, len(out))
		}
		if i == 0 {
			idA, idB = out[0].TrackID, out[1].TrackID
			if idA == idB {
				t.Fatal("both detections spawned the same identity")
			}
			continue
		}
		ids := map[int64]bool{out[0].TrackID: true, out[1].TrackID: true}
		if !ids[idA] || !ids[idB] {
			t.Fatalf("frame %d identities %v, want {%d, %d}", i+1, ids, idA, idB)
		}
	}
}

func TestTrackerMaxTracksBound(t *testing.T) {
	kinCfg := DefaultKinematicsConfig()
	cfg := DefaultTrackerConfig()
	cfg.MaxTracks = 2
	tr := NewTracker(cfg, &kinCfg)

	dets := []Detection{
		det(BBox{0, 0, 50, 50}, 0.9),
		det(BBox{200, 0, 250, 50}, 0.9),
		det(BBox{400, 0, 450, 50}, 0.9),
	}
	tr.Update(dets, time.Now())
	if tr.TrackCount() != 2 {
		t.Errorf("track count = %d, want bound 2", tr.TrackCount())
	}
}

func TestTrackerVelocityConverges(t *testing.T) {
	tr := newTestTracker()
	base := time.Now()
	for i := 0; i < 20; i++ {
		shift := float32(i * 10)
		tr.Update([]Detection{det(BBox{100 + shift, 100, 160 + shift, 150}, 0.9)}, base.Add(time.Duration(i)*40*time.Millisecond))
	}
	tracks := tr.ActiveTracks()
	if len(tracks) != 1 {
		t.Fatalf("track count = %d, want 1", len(tracks))
	}
	vx := tracks[0].VelocityPx[0]
	if vx < 7 || vx > 13 {
		t.Errorf("vx = %v px/frame, want near 10 after 20 steady frames", vx)
	}
	if vy := tracks[0].VelocityPx[1]; vy < -1 || vy > 1 {
		t.Errorf("vy = %v px/frame, want near 0", vy)
	}
}
