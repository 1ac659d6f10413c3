package fcw

// HistoryArena maps track identity to a fixed-capacity ring buffer of
// position samples. The collision analyzer keeps its own arena, separate
// from the tracker's internal smoothing history: two independently
// maintained windows over the same identity space.
//
// Eviction is tied to the tracker's lifecycle: the tracker's OnEvict
// callback calls Evict, and PruneAbsent is a per-frame backstop bounding
// memory even if upstream wiring breaks.
type HistoryArena struct {
	capacity int
	rings    map[int64]*positionRing
}

type positionRing struct {
	pts       []TrackPoint
	head      int // Next write slot
	size      int
	lastFrame uint64 // Frame index of the most recent push
}

// NewHistoryArena creates an arena whose rings retain capacity samples.
func NewHistoryArena(capacity int) *HistoryArena {
	if capacity < 1 {
		capacity = 1
	}
	return &HistoryArena{
		capacity: capacity,
		rings:    make(map[int64]*positionRing),
	}
}

// Push appends a position sample for the given track, overwriting the
// oldest sample once the ring is full.
func (a *HistoryArena) Push(id int64, frame uint64, pt TrackPoint) {
	r := a.rings[id]
	if r == nil {
		r = &positionRing{pts: make([]TrackPoint, a.capacity)}
		a.rings[id] = r
	}
	r.pts[r.head] = pt
	r.head = (r.head + 1) % a.capacity
	if r.size < a.capacity {
		r.size++
	}
	r.lastFrame = frame
}

// Window returns the retained samples for a track, oldest first.
// Returns nil for unknown identities.
func (a *HistoryArena) Window(id int64) []TrackPoint {
	r := a.rings[id]
	if r == nil {
		return nil
	}
	out := make([]TrackPoint, r.size)
	start := (r.head - r.size + a.capacity) % a.capacity
	for i := 0; i < r.size; i++ {
		out[i] = r.pts[(start+i)%a.capacity]
	}
	return out
}

// Evict removes all state for a track identity.
func (a *HistoryArena) Evict(id int64) {
	delete(a.rings, id)
}

// PruneAbsent evicts every identity that has not been pushed within the
// last maxAge frames.
func (a *HistoryArena) PruneAbsent(currentFrame uint64, maxAge int) {
	for id, r := range a.rings {
		if currentFrame-r.lastFrame > uint64(maxAge) {
			delete(a.rings, id)
		}
	}
}

// Len returns the number of tracked identities in the arena.
func (a *HistoryArena) Len() int {
	return len(a.rings)
}
