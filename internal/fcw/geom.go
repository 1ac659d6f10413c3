package fcw

// BBox is an axis-aligned bounding box in pixel space.
// Invariant for well-formed boxes: X1 < X2 and Y1 < Y2.
type BBox struct {
	X1 float32
	Y1 float32
	X2 float32
	Y2 float32
}

// Width returns the box width in pixels (negative for degenerate boxes).
func (b BBox) Width() float32 { return b.X2 - b.X1 }

// Height returns the box height in pixels (negative for degenerate boxes).
func (b BBox) Height() float32 { return b.Y2 - b.Y1 }

// Area returns the box area in pixels², or 0 for degenerate boxes.
func (b BBox) Area() float32 {
	w := b.Width()
	h := b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Center returns the box center point.
func (b BBox) Center() (cx, cy float32) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// IsValid reports whether the box has positive extent on both axes.
// Upstream detectors can legitimately emit degenerate boxes transiently,
// so callers treat invalid boxes as a data-quality condition, not an error.
func (b BBox) IsValid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// IoU computes the intersection-over-union of two boxes: the ratio of
// their overlap area to their combined area. Returns 0 when the boxes do
// not overlap or when either box is degenerate.
func IoU(a, b BBox) float32 {
	ix1 := maxf(a.X1, b.X1)
	iy1 := maxf(a.Y1, b.Y1)
	ix2 := minf(a.X2, b.X2)
	iy2 := minf(a.Y2, b.Y2)

	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}

	intersection := (ix2 - ix1) * (iy2 - iy1)
	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// Detection is a single detector output for one frame. Detections carry
// no identity; the tracker assigns identity across frames.
type Detection struct {
	Box        BBox    `json:"box"`
	Confidence float32 `json:"confidence"`
	ClassName  string  `json:"class_name"`
}
