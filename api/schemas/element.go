package schemas

import "time"

// Source records which resolver produced an ElementHandle.
type Source string

const (
	SourceDOM Source = "dom"
	SourceVLM Source = "vlm"
)

// Point is a pixel coordinate in the captured viewport.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// BoundingBox is an axis-aligned rectangle in viewport pixels.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// PointBox builds the degenerate 1x1 box used for coordinate-only handles.
// The box is centred on p so that Center() returns p exactly.
func PointBox(p Point) *BoundingBox {
	return &BoundingBox{X: p.X - 0.5, Y: p.Y - 0.5, Width: 1, Height: 1}
}

// ElementHandle is a resolved, actionable element. Handles are created by a
// resolver and never mutated afterwards; a handle tied to an old snapshot may
// fail re-verification.
type ElementHandle struct {
	ID          string       `json:"id"`
	Ref         string       `json:"ref,omitempty"`
	Role        string       `json:"role"`
	Name        string       `json:"name"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
	Source      Source       `json:"source"`
	Nth         int          `json:"nth,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
}

// WithBox returns a copy of the handle carrying box.
func (h ElementHandle) WithBox(box *BoundingBox) ElementHandle {
	h.BoundingBox = box
	return h
}

// SnapshotOptions tunes a structural snapshot.
type SnapshotOptions struct {
	// InteractiveOnly keeps only elements with an interactive ARIA role.
	InteractiveOnly bool `json:"interactiveOnly"`
	// MaxDepth limits the accessibility tree depth; negative means unlimited.
	MaxDepth int `json:"maxDepth"`
	// WithBoxes fetches a bounding box for every ref.
	WithBoxes bool `json:"withBoxes"`
}

// Snapshot is the reference map captured at one instant. A new snapshot
// replaces the previous one wholesale.
type Snapshot struct {
	Timestamp time.Time                `json:"timestamp"`
	URL       string                   `json:"url,omitempty"`
	Refs      map[string]ElementHandle `json:"refs"`
	// Order lists the ref ids in document order.
	Order []string `json:"order"`
	// Depths maps ref ids to their accessibility tree depth, for rendering.
	Depths map[string]int `json:"depths,omitempty"`
	// Screenshot is a base64 PNG captured alongside the refs, empty in
	// deterministic mode.
	Screenshot string `json:"screenshot,omitempty"`
}

// Lookup returns the handle minted for ref.
func (s *Snapshot) Lookup(ref string) (ElementHandle, bool) {
	if s == nil {
		return ElementHandle{}, false
	}
	h, ok := s.Refs[ref]
	return h, ok
}

// Len reports the number of refs held.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Refs)
}
