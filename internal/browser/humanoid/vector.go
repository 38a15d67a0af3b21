// internal/browser/humanoid/vector.go
package humanoid

import (
	"math"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

// Vector2D is a screen position or displacement in CSS pixels.
type Vector2D struct {
	X float64
	Y float64
}

func fromPoint(p schemas.Point) Vector2D { return Vector2D{X: p.X, Y: p.Y} }

func (v Vector2D) point() schemas.Point { return schemas.Point{X: v.X, Y: v.Y} }

func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

func (v Vector2D) Mul(scalar float64) Vector2D {
	return Vector2D{X: v.X * scalar, Y: v.Y * scalar}
}

func (v Vector2D) Mag() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize returns the unit vector along v, or the zero vector.
func (v Vector2D) Normalize() Vector2D {
	mag := v.Mag()
	if mag < 1e-9 {
		return Vector2D{}
	}
	return v.Mul(1.0 / mag)
}

func (v Vector2D) Dist(other Vector2D) float64 {
	return math.Hypot(v.X-other.X, v.Y-other.Y)
}

// Perp returns v rotated 90 degrees counter-clockwise.
func (v Vector2D) Perp() Vector2D {
	return Vector2D{X: -v.Y, Y: v.X}
}
