// internal/browser/humanoid/trajectory.go
package humanoid

import (
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"
)

// computeEaseInOutCubic accelerates over the first half and decelerates
// over the second.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func bezier(p0, p1, p2, p3 Vector2D, t float64) Vector2D {
	omt := 1.0 - t
	omt2 := omt * omt
	t2 := t * t
	return p0.Mul(omt2 * omt).Add(p1.Mul(3 * omt2 * t)).Add(p2.Mul(3 * omt * t2)).Add(p3.Mul(t2 * t))
}

// planPath returns steps points from start (exclusive) to end (inclusive)
// along an eased cubic Bezier. Control points bow to one side of the
// straight line and intermediate points carry Perlin drift; the last point
// is always exactly end.
func planPath(start, end Vector2D, steps int, spread, amplitude float64, rng *rand.Rand, noise *perlin.Perlin) []Vector2D {
	dist := start.Dist(end)
	if steps < 1 || dist < 1.0 {
		return []Vector2D{end}
	}

	dir := end.Sub(start).Normalize()
	side := dir.Perp()
	if rng.Intn(2) == 0 {
		side = side.Mul(-1)
	}
	p1 := start.Add(dir.Mul(dist / 3)).Add(side.Mul(dist * spread * (0.5 + rng.Float64())))
	p2 := start.Add(dir.Mul(dist * 2 / 3)).Add(side.Mul(dist * spread * (0.5 + rng.Float64()) * 0.5))

	path := make([]Vector2D, 0, steps)
	for i := 1; i <= steps; i++ {
		if i == steps {
			path = append(path, end)
			break
		}
		t := computeEaseInOutCubic(float64(i) / float64(steps))
		p := bezier(start, p1, p2, end, t)
		if noise != nil && amplitude > 0 {
			// Drift fades towards both ends so the cursor lands cleanly.
			fade := math.Sin(math.Pi * t)
			p = p.Add(Vector2D{
				X: noise.Noise1D(t*3) * amplitude * fade,
				Y: noise.Noise1D(t*3+100) * amplitude * fade,
			})
		}
		path = append(path, p)
	}
	return path
}
