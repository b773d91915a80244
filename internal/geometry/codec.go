// internal/geometry/codec.go
package geometry

// GridSize is the edge length of the model's normalized addressing grid.
// Normalized coordinates live in [0, GridSize-1] on both axes regardless of
// the physical screen resolution.
const GridSize = 1000

// MaxNormalized is the largest valid normalized coordinate.
const MaxNormalized = GridSize - 1

// Point is a device-space pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Denormalize maps a normalized coordinate onto a device axis of the given
// dimension using truncating integer division: floor(n * dimension / 1000).
//
// Out-of-contract input is clamped rather than passed through, so the result
// always lies in [0, dimension). A non-positive dimension yields 0.
func Denormalize(n, dimension int) int {
	if dimension <= 0 {
		return 0
	}
	return ClampNormalized(n) * dimension / GridSize
}

// DenormalizePoint applies Denormalize independently per axis.
func DenormalizePoint(x, y, width, height int) Point {
	return Point{
		X: Denormalize(x, width),
		Y: Denormalize(y, height),
	}
}

// ClampNormalized forces n into [0, MaxNormalized].
func ClampNormalized(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxNormalized:
		return MaxNormalized
	default:
		return n
	}
}

// Center returns the midpoint of a width x height screen.
func Center(width, height int) Point {
	return Point{X: width / 2, Y: height / 2}
}
