// Package geo derives movement geometry from recorded blob paths. Positions
// are plain 2D world coordinates in the game's tile space, so everything here
// is flat euclidean math over simplefeatures geometries.
package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrTooFewPoints is returned when a path has fewer than 2 positions.
var ErrTooFewPoints = errors.New("path must have at least 2 points")

// Path builds a LineString from a sequence of recorded positions.
func Path(points []geom.XY) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, ErrTooFewPoints
	}

	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// PathLength returns the total distance traveled along a recorded path.
// Paths too short to form a line have zero length.
func PathLength(points []geom.XY) float64 {
	ls, err := Path(points)
	if err != nil {
		return 0
	}
	return ls.Length()
}

// MaxStep returns the longest single-tick displacement along a path. Replays
// teleport entities whose drift exceeds the snap threshold, so a recorded
// path with a large step usually means the original entity itself warped.
func MaxStep(points []geom.XY) float64 {
	var max float64
	for i := 1; i < len(points); i++ {
		d := math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
		if d > max {
			max = d
		}
	}
	return max
}

// Bounds returns the axis-aligned bounding box of a path as its min and max
// corners. An empty path yields two zero points.
func Bounds(points []geom.XY) (min, max geom.XY) {
	if len(points) == 0 {
		return geom.XY{}, geom.XY{}
	}
	min, max = points[0], points[0]
	for _, p := range points[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max
}
