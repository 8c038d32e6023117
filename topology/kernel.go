package topology

import "github.com/bsaid97/go-topology-engine/geo"

// Kernel supplies the exact spatial predicates and operations the engine
// depends on. Implementations must be free of side effects on their
// arguments; the engine calls them synchronously and does not retry.
type Kernel interface {
	// SelfIntersects reports whether a lineal or polygonal geometry crosses
	// itself.
	SelfIntersects(g *geo.Geometry, tolerance float64) (bool, error)

	// Overlaps reports whether the interiors of a and b share an area
	// larger than tolerance².
	Overlaps(a, b *geo.Geometry, tolerance float64) (bool, error)

	// DetectGaps finds uncovered areas enclosed by or lying between the
	// polygons. Gap.Adjacent indexes into polygons.
	DetectGaps(polygons []*geo.Geometry, tolerance float64) ([]Gap, error)

	// DetectDangles finds endpoints of line that are farther than
	// tolerance from every other line in network and from the rest of line
	// itself. line is a LineString or MultiLineString.
	DetectDangles(line *geo.Geometry, network []*geo.Geometry, tolerance float64) ([]Dangle, error)

	Simplify(g *geo.Geometry, tolerance float64) (*geo.Geometry, error)

	// Difference returns a minus b.
	Difference(a, b *geo.Geometry) (*geo.Geometry, error)

	Union(a, b *geo.Geometry) (*geo.Geometry, error)

	// Covers reports whether no point of b lies outside a.
	Covers(a, b *geo.Geometry) (bool, error)
}

type Gap struct {
	Geometry *geo.Geometry
	Adjacent []int
}

// Dangle is an unconnected endpoint. PositionIndex is 0 for the start of
// the line and the last index for its end.
type Dangle struct {
	Coordinate    geo.Position
	PartIndex     int
	PositionIndex int
}
