package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

// Envelope is an axis aligned XY bounding box.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

// Expand grows the envelope by d on every side.
func (e Envelope) Expand(d float64) Envelope {
	return Envelope{MinX: e.MinX - d, MinY: e.MinY - d, MaxX: e.MaxX + d, MaxY: e.MaxY + d}
}

func (e Envelope) Intersects(o Envelope) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// Envelope returns the XY bounds of g, computed through go-geom.
func (g *Geometry) Envelope() (Envelope, error) {
	t, err := g.ToGeom()
	if err != nil {
		return Envelope{}, err
	}
	b := t.Bounds()
	if b.IsEmpty() {
		return Envelope{}, fmt.Errorf("%w: empty bounds for %s", ErrTooFewCoordinates, g.Type)
	}
	return Envelope{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}, nil
}

// ToGeom converts g into a go-geom geometry in the XY layout. Any z
// ordinate is dropped. Positions with fewer than two ordinates cannot be
// represented and produce ErrTooFewCoordinates.
func (g *Geometry) ToGeom() (geom.T, error) {
	if g == nil {
		return nil, ErrNilGeometry
	}

	switch g.Type {
	case TypePoint:
		c, err := toCoord(g.Point)
		if err != nil {
			return nil, err
		}
		p, err := geom.NewPoint(geom.XY).SetCoords(c)
		if err != nil {
			return nil, err
		}
		return p, nil
	case TypeLineString:
		cs, err := toCoords(g.Points)
		if err != nil {
			return nil, err
		}
		ls, err := geom.NewLineString(geom.XY).SetCoords(cs)
		if err != nil {
			return nil, err
		}
		return ls, nil
	case TypeMultiPoint:
		cs, err := toCoords(g.Points)
		if err != nil {
			return nil, err
		}
		mp, err := geom.NewMultiPoint(geom.XY).SetCoords(cs)
		if err != nil {
			return nil, err
		}
		return mp, nil
	case TypePolygon:
		css, err := toCoordss(g.Lines)
		if err != nil {
			return nil, err
		}
		p, err := geom.NewPolygon(geom.XY).SetCoords(css)
		if err != nil {
			return nil, err
		}
		return p, nil
	case TypeMultiLineString:
		css, err := toCoordss(g.Lines)
		if err != nil {
			return nil, err
		}
		mls, err := geom.NewMultiLineString(geom.XY).SetCoords(css)
		if err != nil {
			return nil, err
		}
		return mls, nil
	case TypeMultiPolygon:
		csss := make([][][]geom.Coord, len(g.Polygons))
		for i, poly := range g.Polygons {
			css, err := toCoordss(poly)
			if err != nil {
				return nil, err
			}
			csss[i] = css
		}
		mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(csss)
		if err != nil {
			return nil, err
		}
		return mp, nil
	case TypeGeometryCollection:
		gc := geom.NewGeometryCollection()
		for _, m := range g.Geometries {
			t, err := m.ToGeom()
			if err != nil {
				return nil, err
			}
			if err := gc.Push(t); err != nil {
				return nil, err
			}
		}
		return gc, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, g.Type)
}

func toCoord(p Position) (geom.Coord, error) {
	if len(p) < 2 {
		return nil, fmt.Errorf("%w: position has %d ordinates", ErrTooFewCoordinates, len(p))
	}
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return nil, fmt.Errorf("geo: NaN ordinate in position %v", p)
	}
	return geom.Coord{p[0], p[1]}, nil
}

func toCoords(ps []Position) ([]geom.Coord, error) {
	cs := make([]geom.Coord, len(ps))
	for i, p := range ps {
		c, err := toCoord(p)
		if err != nil {
			return nil, err
		}
		cs[i] = c
	}
	return cs, nil
}

func toCoordss(lines [][]Position) ([][]geom.Coord, error) {
	css := make([][]geom.Coord, len(lines))
	for i, l := range lines {
		cs, err := toCoords(l)
		if err != nil {
			return nil, err
		}
		css[i] = cs
	}
	return css, nil
}
