// Package geo holds the GeoJSON data model the topology engine works on:
// positions, the geometry tagged variant, features and input documents.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNilGeometry       = errors.New("geo: nil geometry")
	ErrUnsupportedType   = errors.New("geo: unsupported geometry type")
	ErrTooFewCoordinates = errors.New("geo: too few coordinates")
)

type GeometryType string

const (
	TypePoint              GeometryType = "Point"
	TypeLineString         GeometryType = "LineString"
	TypePolygon            GeometryType = "Polygon"
	TypeMultiPoint         GeometryType = "MultiPoint"
	TypeMultiLineString    GeometryType = "MultiLineString"
	TypeMultiPolygon       GeometryType = "MultiPolygon"
	TypeGeometryCollection GeometryType = "GeometryCollection"
)

// Known reports whether t is one of the seven GeoJSON geometry types.
func (t GeometryType) Known() bool {
	switch t {
	case TypePoint, TypeLineString, TypePolygon,
		TypeMultiPoint, TypeMultiLineString, TypeMultiPolygon, TypeGeometryCollection:
		return true
	}
	return false
}

// IsMulti reports whether t denotes a multi-part variant.
func (t GeometryType) IsMulti() bool {
	switch t {
	case TypeMultiPoint, TypeMultiLineString, TypeMultiPolygon, TypeGeometryCollection:
		return true
	}
	return false
}

func (t GeometryType) IsPolygonal() bool {
	return t == TypePolygon || t == TypeMultiPolygon
}

func (t GeometryType) IsLineal() bool {
	return t == TypeLineString || t == TypeMultiLineString
}

func (t GeometryType) IsPuntal() bool {
	return t == TypePoint || t == TypeMultiPoint
}

// Position is a single coordinate tuple: x, y and an optional z.
type Position []float64

// Equal compares every ordinate of p and o.
func (p Position) Equal(o Position) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Position) Clone() Position {
	if p == nil {
		return nil
	}
	return append(Position(nil), p...)
}

// Geometry is a GeoJSON geometry. Exactly one coordinate field is
// populated, selected by Type:
//
//	Point                    -> Point
//	LineString, MultiPoint   -> Points
//	Polygon, MultiLineString -> Lines (rings or member lines)
//	MultiPolygon             -> Polygons
//	GeometryCollection       -> Geometries
type Geometry struct {
	Type       GeometryType
	Point      Position
	Points     []Position
	Lines      [][]Position
	Polygons   [][][]Position
	Geometries []*Geometry
}

func NewPoint(p Position) *Geometry {
	return &Geometry{Type: TypePoint, Point: p}
}

func NewLineString(points []Position) *Geometry {
	return &Geometry{Type: TypeLineString, Points: points}
}

func NewPolygon(rings [][]Position) *Geometry {
	return &Geometry{Type: TypePolygon, Lines: rings}
}

func NewMultiPoint(points []Position) *Geometry {
	return &Geometry{Type: TypeMultiPoint, Points: points}
}

func NewMultiLineString(lines [][]Position) *Geometry {
	return &Geometry{Type: TypeMultiLineString, Lines: lines}
}

func NewMultiPolygon(polygons [][][]Position) *Geometry {
	return &Geometry{Type: TypeMultiPolygon, Polygons: polygons}
}

func NewGeometryCollection(members ...*Geometry) *Geometry {
	return &Geometry{Type: TypeGeometryCollection, Geometries: members}
}

// IsEmpty reports whether the coordinate container selected by Type holds
// nothing at all. Unknown types are always empty.
func (g *Geometry) IsEmpty() bool {
	if g == nil {
		return true
	}
	switch g.Type {
	case TypePoint:
		return len(g.Point) == 0
	case TypeLineString, TypeMultiPoint:
		return len(g.Points) == 0
	case TypePolygon, TypeMultiLineString:
		return len(g.Lines) == 0
	case TypeMultiPolygon:
		return len(g.Polygons) == 0
	case TypeGeometryCollection:
		return len(g.Geometries) == 0
	}
	return true
}

// Parts splits a multi-part geometry into its single-part members, in
// order. Single-part geometries yield a clone of themselves.
func (g *Geometry) Parts() []*Geometry {
	if g == nil {
		return nil
	}
	var parts []*Geometry
	switch g.Type {
	case TypeMultiPoint:
		for _, p := range g.Points {
			parts = append(parts, NewPoint(p.Clone()))
		}
	case TypeMultiLineString:
		for _, l := range g.Lines {
			parts = append(parts, NewLineString(clonePositions(l)))
		}
	case TypeMultiPolygon:
		for _, p := range g.Polygons {
			parts = append(parts, NewPolygon(cloneRings(p)))
		}
	case TypeGeometryCollection:
		for _, m := range g.Geometries {
			parts = append(parts, m.Clone())
		}
	default:
		parts = append(parts, g.Clone())
	}
	return parts
}

// Clone returns a deep copy of g.
func (g *Geometry) Clone() *Geometry {
	if g == nil {
		return nil
	}
	c := &Geometry{
		Type:  g.Type,
		Point: g.Point.Clone(),
	}
	if g.Points != nil {
		c.Points = clonePositions(g.Points)
	}
	if g.Lines != nil {
		c.Lines = cloneRings(g.Lines)
	}
	if g.Polygons != nil {
		c.Polygons = make([][][]Position, len(g.Polygons))
		for i, p := range g.Polygons {
			c.Polygons[i] = cloneRings(p)
		}
	}
	if g.Geometries != nil {
		c.Geometries = make([]*Geometry, len(g.Geometries))
		for i, m := range g.Geometries {
			c.Geometries[i] = m.Clone()
		}
	}
	return c
}

// Walk calls fn for every position of g, depth first, in document order.
func (g *Geometry) Walk(fn func(p Position)) {
	if g == nil {
		return
	}
	if len(g.Point) > 0 {
		fn(g.Point)
	}
	for _, p := range g.Points {
		fn(p)
	}
	for _, l := range g.Lines {
		for _, p := range l {
			fn(p)
		}
	}
	for _, poly := range g.Polygons {
		for _, ring := range poly {
			for _, p := range ring {
				fn(p)
			}
		}
	}
	for _, m := range g.Geometries {
		m.Walk(fn)
	}
}

func clonePositions(ps []Position) []Position {
	if ps == nil {
		return nil
	}
	c := make([]Position, len(ps))
	for i, p := range ps {
		c[i] = p.Clone()
	}
	return c
}

func cloneRings(rings [][]Position) [][]Position {
	if rings == nil {
		return nil
	}
	c := make([][]Position, len(rings))
	for i, r := range rings {
		c[i] = clonePositions(r)
	}
	return c
}

type rawGeometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Geometry     `json:"geometries,omitempty"`
}

// UnmarshalJSON decodes a GeoJSON geometry. Missing or null coordinates
// decode to an empty container and unknown type tags are kept as-is, so
// structural faults are left for validation to report.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw rawGeometry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*g = Geometry{Type: raw.Type}

	coords := raw.Coordinates
	if string(coords) == "null" {
		coords = nil
	}

	var err error
	switch raw.Type {
	case TypePoint:
		if coords != nil {
			err = json.Unmarshal(coords, &g.Point)
		}
	case TypeLineString, TypeMultiPoint:
		if coords != nil {
			err = json.Unmarshal(coords, &g.Points)
		}
	case TypePolygon, TypeMultiLineString:
		if coords != nil {
			err = json.Unmarshal(coords, &g.Lines)
		}
	case TypeMultiPolygon:
		if coords != nil {
			err = json.Unmarshal(coords, &g.Polygons)
		}
	case TypeGeometryCollection:
		g.Geometries = raw.Geometries
	}
	if err != nil {
		return fmt.Errorf("decoding %s coordinates: %w", raw.Type, err)
	}

	return nil
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	type collection struct {
		Type       GeometryType `json:"type"`
		Geometries []*Geometry  `json:"geometries"`
	}
	type simple struct {
		Type        GeometryType `json:"type"`
		Coordinates any          `json:"coordinates,omitempty"`
	}

	switch g.Type {
	case TypeGeometryCollection:
		members := g.Geometries
		if members == nil {
			members = []*Geometry{}
		}
		return json.Marshal(collection{Type: g.Type, Geometries: members})
	case TypePoint:
		p := g.Point
		if p == nil {
			p = Position{}
		}
		return json.Marshal(simple{Type: g.Type, Coordinates: p})
	case TypeLineString, TypeMultiPoint:
		ps := g.Points
		if ps == nil {
			ps = []Position{}
		}
		return json.Marshal(simple{Type: g.Type, Coordinates: ps})
	case TypePolygon, TypeMultiLineString:
		ls := g.Lines
		if ls == nil {
			ls = [][]Position{}
		}
		return json.Marshal(simple{Type: g.Type, Coordinates: ls})
	case TypeMultiPolygon:
		ps := g.Polygons
		if ps == nil {
			ps = [][][]Position{}
		}
		return json.Marshal(simple{Type: g.Type, Coordinates: ps})
	}

	return json.Marshal(simple{Type: g.Type})
}
