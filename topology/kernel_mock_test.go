package topology_test

import (
	"github.com/bsaid97/go-topology-engine/geo"
	"github.com/bsaid97/go-topology-engine/topology"
)

// KernelMock answers every call with the matching func field, or with a
// negative answer when the field is nil.
type KernelMock struct {
	SelfIntersectsFunc func(g *geo.Geometry, tolerance float64) (bool, error)
	OverlapsFunc       func(a, b *geo.Geometry, tolerance float64) (bool, error)
	DetectGapsFunc     func(polygons []*geo.Geometry, tolerance float64) ([]topology.Gap, error)
	DetectDanglesFunc  func(line *geo.Geometry, network []*geo.Geometry, tolerance float64) ([]topology.Dangle, error)
	SimplifyFunc       func(g *geo.Geometry, tolerance float64) (*geo.Geometry, error)
	DifferenceFunc     func(a, b *geo.Geometry) (*geo.Geometry, error)
	UnionFunc          func(a, b *geo.Geometry) (*geo.Geometry, error)
	CoversFunc         func(a, b *geo.Geometry) (bool, error)

	calls map[string]int
}

func (k *KernelMock) count(name string) {
	if k.calls == nil {
		k.calls = map[string]int{}
	}
	k.calls[name]++
}

func (k *KernelMock) SelfIntersects(g *geo.Geometry, tolerance float64) (bool, error) {
	k.count("SelfIntersects")
	if k.SelfIntersectsFunc == nil {
		return false, nil
	}
	return k.SelfIntersectsFunc(g, tolerance)
}

func (k *KernelMock) Overlaps(a, b *geo.Geometry, tolerance float64) (bool, error) {
	k.count("Overlaps")
	if k.OverlapsFunc == nil {
		return false, nil
	}
	return k.OverlapsFunc(a, b, tolerance)
}

func (k *KernelMock) DetectGaps(polygons []*geo.Geometry, tolerance float64) ([]topology.Gap, error) {
	k.count("DetectGaps")
	if k.DetectGapsFunc == nil {
		return nil, nil
	}
	return k.DetectGapsFunc(polygons, tolerance)
}

func (k *KernelMock) DetectDangles(line *geo.Geometry, network []*geo.Geometry, tolerance float64) ([]topology.Dangle, error) {
	k.count("DetectDangles")
	if k.DetectDanglesFunc == nil {
		return nil, nil
	}
	return k.DetectDanglesFunc(line, network, tolerance)
}

func (k *KernelMock) Simplify(g *geo.Geometry, tolerance float64) (*geo.Geometry, error) {
	k.count("Simplify")
	if k.SimplifyFunc == nil {
		return g.Clone(), nil
	}
	return k.SimplifyFunc(g, tolerance)
}

func (k *KernelMock) Difference(a, b *geo.Geometry) (*geo.Geometry, error) {
	k.count("Difference")
	if k.DifferenceFunc == nil {
		return a.Clone(), nil
	}
	return k.DifferenceFunc(a, b)
}

func (k *KernelMock) Union(a, b *geo.Geometry) (*geo.Geometry, error) {
	k.count("Union")
	if k.UnionFunc == nil {
		return a.Clone(), nil
	}
	return k.UnionFunc(a, b)
}

func (k *KernelMock) Covers(a, b *geo.Geometry) (bool, error) {
	k.count("Covers")
	if k.CoversFunc == nil {
		return false, nil
	}
	return k.CoversFunc(a, b)
}

func square(x, y, size float64) *geo.Geometry {
	return geo.NewPolygon([][]geo.Position{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}})
}

func feature(g *geo.Geometry, props map[string]any) *geo.Feature {
	if props == nil {
		props = map[string]any{}
	}
	return &geo.Feature{Geometry: g, Properties: props}
}

func collection(features ...*geo.Feature) *geo.Document {
	return geo.NewFeatureCollection(features)
}
