package geoskernel

import (
	"strings"

	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-topology-engine/geo"
)

// SelfIntersects uses the GEOS validity reason for polygons and simplicity
// for lines. GEOS decides both exactly, so tolerance is not consulted.
func (k *Kernel) SelfIntersects(g *geo.Geometry, tolerance float64) (bool, error) {
	var hit bool
	err := k.guard("self-intersects", func() error {
		gg, err := toGeos(g)
		if err != nil {
			return err
		}
		defer gg.Destroy()

		switch {
		case g.Type.IsPolygonal():
			if gg.IsValid() {
				return nil
			}
			hit = strings.Contains(strings.ToLower(gg.IsValidReason()), "self-intersection")
		case g.Type.IsLineal():
			hit = !gg.IsSimple()
		}
		return nil
	})
	return hit, err
}

// Overlaps measures the shared area of a and b. Invalid inputs are made
// valid first so the intersection does not fail on them.
func (k *Kernel) Overlaps(a, b *geo.Geometry, tolerance float64) (bool, error) {
	var hit bool
	err := k.binary("overlaps", a, b, func(ga, gb *geos.Geom) error {
		if !ga.Intersects(gb) {
			return nil
		}
		va, vb := valid(ga), valid(gb)
		defer release(va, ga)
		defer release(vb, gb)

		shared := va.Intersection(vb)
		if shared == nil {
			return ErrEmptyResult
		}
		defer shared.Destroy()
		hit = shared.Area() > tolerance*tolerance
		return nil
	})
	return hit, err
}

func (k *Kernel) Covers(a, b *geo.Geometry) (bool, error) {
	var ok bool
	err := k.binary("covers", a, b, func(ga, gb *geos.Geom) error {
		ok = ga.Covers(gb)
		return nil
	})
	return ok, err
}

// Simplify runs Douglas-Peucker at tolerance over a valid copy of g and
// rebuilds the result with MakeValid when it comes out invalid.
func (k *Kernel) Simplify(g *geo.Geometry, tolerance float64) (*geo.Geometry, error) {
	var out *geo.Geometry
	err := k.guard("simplify", func() error {
		gg, err := toGeos(g)
		if err != nil {
			return err
		}
		defer gg.Destroy()

		// GEOS drops lobes when simplifying an invalid polygon.
		v := valid(gg)
		defer release(v, gg)

		simplified := v.Simplify(tolerance)
		if simplified == nil {
			return ErrEmptyResult
		}
		if !simplified.IsValid() {
			k.log.Debug().Str("reason", simplified.IsValidReason()).Msg("Simplified geometry still invalid, making valid")
			repaired := simplified.MakeValidWithParams(geos.MakeValidStructure, geos.MakeValidDiscardCollapsed)
			simplified.Destroy()
			if repaired == nil {
				return ErrEmptyResult
			}
			simplified = repaired
		}
		defer simplified.Destroy()

		out, err = fromGeos(simplified)
		return err
	})
	return out, err
}

func (k *Kernel) Difference(a, b *geo.Geometry) (*geo.Geometry, error) {
	return k.construct("difference", a, b, func(ga, gb *geos.Geom) *geos.Geom {
		va, vb := valid(ga), valid(gb)
		defer release(va, ga)
		defer release(vb, gb)
		return va.Difference(vb)
	})
}

func (k *Kernel) Union(a, b *geo.Geometry) (*geo.Geometry, error) {
	return k.construct("union", a, b, func(ga, gb *geos.Geom) *geos.Geom {
		va, vb := valid(ga), valid(gb)
		defer release(va, ga)
		defer release(vb, gb)
		return va.Union(vb)
	})
}

// valid returns g itself when it is valid, otherwise a repaired copy.
func valid(g *geos.Geom) *geos.Geom {
	if g.IsValid() {
		return g
	}
	if repaired := g.MakeValidWithParams(geos.MakeValidStructure, geos.MakeValidDiscardCollapsed); repaired != nil {
		return repaired
	}
	return g
}

// release destroys v when it is a copy made by valid.
func release(v, original *geos.Geom) {
	if v != original {
		v.Destroy()
	}
}
