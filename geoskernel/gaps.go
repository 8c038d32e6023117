package geoskernel

import (
	"sort"

	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-topology-engine/geo"
	"github.com/bsaid97/go-topology-engine/topology"
	"github.com/bsaid97/go-topology-engine/utils"
)

// DetectGaps reports two kinds of uncovered area:
//
//   - holes of the dissolved layer that touch at least two polygons, and
//   - slivers between polygon pairs that do not touch but come within
//     tolerance of each other.
//
// Holes are reported first, in the order GEOS returns them, followed by
// slivers in pair order. Adjacent lists are ascending.
func (k *Kernel) DetectGaps(polygons []*geo.Geometry, tolerance float64) ([]topology.Gap, error) {
	var gaps []topology.Gap
	err := k.guard("detect-gaps", func() error {
		geoms, err := toGeosAll(polygons)
		if err != nil {
			return err
		}
		defer destroyAll(geoms)
		for i, g := range geoms {
			geoms[i] = valid(g)
			if geoms[i] != g {
				g.Destroy()
			}
		}

		index := utils.NewSpatialIndexFor(envelopes(geoms))
		for i, g := range geoms {
			index.Add(i, envelopeOf(g))
		}

		holes, err := k.enclosedGaps(geoms, index, tolerance)
		if err != nil {
			return err
		}
		defer destroyAll(holes.geoms)
		gaps = append(gaps, holes.gaps...)

		slivers := k.sliverGaps(geoms, index, holes.geoms, tolerance)
		gaps = append(gaps, slivers...)

		k.log.Debug().
			Int("polygons", len(polygons)).
			Int("holes", len(holes.gaps)).
			Int("slivers", len(slivers)).
			Msg("Gap detection complete")
		return nil
	})
	return gaps, err
}

type holeSet struct {
	gaps  []topology.Gap
	geoms []*geos.Geom
}

func (k *Kernel) enclosedGaps(geoms []*geos.Geom, index *utils.SpatialIndex, tolerance float64) (holeSet, error) {
	var out holeSet

	dissolved := cascadedUnion(geoms)
	if dissolved == nil {
		return out, nil
	}
	defer dissolved.Destroy()

	for p := 0; p < dissolved.NumGeometries(); p++ {
		part := dissolved.Geometry(p)
		if part.TypeID() != geos.TypeIDPolygon {
			continue
		}
		for r := 0; r < part.NumInteriorRings(); r++ {
			hole := geos.NewPolygon([][][]float64{ringCoords(part.InteriorRing(r))})
			if hole.Area() <= tolerance*tolerance {
				hole.Destroy()
				continue
			}

			adjacent := within(hole, geoms, index, tolerance)
			if len(adjacent) < 2 {
				hole.Destroy()
				continue
			}

			g, err := fromGeos(hole)
			if err != nil {
				hole.Destroy()
				destroyAll(out.geoms)
				return holeSet{}, err
			}
			out.gaps = append(out.gaps, topology.Gap{Geometry: g, Adjacent: adjacent})
			out.geoms = append(out.geoms, hole)
		}
	}
	return out, nil
}

// sliverGaps finds the strip between two polygons that come within
// tolerance of each other without touching: the overlap of both buffers
// minus the polygons themselves.
func (k *Kernel) sliverGaps(geoms []*geos.Geom, index *utils.SpatialIndex, holes []*geos.Geom, tolerance float64) []topology.Gap {
	var gaps []topology.Gap
	for i, gi := range geoms {
		for _, j := range index.Query(envelopeOf(gi).Expand(tolerance)) {
			if j <= i {
				continue
			}
			gj := geoms[j]
			d := gi.Distance(gj)
			if d == 0 || d > tolerance {
				continue
			}

			sliver := between(gi, gj, tolerance)
			if sliver == nil {
				continue
			}
			if sliver.Area() <= 0 || touchesAny(sliver, holes) {
				sliver.Destroy()
				continue
			}

			g, err := fromGeos(sliver)
			sliver.Destroy()
			if err != nil {
				k.log.Debug().Err(err).Int("a", i).Int("b", j).Msg("Skipping sliver")
				continue
			}
			gaps = append(gaps, topology.Gap{Geometry: g, Adjacent: []int{i, j}})
		}
	}
	return gaps
}

func between(a, b *geos.Geom, tolerance float64) *geos.Geom {
	bufferA := a.Buffer(tolerance, 4)
	defer bufferA.Destroy()
	bufferB := b.Buffer(tolerance, 4)
	defer bufferB.Destroy()

	area := bufferA.Intersection(bufferB)
	if area == nil {
		return nil
	}
	defer area.Destroy()

	both := a.Union(b)
	defer both.Destroy()

	return area.Difference(both)
}

// within lists, ascending, the polygons no farther than tolerance from g.
func within(g *geos.Geom, geoms []*geos.Geom, index *utils.SpatialIndex, tolerance float64) []int {
	var out []int
	for _, i := range index.Query(envelopeOf(g).Expand(tolerance)) {
		if g.Distance(geoms[i]) <= tolerance {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func touchesAny(g *geos.Geom, others []*geos.Geom) bool {
	for _, o := range others {
		if g.Intersects(o) {
			return true
		}
	}
	return false
}

func ringCoords(ring *geos.Geom) [][]float64 {
	cs := ring.CoordSeq()
	coords := make([][]float64, cs.Size())
	for j := range cs.Size() {
		coords[j] = []float64{cs.X(j), cs.Y(j)}
	}
	return coords
}

func envelopeOf(g *geos.Geom) geo.Envelope {
	b := g.Bounds()
	return geo.Envelope{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

func envelopes(gs []*geos.Geom) []geo.Envelope {
	out := make([]geo.Envelope, len(gs))
	for i, g := range gs {
		out[i] = envelopeOf(g)
	}
	return out
}
