package geoskernel

import (
	"fmt"

	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-topology-engine/geo"
	"github.com/bsaid97/go-topology-engine/topology"
	"github.com/bsaid97/go-topology-engine/utils"
)

// DetectDangles checks the two endpoints of every part of line. An endpoint
// is connected when it lies within tolerance of a network line, of another
// part of line, or of its own part beyond the first segment. A part whose
// ends meet is connected at both ends.
func (k *Kernel) DetectDangles(line *geo.Geometry, network []*geo.Geometry, tolerance float64) ([]topology.Dangle, error) {
	if line == nil || !line.Type.IsLineal() {
		return nil, fmt.Errorf("%w: dangles need a line, got %v", geo.ErrUnsupportedType, typeOf(line))
	}

	var dangles []topology.Dangle
	err := k.guard("detect-dangles", func() error {
		targets, err := toGeosAll(network)
		if err != nil {
			return err
		}
		parts := line.Parts()
		partGeoms, err := toGeosAll(parts)
		if err != nil {
			destroyAll(targets)
			return err
		}
		defer destroyAll(targets)
		defer destroyAll(partGeoms)

		// Targets first, then the parts of line, so a part can find its
		// siblings through the same index.
		all := append(append([]*geos.Geom{}, targets...), partGeoms...)
		envs, err := lineEnvelopes(append(append([]*geo.Geometry{}, network...), parts...))
		if err != nil {
			return err
		}
		index := utils.NewSpatialIndexFor(envs)
		for i, env := range envs {
			index.Add(i, env)
		}

		for p, part := range parts {
			self := len(targets) + p
			for _, end := range endpoints(part.Points) {
				connected, err := k.connected(end.coord, part.Points, end.index, all, self, index, tolerance)
				if err != nil {
					return err
				}
				if !connected {
					dangles = append(dangles, topology.Dangle{
						Coordinate:    end.coord.Clone(),
						PartIndex:     p,
						PositionIndex: end.index,
					})
				}
			}
		}
		return nil
	})
	return dangles, err
}

type endpoint struct {
	coord geo.Position
	index int
}

// endpoints yields start and end of a line, or nothing when the line is
// closed or too short to have two ends.
func endpoints(points []geo.Position) []endpoint {
	n := len(points)
	if n < 2 {
		return nil
	}
	first, last := points[0], points[n-1]
	if first.Equal(last) {
		return nil
	}
	return []endpoint{{coord: first, index: 0}, {coord: last, index: n - 1}}
}

func (k *Kernel) connected(coord geo.Position, points []geo.Position, at int, all []*geos.Geom, self int, index *utils.SpatialIndex, tolerance float64) (bool, error) {
	point := geo.NewPoint(coord)
	env, err := point.Envelope()
	if err != nil {
		return false, err
	}
	pt, err := toGeos(point)
	if err != nil {
		return false, err
	}
	defer pt.Destroy()

	for _, i := range index.Query(env.Expand(tolerance)) {
		if i == self {
			continue
		}
		if pt.Distance(all[i]) <= tolerance {
			return true, nil
		}
	}

	rest := remainder(points, at)
	if len(rest) < 2 {
		return false, nil
	}
	tail, err := toGeos(geo.NewLineString(rest))
	if err != nil {
		return false, err
	}
	defer tail.Destroy()
	return pt.Distance(tail) <= tolerance, nil
}

// lineEnvelopes bounds the input lines through go-geom, in the order the
// GEOS copies are indexed.
func lineEnvelopes(lines []*geo.Geometry) ([]geo.Envelope, error) {
	envs := make([]geo.Envelope, len(lines))
	for i, l := range lines {
		env, err := l.Envelope()
		if err != nil {
			return nil, err
		}
		envs[i] = env
	}
	return envs, nil
}

// remainder drops the segment that starts or ends at position at.
func remainder(points []geo.Position, at int) []geo.Position {
	if at == 0 {
		if len(points) < 3 {
			return nil
		}
		return points[2:]
	}
	if len(points) < 3 {
		return nil
	}
	return points[:len(points)-2]
}

func typeOf(g *geo.Geometry) string {
	if g == nil {
		return "nothing"
	}
	return string(g.Type)
}
