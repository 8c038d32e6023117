package topology

import (
	"fmt"

	"github.com/bsaid97/go-topology-engine/geo"
)

// Minimum position counts per geometry kind.
const (
	minLinePositions = 2
	minRingPositions = 4
	minOrdinates     = 2
)

type fault struct {
	errType ErrorType
	detail  string
	fix     *SuggestedFix
}

// structure reports the first structural fault of every feature. These
// checks never consult the kernel.
func (ev *evaluator) structure(rule Rule) []TopologyError {
	var errs []TopologyError
	for _, i := range ev.layer(rule.Parameters.LayerName) {
		flt := structuralFault(ev.features[i].Geometry)
		if flt == nil {
			continue
		}
		te := ev.newError(i, flt.errType, SeverityError, fmt.Sprintf("feature %d: %s", i, flt.detail))
		te.CanAutoFix = flt.fix != nil
		te.SuggestedFix = flt.fix
		errs = append(errs, te)
	}
	return errs
}

func structuralFault(g *geo.Geometry) *fault {
	if g == nil {
		return &fault{errType: ErrorMissingGeometry, detail: "geometry is missing"}
	}
	if !g.Type.Known() {
		return &fault{errType: ErrorInvalidGeometryType, detail: fmt.Sprintf("unsupported geometry type %q", g.Type)}
	}
	if g.IsEmpty() {
		return &fault{errType: ErrorEmptyGeometry, detail: fmt.Sprintf("%s has no coordinates", g.Type)}
	}

	switch g.Type {
	case geo.TypePoint:
		return positionFault(g.Point)
	case geo.TypeLineString:
		return lineFault(g.Points, "LineString")
	case geo.TypeMultiPoint:
		for k, p := range g.Points {
			if flt := positionFault(p); flt != nil {
				flt.detail = fmt.Sprintf("member %d: %s", k, flt.detail)
				return flt
			}
		}
	case geo.TypePolygon:
		return polygonFault(0, g.Lines)
	case geo.TypeMultiLineString:
		for k, l := range g.Lines {
			if len(l) == 0 {
				return &fault{errType: ErrorEmptyGeometry, detail: fmt.Sprintf("member %d of MultiLineString is empty", k)}
			}
			if flt := lineFault(l, fmt.Sprintf("member %d", k)); flt != nil {
				return flt
			}
		}
	case geo.TypeMultiPolygon:
		for k, p := range g.Polygons {
			if len(p) == 0 {
				return &fault{errType: ErrorEmptyGeometry, detail: fmt.Sprintf("member %d of MultiPolygon is empty", k)}
			}
			if flt := polygonFault(k, p); flt != nil {
				return flt
			}
		}
	case geo.TypeGeometryCollection:
		for k, m := range g.Geometries {
			if flt := structuralFault(m); flt != nil {
				flt.detail = fmt.Sprintf("member %d: %s", k, flt.detail)
				flt.fix = nil
				return flt
			}
		}
	}

	return nil
}

func positionFault(p geo.Position) *fault {
	if len(p) < minOrdinates {
		return &fault{
			errType: ErrorTooFewCoordinates,
			detail:  fmt.Sprintf("position has %d ordinates, need %d", len(p), minOrdinates),
		}
	}
	return nil
}

func lineFault(ps []geo.Position, name string) *fault {
	if len(ps) < minLinePositions {
		return &fault{
			errType: ErrorTooFewCoordinates,
			detail:  fmt.Sprintf("%s has %d positions, need at least %d", name, len(ps), minLinePositions),
		}
	}
	for _, p := range ps {
		if flt := positionFault(p); flt != nil {
			return flt
		}
	}
	return nil
}

func polygonFault(polygonIndex int, rings [][]geo.Position) *fault {
	for r, ring := range rings {
		if len(ring) == 0 {
			return &fault{errType: ErrorEmptyGeometry, detail: fmt.Sprintf("ring %d is empty", r)}
		}
		if len(ring) < minRingPositions {
			return &fault{
				errType: ErrorTooFewCoordinates,
				detail:  fmt.Sprintf("ring %d has %d positions, need at least %d", r, len(ring), minRingPositions),
			}
		}
		for _, p := range ring {
			if flt := positionFault(p); flt != nil {
				return flt
			}
		}
		if !samePoint(ring[0], ring[len(ring)-1]) {
			return &fault{
				errType: ErrorUnclosedRing,
				detail:  fmt.Sprintf("ring %d is not closed", r),
				fix: &SuggestedFix{
					Action: ActionCloseRing,
					Ring:   &RingParams{PolygonIndex: polygonIndex, RingIndex: r},
				},
			}
		}
	}
	return nil
}

// samePoint compares the x and y ordinates only.
func samePoint(a, b geo.Position) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	return a[0] == b[0] && a[1] == b[1]
}
