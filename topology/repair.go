package topology

import (
	"errors"
	"fmt"

	"github.com/bsaid97/go-topology-engine/geo"
)

var (
	errNoRepairAction      = errors.New("no repair action for error type")
	errUnsupportedGeometry = errors.New("unsupported geometry for repair")
	errMissingParameters   = errors.New("suggested fix parameters missing")
)

// Repair applies one fix per candidate error, in input order, to a deep
// copy of doc. Candidates are all errs when FixAll is set or
// OnlyAutoFixable is unset, otherwise only the auto-fixable ones.
//
// Repair is best effort: a failed action is logged and the batch goes on,
// and nothing is rolled back. Errors whose feature has already been
// replaced by an earlier split in the same batch are skipped. The result
// is re-validated against must_be_valid only and is always returned as a
// FeatureCollection.
func (e *Engine) Repair(doc *geo.Document, errs []TopologyError, opts Options) (*RepairResult, error) {
	features, err := ExtractFeatures(doc.Clone())
	if err != nil {
		return nil, err
	}

	ar := newArena(features)
	result := &RepairResult{RepairLog: []string{}}

	for _, te := range candidates(errs, opts) {
		line, err := e.apply(ar, te, opts)
		switch {
		case errors.Is(err, errHandleRetired):
			result.SkippedCount++
			line = fmt.Sprintf("Skipped %s on feature %d: %v", te.ErrorType, te.FeatureIndex, err)
			e.log.Warn().Str("errorType", string(te.ErrorType)).Int("featureIndex", te.FeatureIndex).Msg(line)
		case err != nil:
			result.FailedCount++
			line = fmt.Sprintf("Failed to repair %s on feature %d: %v", te.ErrorType, te.FeatureIndex, err)
			e.log.Warn().Str("errorType", string(te.ErrorType)).Int("featureIndex", te.FeatureIndex).Msg(line)
		default:
			result.FixedCount++
			e.log.Debug().Str("errorType", string(te.ErrorType)).Int("featureIndex", te.FeatureIndex).Msg(line)
		}
		result.RepairLog = append(result.RepairLog, line)
	}

	repaired := ar.features()
	result.RepairedData = geo.NewFeatureCollection(repaired)
	result.Report = buildReport(e.evaluate(repaired, []Rule{{Type: RuleMustBeValid}}, opts))

	e.log.Info().
		Int("fixed", result.FixedCount).
		Int("failed", result.FailedCount).
		Int("skipped", result.SkippedCount).
		Int("remaining", result.Report.ErrorCount).
		Msg("Repair batch complete")

	return result, nil
}

func candidates(errs []TopologyError, opts Options) []TopologyError {
	if opts.FixAll || !opts.OnlyAutoFixable {
		return errs
	}
	out := make([]TopologyError, 0, len(errs))
	for _, te := range errs {
		if te.CanAutoFix {
			out = append(out, te)
		}
	}
	return out
}

func (e *Engine) apply(ar *arena, te TopologyError, opts Options) (line string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("repair panicked: %v", r)
		}
	}()

	switch te.ErrorType {
	case ErrorSelfIntersection:
		return e.repairSelfIntersection(ar, te, opts)
	case ErrorOverlap:
		return e.repairOverlap(ar, te)
	case ErrorGap:
		return e.repairGap(ar, te)
	case ErrorDangle:
		return repairDangle(ar, te)
	case ErrorMultipartGeometry:
		return splitMultipart(ar, te)
	case ErrorUnclosedRing:
		return closeRing(ar, te)
	}

	return "", fmt.Errorf("%w: %s", errNoRepairAction, te.ErrorType)
}

func (e *Engine) repairSelfIntersection(ar *arena, te TopologyError, opts Options) (string, error) {
	f, err := ar.live(te.FeatureIndex)
	if err != nil {
		return "", err
	}
	if f.Geometry == nil {
		return "", fmt.Errorf("%w: missing geometry", errUnsupportedGeometry)
	}

	tol := opts.tolerance()
	if fix := te.SuggestedFix; fix != nil && fix.SelfIntersection != nil && fix.SelfIntersection.Tolerance > 0 {
		tol = fix.SelfIntersection.Tolerance
	}

	simplified, err := e.kernel.Simplify(f.Geometry, tol)
	if err != nil {
		return "", err
	}
	if simplified == nil {
		return "", errors.New("kernel returned no geometry")
	}
	f.Geometry = simplified

	return fmt.Sprintf("Repaired self-intersection on feature %d (simplify, tolerance %g)", te.FeatureIndex, tol), nil
}

// repairOverlap trims only the lower indexed feature of the pair.
func (e *Engine) repairOverlap(ar *arena, te TopologyError) (string, error) {
	if te.SuggestedFix == nil || te.SuggestedFix.Overlap == nil {
		return "", fmt.Errorf("%w: overlap needs the other feature index", errMissingParameters)
	}
	subject, err := ar.live(te.FeatureIndex)
	if err != nil {
		return "", err
	}
	otherIndex := te.SuggestedFix.Overlap.OtherFeatureIndex
	other, err := ar.lookup(otherIndex)
	if err != nil {
		return "", err
	}
	if subject.Geometry == nil || other.Geometry == nil {
		return "", fmt.Errorf("%w: missing geometry", errUnsupportedGeometry)
	}

	trimmed, err := e.kernel.Difference(subject.Geometry, other.Geometry)
	if err != nil {
		return "", err
	}
	if trimmed == nil {
		return "", errors.New("kernel returned no geometry")
	}
	subject.Geometry = trimmed

	return fmt.Sprintf("Trimmed overlap of feature %d with feature %d", te.FeatureIndex, otherIndex), nil
}

// repairGap merges the gap into the first adjacent feature that is still
// live and polygonal.
func (e *Engine) repairGap(ar *arena, te TopologyError) (string, error) {
	if te.SuggestedFix == nil || te.SuggestedFix.Gap == nil {
		return "", fmt.Errorf("%w: gap needs adjacent features", errMissingParameters)
	}
	params := te.SuggestedFix.Gap
	gap := params.Gap
	if gap == nil {
		gap = te.Geometry
	}
	if gap == nil {
		return "", fmt.Errorf("%w: gap geometry", errMissingParameters)
	}

	for _, idx := range params.AdjacentFeatures {
		f, err := ar.live(idx)
		if err != nil || f.Geometry == nil || !f.Geometry.Type.IsPolygonal() {
			continue
		}
		merged, err := e.kernel.Union(f.Geometry, gap)
		if err != nil {
			return "", err
		}
		if merged == nil {
			return "", errors.New("kernel returned no geometry")
		}
		f.Geometry = merged
		return fmt.Sprintf("Filled gap into feature %d", idx), nil
	}

	return "", fmt.Errorf("no resolvable adjacent feature among %v", params.AdjacentFeatures)
}

// repairDangle drops the dangling endpoint of a plain LineString.
func repairDangle(ar *arena, te TopologyError) (string, error) {
	if te.SuggestedFix == nil || te.SuggestedFix.Dangle == nil {
		return "", fmt.Errorf("%w: dangle needs a coordinate", errMissingParameters)
	}
	f, err := ar.live(te.FeatureIndex)
	if err != nil {
		return "", err
	}
	g := f.Geometry
	if g == nil || g.Type != geo.TypeLineString {
		return "", fmt.Errorf("%w: dangles are only removed from LineString features", errUnsupportedGeometry)
	}

	d := te.SuggestedFix.Dangle
	n := len(g.Points)
	switch {
	case n == 0:
		return "", fmt.Errorf("%w: line has no positions", errUnsupportedGeometry)
	case d.PositionIndex == 0 && samePoint(g.Points[0], d.Coordinate):
		g.Points = append([]geo.Position(nil), g.Points[1:]...)
	case d.PositionIndex > 0 && samePoint(g.Points[n-1], d.Coordinate):
		g.Points = append([]geo.Position(nil), g.Points[:n-1]...)
	default:
		return "", fmt.Errorf("dangling coordinate %v is no longer a line end", []float64(d.Coordinate))
	}

	return fmt.Sprintf("Removed dangling endpoint %v from feature %d", []float64(d.Coordinate), te.FeatureIndex), nil
}

// splitMultipart replaces the feature by one single-part feature per
// member, each with a copy of the original properties.
func splitMultipart(ar *arena, te TopologyError) (string, error) {
	f, err := ar.live(te.FeatureIndex)
	if err != nil {
		return "", err
	}
	if f.Geometry == nil || !f.Geometry.Type.IsMulti() {
		return "", fmt.Errorf("%w: feature is not multi-part", errUnsupportedGeometry)
	}

	parts := f.Geometry.Parts()
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %s has no members", errUnsupportedGeometry, f.Geometry.Type)
	}

	replacements := make([]*geo.Feature, len(parts))
	for i, part := range parts {
		replacements[i] = &geo.Feature{
			Geometry:   part,
			Properties: geo.CloneProperties(f.Properties),
		}
	}
	if err := ar.retire(te.FeatureIndex, replacements); err != nil {
		return "", err
	}

	return fmt.Sprintf("Split feature %d into %d single-part features", te.FeatureIndex, len(parts)), nil
}

func closeRing(ar *arena, te TopologyError) (string, error) {
	if te.SuggestedFix == nil || te.SuggestedFix.Ring == nil {
		return "", fmt.Errorf("%w: ring reference", errMissingParameters)
	}
	f, err := ar.live(te.FeatureIndex)
	if err != nil {
		return "", err
	}
	g := f.Geometry
	if g == nil {
		return "", fmt.Errorf("%w: missing geometry", errUnsupportedGeometry)
	}

	p := te.SuggestedFix.Ring
	var rings [][]geo.Position
	switch {
	case g.Type == geo.TypePolygon && p.PolygonIndex == 0:
		rings = g.Lines
	case g.Type == geo.TypeMultiPolygon && p.PolygonIndex >= 0 && p.PolygonIndex < len(g.Polygons):
		rings = g.Polygons[p.PolygonIndex]
	default:
		return "", fmt.Errorf("%w: no polygon %d in %s", errUnsupportedGeometry, p.PolygonIndex, g.Type)
	}
	if p.RingIndex < 0 || p.RingIndex >= len(rings) || len(rings[p.RingIndex]) == 0 {
		return "", fmt.Errorf("%w: no ring %d", errUnsupportedGeometry, p.RingIndex)
	}

	ring := rings[p.RingIndex]
	if samePoint(ring[0], ring[len(ring)-1]) {
		return "", fmt.Errorf("ring %d is already closed", p.RingIndex)
	}
	rings[p.RingIndex] = append(ring, ring[0].Clone())

	return fmt.Sprintf("Closed ring %d of feature %d", p.RingIndex, te.FeatureIndex), nil
}
