package topology

import (
	"fmt"
	"sort"

	"github.com/bsaid97/go-topology-engine/geo"
)

func polygonal(t geo.GeometryType) bool { return t.IsPolygonal() }
func lineal(t geo.GeometryType) bool    { return t.IsLineal() }
func puntal(t geo.GeometryType) bool    { return t.IsPuntal() }
func anyType(t geo.GeometryType) bool   { return t.Known() }

func (ev *evaluator) selfIntersections(rule Rule) []TopologyError {
	tol := ev.opts.toleranceFor(rule)
	candidates := ev.having(ev.layer(rule.Parameters.LayerName), func(t geo.GeometryType) bool {
		return t.IsPolygonal() || t.IsLineal()
	})

	var errs []TopologyError
	for _, i := range candidates {
		g := ev.features[i].Geometry
		ev.guard(rule, i, func() error {
			hit, err := ev.kernel.SelfIntersects(g, tol)
			if err != nil {
				return err
			}
			if !hit {
				return nil
			}
			te := ev.newError(i, ErrorSelfIntersection, SeverityError,
				fmt.Sprintf("%s geometry of feature %d intersects itself", g.Type, i))
			te.CanAutoFix = true
			te.SuggestedFix = &SuggestedFix{
				Action:           ActionRepairSelfIntersection,
				SelfIntersection: &SelfIntersectionParams{Tolerance: tol},
			}
			errs = append(errs, te)
			return nil
		})
	}
	return errs
}

// overlaps compares polygon pairs by their full-list indices. Without an
// other layer every pair i<j of the layer is compared; with one, every
// pair across the two layers. The error lands on the lower index.
func (ev *evaluator) overlaps(rule Rule) []TopologyError {
	tol := ev.opts.toleranceFor(rule)
	subjects := ev.having(ev.layer(rule.Parameters.LayerName), polygonal)

	var pairs [][2]int
	if rule.Parameters.OtherLayerName == "" {
		for a := 0; a < len(subjects); a++ {
			for b := a + 1; b < len(subjects); b++ {
				pairs = append(pairs, [2]int{subjects[a], subjects[b]})
			}
		}
	} else {
		others := ev.having(ev.layer(rule.Parameters.OtherLayerName), polygonal)
		seen := make(map[[2]int]bool)
		for _, a := range subjects {
			for _, b := range others {
				if a == b {
					continue
				}
				p := [2]int{min(a, b), max(a, b)}
				if !seen[p] {
					seen[p] = true
					pairs = append(pairs, p)
				}
			}
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})
	}

	var errs []TopologyError
	for _, p := range pairs {
		lo, hi := p[0], p[1]
		ev.guard(rule, lo, func() error {
			hit, err := ev.kernel.Overlaps(ev.features[lo].Geometry, ev.features[hi].Geometry, tol)
			if err != nil {
				return err
			}
			if !hit {
				return nil
			}
			te := ev.newError(lo, ErrorOverlap, SeverityError,
				fmt.Sprintf("feature %d overlaps feature %d", lo, hi))
			te.CanAutoFix = true
			te.SuggestedFix = &SuggestedFix{
				Action:  ActionTrimOverlap,
				Overlap: &OverlapParams{OtherFeatureIndex: hi},
			}
			errs = append(errs, te)
			return nil
		})
	}
	return errs
}

// gaps asks the kernel for uncovered areas between the layer's polygons.
// Gaps span features, so they carry featureIndex -1 and are ordered by
// their lowest adjacent feature.
func (ev *evaluator) gaps(rule Rule) []TopologyError {
	tol := ev.opts.toleranceFor(rule)
	polys := ev.having(ev.layer(rule.Parameters.LayerName), polygonal)
	if len(polys) < 2 {
		return nil
	}

	geoms := make([]*geo.Geometry, len(polys))
	for i, idx := range polys {
		geoms[i] = ev.features[idx].Geometry
	}

	var found []Gap
	ev.guard(rule, -1, func() error {
		gaps, err := ev.kernel.DetectGaps(geoms, tol)
		found = gaps
		return err
	})

	type located struct {
		gap      Gap
		adjacent []int
	}
	ordered := make([]located, 0, len(found))
	for _, gap := range found {
		adjacent := make([]int, 0, len(gap.Adjacent))
		for _, a := range gap.Adjacent {
			if a >= 0 && a < len(polys) {
				adjacent = append(adjacent, polys[a])
			}
		}
		sort.Ints(adjacent)
		ordered = append(ordered, located{gap: gap, adjacent: adjacent})
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return lowest(ordered[i].adjacent) < lowest(ordered[j].adjacent)
	})

	var errs []TopologyError
	for _, l := range ordered {
		errs = append(errs, TopologyError{
			ErrorType:    ErrorGap,
			FeatureIndex: -1,
			Geometry:     l.gap.Geometry.Clone(),
			Description:  fmt.Sprintf("gap between features %v", l.adjacent),
			Severity:     SeverityWarning,
			CanAutoFix:   len(l.adjacent) > 0,
			SuggestedFix: &SuggestedFix{
				Action: ActionFillGap,
				Gap: &GapParams{
					Gap:              l.gap.Geometry.Clone(),
					AdjacentFeatures: l.adjacent,
				},
			},
		})
	}
	return errs
}

func lowest(indices []int) int {
	if len(indices) == 0 {
		return int(^uint(0) >> 1)
	}
	return indices[0]
}

// dangles checks every line of the layer against the rest of the layer's
// lines. Only plain LineString dangles are auto-fixable.
func (ev *evaluator) dangles(rule Rule) []TopologyError {
	tol := ev.opts.toleranceFor(rule)
	lines := ev.having(ev.layer(rule.Parameters.LayerName), lineal)

	var errs []TopologyError
	for _, i := range lines {
		g := ev.features[i].Geometry
		network := make([]*geo.Geometry, 0, len(lines)-1)
		for _, j := range lines {
			if j != i {
				network = append(network, ev.features[j].Geometry)
			}
		}

		ev.guard(rule, i, func() error {
			found, err := ev.kernel.DetectDangles(g, network, tol)
			if err != nil {
				return err
			}
			sort.SliceStable(found, func(a, b int) bool {
				if found[a].PartIndex != found[b].PartIndex {
					return found[a].PartIndex < found[b].PartIndex
				}
				return found[a].PositionIndex < found[b].PositionIndex
			})
			for _, d := range found {
				te := ev.newError(i, ErrorDangle, SeverityWarning,
					fmt.Sprintf("dangling endpoint %v (position %d) on feature %d", []float64(d.Coordinate), d.PositionIndex, i))
				te.Geometry = geo.NewPoint(d.Coordinate.Clone())
				te.CanAutoFix = g.Type == geo.TypeLineString
				te.SuggestedFix = &SuggestedFix{
					Action: ActionRemoveDangle,
					Dangle: &DangleParams{
						Coordinate:    d.Coordinate.Clone(),
						PartIndex:     d.PartIndex,
						PositionIndex: d.PositionIndex,
					},
				}
				errs = append(errs, te)
			}
			return nil
		})
	}
	return errs
}

func (ev *evaluator) multiparts(rule Rule) []TopologyError {
	var errs []TopologyError
	for _, i := range ev.layer(rule.Parameters.LayerName) {
		g := ev.features[i].Geometry
		if g == nil || !g.Type.IsMulti() {
			continue
		}
		te := ev.newError(i, ErrorMultipartGeometry, SeverityWarning,
			fmt.Sprintf("feature %d is a %s", i, g.Type))
		te.CanAutoFix = true
		te.SuggestedFix = &SuggestedFix{
			Action:    ActionSplitMultipart,
			Multipart: &MultipartParams{PartCount: len(g.Parts())},
		}
		errs = append(errs, te)
	}
	return errs
}

// containsPoint requires every polygon of the layer to cover at least one
// point feature of the other layer.
func (ev *evaluator) containsPoint(rule Rule) []TopologyError {
	polys := ev.having(ev.layer(rule.Parameters.LayerName), polygonal)
	points := ev.having(ev.layer(rule.Parameters.OtherLayerName), puntal)

	var errs []TopologyError
	for _, i := range polys {
		poly := ev.features[i].Geometry
		ev.guard(rule, i, func() error {
			for _, j := range points {
				ok, err := ev.kernel.Covers(poly, ev.features[j].Geometry)
				if err != nil {
					return err
				}
				if ok {
					return nil
				}
			}
			errs = append(errs, ev.newError(i, ErrorMissingContainedPoint, SeverityError,
				fmt.Sprintf("feature %d contains no point feature", i)))
			return nil
		})
	}
	return errs
}

// coveredBy requires every feature of the layer to lie within the union of
// the other layer.
func (ev *evaluator) coveredBy(rule Rule) []TopologyError {
	if rule.Parameters.OtherLayerName == "" {
		ev.log.Warn().Str("ruleType", string(rule.Type)).Msg("Rule needs otherLayerName, skipping")
		return nil
	}
	subjects := ev.having(ev.layer(rule.Parameters.LayerName), anyType)
	cover := ev.having(ev.layer(rule.Parameters.OtherLayerName), anyType)
	return ev.uncovered(rule, subjects, cover, ErrorNotCovered, rule.Parameters.OtherLayerName)
}

// covers requires every feature of the other layer to lie within the union
// of the layer. The uncovered feature is the one reported.
func (ev *evaluator) covers(rule Rule) []TopologyError {
	if rule.Parameters.OtherLayerName == "" {
		ev.log.Warn().Str("ruleType", string(rule.Type)).Msg("Rule needs otherLayerName, skipping")
		return nil
	}
	cover := ev.having(ev.layer(rule.Parameters.LayerName), anyType)
	subjects := ev.having(ev.layer(rule.Parameters.OtherLayerName), anyType)
	layerName := rule.Parameters.LayerName
	if layerName == "" {
		layerName = "all features"
	}
	return ev.uncovered(rule, subjects, cover, ErrorNotCovering, layerName)
}

func (ev *evaluator) uncovered(rule Rule, subjects, cover []int, errType ErrorType, coverName string) []TopologyError {
	if len(subjects) == 0 {
		return nil
	}

	var coverage *geo.Geometry
	ok := false
	ev.guard(rule, -1, func() error {
		u, err := ev.unionOf(cover)
		if err != nil {
			return err
		}
		coverage = u
		ok = true
		return nil
	})
	if !ok {
		return nil
	}

	var errs []TopologyError
	for _, i := range subjects {
		g := ev.features[i].Geometry
		ev.guard(rule, i, func() error {
			covered := false
			if coverage != nil {
				var err error
				covered, err = ev.kernel.Covers(coverage, g)
				if err != nil {
					return err
				}
			}
			if !covered {
				errs = append(errs, ev.newError(i, errType, SeverityError,
					fmt.Sprintf("feature %d is not covered by %s", i, coverName)))
			}
			return nil
		})
	}
	return errs
}
