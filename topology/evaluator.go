package topology

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bsaid97/go-topology-engine/geo"
)

// evaluator runs the rules of one Check call. It only reads features.
type evaluator struct {
	kernel   Kernel
	log      zerolog.Logger
	features []*geo.Feature
	opts     Options
}

// evaluate applies rules in order. Each rule appends its errors in
// ascending feature order; rules never short-circuit one another.
func (e *Engine) evaluate(features []*geo.Feature, rules []Rule, opts Options) []TopologyError {
	ev := &evaluator{
		kernel:   e.kernel,
		log:      e.log,
		features: features,
		opts:     opts,
	}

	errs := []TopologyError{}
	for i, rule := range rules {
		found := ev.run(rule)
		ev.log.Debug().
			Int("rule", i).
			Str("ruleType", string(rule.Type)).
			Int("errors", len(found)).
			Msg("Rule evaluated")
		errs = append(errs, found...)
	}

	return errs
}

func (ev *evaluator) run(rule Rule) []TopologyError {
	switch rule.Type {
	case RuleMustNotSelfIntersect:
		return ev.selfIntersections(rule)
	case RuleMustNotOverlap:
		return ev.overlaps(rule)
	case RuleMustNotHaveGaps:
		return ev.gaps(rule)
	case RuleMustNotHaveDangles:
		return ev.dangles(rule)
	case RuleMustBeSinglePart:
		return ev.multiparts(rule)
	case RuleMustBeValid:
		return ev.structure(rule)
	case RuleMustContainPoint:
		return ev.containsPoint(rule)
	case RuleMustBeCoveredBy:
		return ev.coveredBy(rule)
	case RuleMustCover:
		return ev.covers(rule)
	}

	ev.log.Warn().Str("ruleType", string(rule.Type)).Msg("Unknown rule type, skipping")
	return nil
}

// layer returns the indices of the features belonging to name, or of all
// features when name is empty.
func (ev *evaluator) layer(name string) []int {
	indices := make([]int, 0, len(ev.features))
	key := ev.opts.layerProperty()
	for i, f := range ev.features {
		if name == "" {
			indices = append(indices, i)
			continue
		}
		v, ok := f.Property(key)
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); (isString && s == name) || (!isString && fmt.Sprint(v) == name) {
			indices = append(indices, i)
		}
	}
	return indices
}

// having narrows indices to features whose geometry is present, non-empty
// and accepted by keep.
func (ev *evaluator) having(indices []int, keep func(geo.GeometryType) bool) []int {
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		g := ev.features[i].Geometry
		if g == nil || g.IsEmpty() || !keep(g.Type) {
			continue
		}
		out = append(out, i)
	}
	return out
}

// guard runs one detector step. Kernel errors and panics are logged and
// the step is skipped so the remaining features and rules still run.
func (ev *evaluator) guard(rule Rule, index int, step func() error) {
	defer func() {
		if r := recover(); r != nil {
			ev.log.Error().
				Str("ruleType", string(rule.Type)).
				Int("featureIndex", index).
				Interface("panic", r).
				Msg("Detector panicked, skipping")
		}
	}()

	if err := step(); err != nil {
		ev.log.Error().
			Err(err).
			Str("ruleType", string(rule.Type)).
			Int("featureIndex", index).
			Msg("Detector failed, skipping")
	}
}

func (ev *evaluator) newError(index int, errType ErrorType, severity Severity, description string) TopologyError {
	f := ev.features[index]
	return TopologyError{
		ErrorType:    errType,
		FeatureIndex: index,
		FeatureID:    f.ID,
		Geometry:     f.Geometry.Clone(),
		Description:  description,
		Severity:     severity,
	}
}

// unionOf merges the geometries at indices pairwise, halving the list on
// every pass, the same way a cascaded union dissolves a layer.
func (ev *evaluator) unionOf(indices []int) (*geo.Geometry, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	geoms := make([]*geo.Geometry, len(indices))
	for i, idx := range indices {
		geoms[i] = ev.features[idx].Geometry
	}

	for len(geoms) > 1 {
		next := make([]*geo.Geometry, 0, (len(geoms)+1)/2)
		for i := 0; i < len(geoms); i += 2 {
			if i+1 == len(geoms) {
				next = append(next, geoms[i])
				continue
			}
			u, err := ev.kernel.Union(geoms[i], geoms[i+1])
			if err != nil {
				return nil, err
			}
			next = append(next, u)
		}
		geoms = next
	}

	return geoms[0], nil
}
