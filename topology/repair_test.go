package topology_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-topology-engine/geo"
	"github.com/bsaid97/go-topology-engine/topology"
)

func TestRepairOverlapTrimsLowerIndex(t *testing.T) {
	a, b := square(0, 0, 2), square(1, 0, 2)
	trimmed := square(0, 0, 1)
	k := &KernelMock{
		OverlapsFunc: func(x, y *geo.Geometry, tolerance float64) (bool, error) { return true, nil },
		DifferenceFunc: func(x, y *geo.Geometry) (*geo.Geometry, error) {
			assert.Equal(t, a, x)
			assert.Equal(t, b, y)
			return trimmed.Clone(), nil
		},
	}
	engine := topology.New(k)
	doc := collection(feature(a, map[string]any{"name": "a"}), feature(b, map[string]any{"name": "b"}))

	report, err := engine.Check(doc, []topology.Rule{{Type: topology.RuleMustNotOverlap}}, topology.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)

	result, err := engine.Repair(doc, report.Errors, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FixedCount)
	assert.Zero(t, result.FailedCount)
	assert.Equal(t, 0, result.Report.ErrorCount)
	assert.True(t, result.Report.Valid)
	require.Len(t, result.RepairLog, 1)
	assert.Contains(t, result.RepairLog[0], "feature 0")

	require.Len(t, result.RepairedData.Features, 2)
	assert.Equal(t, trimmed, result.RepairedData.Features[0].Geometry)
	assert.Equal(t, b, result.RepairedData.Features[1].Geometry)
	assert.Equal(t, geo.TypeFeatureCollection, result.RepairedData.Type)

	assert.Equal(t, square(0, 0, 2), doc.Features[0].Geometry, "input must not be mutated")
}

func TestRepairSplitsMultiPolygon(t *testing.T) {
	engine := topology.New(&KernelMock{})
	multi := geo.NewMultiPolygon([][][]geo.Position{
		square(0, 0, 1).Lines,
		square(3, 3, 1).Lines,
	})
	doc := collection(
		feature(square(-5, -5, 1), nil),
		&geo.Feature{ID: "m1", Geometry: multi, Properties: map[string]any{"owner": "x", "tags": []any{"a"}}},
		feature(square(9, 9, 1), nil),
	)

	report, err := engine.Check(doc, []topology.Rule{{Type: topology.RuleMustBeSinglePart}}, topology.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].SuggestedFix.Multipart.PartCount)

	result, err := engine.Repair(doc, report.Errors, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FixedCount)

	out := result.RepairedData.Features
	require.Len(t, out, 4)
	assert.Equal(t, square(-5, -5, 1), out[0].Geometry)
	assert.Equal(t, square(0, 0, 1), out[1].Geometry)
	assert.Equal(t, square(3, 3, 1), out[2].Geometry)
	assert.Equal(t, square(9, 9, 1), out[3].Geometry)
	for _, f := range out[1:3] {
		assert.Nil(t, f.ID)
		assert.Equal(t, "x", f.Properties["owner"])
	}

	out[1].Properties["tags"].([]any)[0] = "changed"
	assert.Equal(t, "a", out[2].Properties["tags"].([]any)[0], "split features must not share properties")
	assert.Len(t, doc.Features, 3)
}

func TestRepairSplitsSingleFeatureDocument(t *testing.T) {
	engine := topology.New(&KernelMock{})
	multi := geo.NewMultiPolygon([][][]geo.Position{
		square(0, 0, 1).Lines,
		square(3, 3, 1).Lines,
	})
	doc := geo.NewFeatureDocument(feature(multi, map[string]any{"owner": "x"}))

	report, err := engine.Check(doc, []topology.Rule{{Type: topology.RuleMustBeSinglePart}}, topology.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, topology.ErrorMultipartGeometry, report.Errors[0].ErrorType)

	opts := topology.DefaultOptions()
	opts.FixAll = true
	result, err := engine.Repair(doc, report.Errors, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FixedCount)
	assert.Equal(t, geo.TypeFeatureCollection, result.RepairedData.Type)

	out := result.RepairedData.Features
	require.Len(t, out, 2)
	for i, want := range []*geo.Geometry{square(0, 0, 1), square(3, 3, 1)} {
		assert.Equal(t, geo.TypePolygon, out[i].Geometry.Type)
		assert.Equal(t, want, out[i].Geometry)
		assert.Equal(t, "x", out[i].Properties["owner"])
	}
	assert.True(t, result.Report.Valid)
	assert.Equal(t, geo.TypeMultiPolygon, doc.Feature.Geometry.Type)
}

func TestRepairSkipsErrorsOnSplitFeature(t *testing.T) {
	k := &KernelMock{
		SelfIntersectsFunc: func(g *geo.Geometry, tolerance float64) (bool, error) { return true, nil },
	}
	engine := topology.New(k)
	multi := geo.NewMultiPolygon([][][]geo.Position{square(0, 0, 1).Lines, square(3, 3, 1).Lines})
	doc := collection(feature(multi, nil))

	report, err := engine.Check(doc, []topology.Rule{
		{Type: topology.RuleMustBeSinglePart},
		{Type: topology.RuleMustNotSelfIntersect},
	}, topology.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.Errors, 2)

	result, err := engine.Repair(doc, report.Errors, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FixedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Zero(t, result.FailedCount)
	require.Len(t, result.RepairLog, 2)
	assert.True(t, strings.HasPrefix(result.RepairLog[1], "Skipped"))
	assert.Zero(t, k.calls["Simplify"])
	assert.Len(t, result.RepairedData.Features, 2)
}

func TestRepairOverlapWithSplitOther(t *testing.T) {
	a := square(0, 0, 2)
	multi := geo.NewMultiPolygon([][][]geo.Position{square(1, 1, 2).Lines, square(8, 8, 1).Lines})
	var against *geo.Geometry
	k := &KernelMock{
		DifferenceFunc: func(x, y *geo.Geometry) (*geo.Geometry, error) {
			against = y
			return square(0, 0, 1), nil
		},
	}
	engine := topology.New(k)
	doc := collection(feature(a, nil), feature(multi, nil))

	errs := []topology.TopologyError{
		{
			ErrorType: topology.ErrorMultipartGeometry, FeatureIndex: 1, Severity: topology.SeverityWarning, CanAutoFix: true,
			SuggestedFix: &topology.SuggestedFix{Action: topology.ActionSplitMultipart, Multipart: &topology.MultipartParams{PartCount: 2}},
		},
		{
			ErrorType: topology.ErrorOverlap, FeatureIndex: 0, Severity: topology.SeverityError, CanAutoFix: true,
			SuggestedFix: &topology.SuggestedFix{Action: topology.ActionTrimOverlap, Overlap: &topology.OverlapParams{OtherFeatureIndex: 1}},
		},
	}

	result, err := engine.Repair(doc, errs, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FixedCount)
	assert.Equal(t, multi, against, "a split other feature is still read as it was")
	assert.Len(t, result.RepairedData.Features, 3)
}

func TestRepairFillsGapIntoFirstPolygonalNeighbour(t *testing.T) {
	gap := square(1, 0, 0.1)
	filled := square(0, 0, 1.1)
	var unionOf *geo.Geometry
	k := &KernelMock{
		UnionFunc: func(a, b *geo.Geometry) (*geo.Geometry, error) {
			unionOf = a
			assert.Equal(t, gap, b)
			return filled.Clone(), nil
		},
	}
	engine := topology.New(k)
	line := geo.NewLineString([]geo.Position{{0, 0}, {1, 1}})
	doc := collection(feature(line, nil), feature(square(0, 0, 1), nil), feature(square(1.1, 0, 1), nil))

	errs := []topology.TopologyError{{
		ErrorType: topology.ErrorGap, FeatureIndex: -1, Geometry: gap, Severity: topology.SeverityWarning, CanAutoFix: true,
		SuggestedFix: &topology.SuggestedFix{
			Action: topology.ActionFillGap,
			Gap:    &topology.GapParams{Gap: gap, AdjacentFeatures: []int{0, 1, 2}},
		},
	}}

	result, err := engine.Repair(doc, errs, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FixedCount)
	assert.Equal(t, square(0, 0, 1), unionOf)
	assert.Equal(t, filled, result.RepairedData.Features[1].Geometry)
	assert.Equal(t, line, result.RepairedData.Features[0].Geometry)
	assert.Equal(t, "Filled gap into feature 1", result.RepairLog[0])
}

func TestRepairGapWithoutNeighbourFails(t *testing.T) {
	engine := topology.New(&KernelMock{})
	doc := collection(feature(geo.NewLineString([]geo.Position{{0, 0}, {1, 1}}), nil))
	errs := []topology.TopologyError{{
		ErrorType: topology.ErrorGap, FeatureIndex: -1, CanAutoFix: true,
		SuggestedFix: &topology.SuggestedFix{
			Action: topology.ActionFillGap,
			Gap:    &topology.GapParams{Gap: square(0, 0, 1), AdjacentFeatures: []int{0, 7}},
		},
	}}

	result, err := engine.Repair(doc, errs, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, result.FixedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.True(t, strings.HasPrefix(result.RepairLog[0], "Failed to repair gap"))
}

func TestRepairRemovesDanglesAtBothEnds(t *testing.T) {
	line := geo.NewLineString([]geo.Position{{0, 0}, {1, 0}, {2, 0}, {3, 0}})
	k := &KernelMock{
		DetectDanglesFunc: func(g *geo.Geometry, network []*geo.Geometry, tolerance float64) ([]topology.Dangle, error) {
			if g.Type != geo.TypeLineString || len(g.Points) != 4 {
				return nil, nil
			}
			return []topology.Dangle{
				{Coordinate: geo.Position{3, 0}, PositionIndex: 3},
				{Coordinate: geo.Position{0, 0}, PositionIndex: 0},
			}, nil
		},
	}
	engine := topology.New(k)
	doc := collection(feature(line, nil), feature(geo.NewLineString([]geo.Position{{9, 9}, {9, 8}}), nil))

	report, err := engine.Check(doc, []topology.Rule{{Type: topology.RuleMustNotHaveDangles}}, topology.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.Errors, 2)

	result, err := engine.Repair(doc, report.Errors, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FixedCount)
	assert.Equal(t, []geo.Position{{1, 0}, {2, 0}}, result.RepairedData.Features[0].Geometry.Points)
	assert.Len(t, line.Points, 4)
}

func TestRepairDangleThatMovedFails(t *testing.T) {
	engine := topology.New(&KernelMock{})
	doc := collection(feature(geo.NewLineString([]geo.Position{{0, 0}, {1, 0}}), nil))
	errs := []topology.TopologyError{{
		ErrorType: topology.ErrorDangle, FeatureIndex: 0, CanAutoFix: true,
		SuggestedFix: &topology.SuggestedFix{
			Action: topology.ActionRemoveDangle,
			Dangle: &topology.DangleParams{Coordinate: geo.Position{5, 5}, PositionIndex: 1},
		},
	}}

	result, err := engine.Repair(doc, errs, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FailedCount)
	assert.Len(t, result.RepairedData.Features[0].Geometry.Points, 2)
}

func TestRepairClosesRing(t *testing.T) {
	engine := topology.New(&KernelMock{})
	open := geo.NewMultiPolygon([][][]geo.Position{
		square(0, 0, 1).Lines,
		{{{5, 5}, {6, 5}, {6, 6}, {5, 6}}},
	})
	doc := collection(feature(open, nil))

	report, err := engine.Check(doc, []topology.Rule{{Type: topology.RuleMustBeValid}}, topology.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	te := report.Errors[0]
	assert.Equal(t, topology.ErrorUnclosedRing, te.ErrorType)
	assert.Equal(t, 1, te.SuggestedFix.Ring.PolygonIndex)

	result, err := engine.Repair(doc, report.Errors, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FixedCount)
	assert.True(t, result.Report.Valid)
	assert.Equal(t, []geo.Position{{5, 5}, {6, 5}, {6, 6}, {5, 6}, {5, 5}}, result.RepairedData.Features[0].Geometry.Polygons[1][0])
	assert.Len(t, open.Polygons[1][0], 4)
}

func TestRepairFixAllCountsFailures(t *testing.T) {
	k := &KernelMock{
		SimplifyFunc: func(g *geo.Geometry, tolerance float64) (*geo.Geometry, error) {
			return nil, errors.New("GEOS said no")
		},
	}
	engine := topology.New(k)
	doc := collection(feature(nil, nil), feature(square(0, 0, 1), nil), feature(square(5, 5, 1), nil))
	errs := []topology.TopologyError{
		{ErrorType: topology.ErrorMissingGeometry, FeatureIndex: 0, Severity: topology.SeverityError},
		{
			ErrorType: topology.ErrorSelfIntersection, FeatureIndex: 1, Severity: topology.SeverityError, CanAutoFix: true,
			SuggestedFix: &topology.SuggestedFix{Action: topology.ActionRepairSelfIntersection, SelfIntersection: &topology.SelfIntersectionParams{Tolerance: 0.5}},
		},
		{ErrorType: topology.ErrorOverlap, FeatureIndex: 2, Severity: topology.SeverityError, CanAutoFix: true},
		{ErrorType: topology.ErrorMultipartGeometry, FeatureIndex: 42, Severity: topology.SeverityWarning, CanAutoFix: true},
	}

	opts := topology.DefaultOptions()
	opts.FixAll = true
	result, err := engine.Repair(doc, errs, opts)
	require.NoError(t, err)
	assert.Zero(t, result.FixedCount)
	assert.Equal(t, 4, result.FailedCount)
	require.Len(t, result.RepairLog, 4)
	for _, line := range result.RepairLog {
		assert.True(t, strings.HasPrefix(line, "Failed to repair"), line)
	}
	assert.Contains(t, result.RepairLog[1], "GEOS said no")
	assert.Len(t, result.RepairedData.Features, 3)
	assert.Equal(t, 1, result.Report.ErrorCount)
}

func TestRepairUsesFixTolerance(t *testing.T) {
	var used []float64
	k := &KernelMock{
		SimplifyFunc: func(g *geo.Geometry, tolerance float64) (*geo.Geometry, error) {
			used = append(used, tolerance)
			return g.Clone(), nil
		},
	}
	engine := topology.New(k)
	doc := collection(feature(square(0, 0, 1), nil))
	errs := []topology.TopologyError{
		{ErrorType: topology.ErrorSelfIntersection, FeatureIndex: 0, CanAutoFix: true,
			SuggestedFix: &topology.SuggestedFix{Action: topology.ActionRepairSelfIntersection, SelfIntersection: &topology.SelfIntersectionParams{Tolerance: 0.25}}},
		{ErrorType: topology.ErrorSelfIntersection, FeatureIndex: 0, CanAutoFix: true},
	}
	opts := topology.DefaultOptions()
	opts.Tolerance = 0.01

	result, err := engine.Repair(doc, errs, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FixedCount)
	assert.Equal(t, []float64{0.25, 0.01}, used)
}

func TestRepairRecoversFromKernelPanic(t *testing.T) {
	k := &KernelMock{
		SimplifyFunc: func(g *geo.Geometry, tolerance float64) (*geo.Geometry, error) {
			panic("TopologyException")
		},
	}
	engine := topology.New(k)
	doc := collection(feature(square(0, 0, 1), nil))
	errs := []topology.TopologyError{
		{ErrorType: topology.ErrorSelfIntersection, FeatureIndex: 0, CanAutoFix: true},
		{ErrorType: topology.ErrorUnclosedRing, FeatureIndex: 0, CanAutoFix: true},
	}

	result, err := engine.Repair(doc, errs, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FailedCount)
	assert.Contains(t, result.RepairLog[0], "panicked")
}

func TestRepairOnlyAutoFixable(t *testing.T) {
	engine := topology.New(&KernelMock{})
	doc := collection(feature(geo.NewMultiPoint([]geo.Position{{0, 0}, {1, 1}}), nil))
	errs := []topology.TopologyError{
		{ErrorType: topology.ErrorMultipartGeometry, FeatureIndex: 0, CanAutoFix: false},
	}

	result, err := engine.Repair(doc, errs, topology.DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, result.FixedCount)
	assert.Empty(t, result.RepairLog)

	opts := topology.DefaultOptions()
	opts.OnlyAutoFixable = false
	result, err = engine.Repair(doc, errs, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FixedCount)
	assert.Len(t, result.RepairedData.Features, 2)
}

func TestRepairRejectsInvalidInput(t *testing.T) {
	engine := topology.New(&KernelMock{})
	_, err := engine.Repair(&geo.Document{Type: "Banana"}, nil, topology.DefaultOptions())
	assert.ErrorIs(t, err, topology.ErrInvalidInput)
}
