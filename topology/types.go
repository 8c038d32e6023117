package topology

import (
	"github.com/bsaid97/go-topology-engine/geo"
)

// DefaultTolerance is used whenever neither the options nor a rule carry a
// strictly positive tolerance. It is a raw scalar in coordinate units.
const DefaultTolerance = 1e-5

// DefaultLayerProperty is the feature property naming a feature's layer.
const DefaultLayerProperty = "layer"

type RuleType string

const (
	RuleMustNotOverlap       RuleType = "must_not_overlap"
	RuleMustNotHaveGaps      RuleType = "must_not_have_gaps"
	RuleMustNotHaveDangles   RuleType = "must_not_have_dangles"
	RuleMustNotSelfIntersect RuleType = "must_not_self_intersect"
	RuleMustBeSinglePart     RuleType = "must_be_single_part"
	RuleMustBeValid          RuleType = "must_be_valid"
	RuleMustContainPoint     RuleType = "must_contain_point"
	RuleMustBeCoveredBy      RuleType = "must_be_covered_by"
	RuleMustCover            RuleType = "must_cover"
)

type RuleParameters struct {
	LayerName      string   `json:"layerName,omitempty" yaml:"layerName,omitempty"`
	OtherLayerName string   `json:"otherLayerName,omitempty" yaml:"otherLayerName,omitempty"`
	Tolerance      *float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

type Rule struct {
	Type       RuleType       `json:"ruleType" yaml:"ruleType"`
	Parameters RuleParameters `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Options control a single Check or Repair call. Start from DefaultOptions
// and decode over it so absent fields keep their defaults.
type Options struct {
	Tolerance        float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	FixAutomatically bool    `json:"fixAutomatically,omitempty" yaml:"fixAutomatically,omitempty"`
	ReportOnly       bool    `json:"reportOnly,omitempty" yaml:"reportOnly,omitempty"`
	FixAll           bool    `json:"fixAll,omitempty" yaml:"fixAll,omitempty"`
	OnlyAutoFixable  bool    `json:"onlyAutoFixable" yaml:"onlyAutoFixable"`
	LayerProperty    string  `json:"layerProperty,omitempty" yaml:"layerProperty,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		Tolerance:       DefaultTolerance,
		OnlyAutoFixable: true,
		LayerProperty:   DefaultLayerProperty,
	}
}

func (o Options) tolerance() float64 {
	if o.Tolerance > 0 {
		return o.Tolerance
	}
	return DefaultTolerance
}

func (o Options) layerProperty() string {
	if o.LayerProperty != "" {
		return o.LayerProperty
	}
	return DefaultLayerProperty
}

// toleranceFor resolves the rule override against the call-wide tolerance.
func (o Options) toleranceFor(r Rule) float64 {
	if r.Parameters.Tolerance != nil && *r.Parameters.Tolerance > 0 {
		return *r.Parameters.Tolerance
	}
	return o.tolerance()
}

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type ErrorType string

const (
	ErrorSelfIntersection      ErrorType = "self_intersection"
	ErrorOverlap               ErrorType = "overlap"
	ErrorGap                   ErrorType = "gap"
	ErrorDangle                ErrorType = "dangle"
	ErrorMultipartGeometry     ErrorType = "multipart_geometry"
	ErrorMissingGeometry       ErrorType = "missing_geometry"
	ErrorEmptyGeometry         ErrorType = "empty_geometry"
	ErrorTooFewCoordinates     ErrorType = "too_few_coordinates"
	ErrorUnclosedRing          ErrorType = "unclosed_ring"
	ErrorInvalidGeometryType   ErrorType = "invalid_geometry_type"
	ErrorMissingContainedPoint ErrorType = "missing_contained_point"
	ErrorNotCovered            ErrorType = "not_covered"
	ErrorNotCovering           ErrorType = "not_covering"
	ErrorInvalidInput          ErrorType = "invalid_input"
)

type RepairAction string

const (
	ActionRepairSelfIntersection RepairAction = "repair_self_intersection"
	ActionTrimOverlap            RepairAction = "trim_overlap"
	ActionFillGap                RepairAction = "fill_gap"
	ActionRemoveDangle           RepairAction = "remove_dangle"
	ActionSplitMultipart         RepairAction = "split_multipart"
	ActionCloseRing              RepairAction = "close_ring"
)

// SuggestedFix names a repair action. Only the parameter block matching
// Action is set.
type SuggestedFix struct {
	Action           RepairAction            `json:"action"`
	SelfIntersection *SelfIntersectionParams `json:"selfIntersection,omitempty"`
	Overlap          *OverlapParams          `json:"overlap,omitempty"`
	Gap              *GapParams              `json:"gap,omitempty"`
	Dangle           *DangleParams           `json:"dangle,omitempty"`
	Multipart        *MultipartParams        `json:"multipart,omitempty"`
	Ring             *RingParams             `json:"ring,omitempty"`
}

type SelfIntersectionParams struct {
	Tolerance float64 `json:"tolerance"`
}

type OverlapParams struct {
	OtherFeatureIndex int `json:"otherFeatureIndex"`
}

type GapParams struct {
	Gap              *geo.Geometry `json:"gap"`
	AdjacentFeatures []int         `json:"adjacentFeatures"`
}

type DangleParams struct {
	Coordinate    geo.Position `json:"coordinate"`
	PartIndex     int          `json:"partIndex"`
	PositionIndex int          `json:"positionIndex"`
}

type MultipartParams struct {
	PartCount int `json:"partCount"`
}

type RingParams struct {
	PolygonIndex int `json:"polygonIndex"`
	RingIndex    int `json:"ringIndex"`
}

// TopologyError is one detected fault. FeatureIndex refers to the feature
// list as extracted at detection time and is -1 for faults spanning
// several features.
type TopologyError struct {
	ErrorType    ErrorType     `json:"errorType"`
	FeatureIndex int           `json:"featureIndex"`
	FeatureID    any           `json:"featureId,omitempty"`
	Geometry     *geo.Geometry `json:"geometry,omitempty"`
	Description  string        `json:"description"`
	Severity     Severity      `json:"severity"`
	CanAutoFix   bool          `json:"canAutoFix"`
	SuggestedFix *SuggestedFix `json:"suggestedFix,omitempty"`
}

type Report struct {
	Valid        bool            `json:"valid"`
	ErrorCount   int             `json:"errorCount"`
	WarningCount int             `json:"warningCount"`
	Errors       []TopologyError `json:"errors"`
	Repaired     *geo.Document   `json:"repaired,omitempty"`
	RepairLog    []string        `json:"repairLog"`
}

type RepairResult struct {
	RepairedData *geo.Document `json:"repairedData"`
	FixedCount   int           `json:"fixedCount"`
	FailedCount  int           `json:"failedCount"`
	SkippedCount int           `json:"skippedCount"`
	Report       *Report       `json:"report"`
	RepairLog    []string      `json:"repairLog"`
}
