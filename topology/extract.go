package topology

import (
	"errors"
	"fmt"

	"github.com/bsaid97/go-topology-engine/geo"
)

// ErrInvalidInput marks a document whose type tag is absent or not
// recognised. It is the only fatal condition of a Check call.
var ErrInvalidInput = errors.New("invalid input")

// ExtractFeatures normalises doc into an ordered feature list with stable
// 0-based indices. A bare geometry is wrapped in a feature with empty
// properties. The returned features alias doc; callers that mutate must
// clone first.
func ExtractFeatures(doc *geo.Document) ([]*geo.Feature, error) {
	kind, err := doc.Kind()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	switch kind {
	case geo.TypeFeatureCollection:
		features := make([]*geo.Feature, 0, len(doc.Features))
		for _, f := range doc.Features {
			if f == nil {
				f = &geo.Feature{Properties: map[string]any{}}
			}
			features = append(features, f)
		}
		return features, nil
	case geo.TypeFeature:
		if doc.Feature == nil {
			return nil, fmt.Errorf("%w: feature document without a feature", ErrInvalidInput)
		}
		return []*geo.Feature{doc.Feature}, nil
	default:
		return []*geo.Feature{{Geometry: doc.Geometry, Properties: map[string]any{}}}, nil
	}
}

// CountFeatures returns how many features doc extracts to, or 0 when the
// document is not valid GeoJSON.
func CountFeatures(doc *geo.Document) int {
	features, err := ExtractFeatures(doc)
	if err != nil {
		return 0
	}
	return len(features)
}

// IsValidGeoJSON reports whether doc carries a recognised type tag.
func IsValidGeoJSON(doc *geo.Document) bool {
	_, err := ExtractFeatures(doc)
	return err == nil
}
