package geo

import "encoding/json"

const (
	TypeFeature           = "Feature"
	TypeFeatureCollection = "FeatureCollection"
)

// Feature is a GeoJSON feature. ID is a string or a number when present;
// a null geometry decodes to a nil Geometry.
type Feature struct {
	ID         any
	Geometry   *Geometry
	Properties map[string]any
}

type rawFeature struct {
	Type       string         `json:"type"`
	ID         any            `json:"id,omitempty"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw rawFeature
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Feature{ID: raw.ID, Geometry: raw.Geometry, Properties: raw.Properties}
	return nil
}

func (f Feature) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawFeature{
		Type:       TypeFeature,
		ID:         f.ID,
		Geometry:   f.Geometry,
		Properties: f.Properties,
	})
}

// Property returns the value stored under key.
func (f *Feature) Property(key string) (any, bool) {
	if f == nil || f.Properties == nil {
		return nil, false
	}
	v, ok := f.Properties[key]
	return v, ok
}

// Clone deep copies the feature including nested property values.
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	return &Feature{
		ID:         f.ID,
		Geometry:   f.Geometry.Clone(),
		Properties: CloneProperties(f.Properties),
	}
}

// CloneProperties deep copies a properties mapping as decoded from JSON.
func CloneProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	c := make(map[string]any, len(props))
	for k, v := range props {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneProperties(t)
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = cloneValue(e)
		}
		return c
	}
	return v
}
