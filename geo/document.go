package geo

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownDocument = errors.New("geo: unknown document type")

// Document is any GeoJSON value accepted as input: a FeatureCollection, a
// single Feature or a bare Geometry. Type carries the value's type tag
// verbatim, even when it is missing or not recognised.
type Document struct {
	Type     string
	Features []*Feature
	Feature  *Feature
	Geometry *Geometry
}

func NewFeatureCollection(features []*Feature) *Document {
	if features == nil {
		features = []*Feature{}
	}
	return &Document{Type: TypeFeatureCollection, Features: features}
}

func NewFeatureDocument(f *Feature) *Document {
	return &Document{Type: TypeFeature, Feature: f}
}

func NewGeometryDocument(g *Geometry) *Document {
	doc := &Document{Geometry: g}
	if g != nil {
		doc.Type = string(g.Type)
	}
	return doc
}

// ParseDocument decodes data into a Document. It only fails on malformed
// JSON; an absent or unknown type tag is preserved for the caller to judge.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing geojson document: %w", err)
	}
	return &doc, nil
}

// Kind classifies the document by its type tag.
func (d *Document) Kind() (string, error) {
	if d == nil || d.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrUnknownDocument)
	}
	switch {
	case d.Type == TypeFeatureCollection, d.Type == TypeFeature:
		return d.Type, nil
	case GeometryType(d.Type).Known():
		return "Geometry", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocument, d.Type)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	*d = Document{Type: head.Type}

	switch {
	case head.Type == TypeFeatureCollection:
		var fc struct {
			Features []*Feature `json:"features"`
		}
		if err := json.Unmarshal(data, &fc); err != nil {
			return err
		}
		d.Features = fc.Features
		if d.Features == nil {
			d.Features = []*Feature{}
		}
	case head.Type == TypeFeature:
		var f Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		d.Feature = &f
	case GeometryType(head.Type).Known():
		var g Geometry
		if err := json.Unmarshal(data, &g); err != nil {
			return err
		}
		d.Geometry = &g
	}

	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	switch {
	case d.Type == TypeFeatureCollection:
		features := d.Features
		if features == nil {
			features = []*Feature{}
		}
		return json.Marshal(struct {
			Type     string     `json:"type"`
			Features []*Feature `json:"features"`
		}{Type: d.Type, Features: features})
	case d.Type == TypeFeature && d.Feature != nil:
		return json.Marshal(d.Feature)
	case d.Geometry != nil:
		return json.Marshal(d.Geometry)
	}
	return json.Marshal(struct {
		Type string `json:"type,omitempty"`
	}{Type: d.Type})
}

// Clone deep copies the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		Type:     d.Type,
		Feature:  d.Feature.Clone(),
		Geometry: d.Geometry.Clone(),
	}
	if d.Features != nil {
		c.Features = make([]*Feature, len(d.Features))
		for i, f := range d.Features {
			c.Features[i] = f.Clone()
		}
	}
	return c
}
