package utils

import (
	"math"

	"github.com/bsaid97/go-topology-engine/geo"
)

// PRECISION is the number of decimals kept when no precision is configured.
var PRECISION int = 7

// TruncateGeometry returns a copy of g with every ordinate rounded to
// precision decimals. A negative precision disables rounding.
func TruncateGeometry(g *geo.Geometry, precision int) *geo.Geometry {
	if g == nil {
		return nil
	}
	out := g.Clone()
	if precision < 0 {
		return out
	}
	truncateInPlace(out, precision)
	return out
}

// TruncateFeatures rounds the geometry of every feature, in place.
func TruncateFeatures(features []*geo.Feature, precision int) {
	if precision < 0 {
		return
	}
	for _, f := range features {
		if f != nil && f.Geometry != nil {
			truncateInPlace(f.Geometry, precision)
		}
	}
}

func truncateInPlace(g *geo.Geometry, precision int) {
	ratio := math.Pow(10, float64(precision))
	g.Walk(func(p geo.Position) {
		for i := range p {
			p[i] = roundFloat(p[i], ratio)
		}
	})
}

func roundFloat(val float64, ratio float64) float64 {
	return math.Round(val*ratio) / ratio
}
