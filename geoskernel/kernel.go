// Package geoskernel implements topology.Kernel on top of GEOS.
//
// Geometries cross into GEOS as GeoJSON and come back the same way. GEOS
// reports failures by panicking through go-geos, so every exported method
// recovers and returns an error instead.
package geoskernel

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-topology-engine/geo"
	"github.com/bsaid97/go-topology-engine/topology"
)

var (
	ErrGEOS        = errors.New("geos")
	ErrEmptyResult = errors.New("geos returned no geometry")
)

// Kernel is safe for concurrent use; it keeps no GEOS state between calls.
type Kernel struct {
	log zerolog.Logger
}

var _ topology.Kernel = (*Kernel)(nil)

type Option func(*Kernel)

func WithLogger(log zerolog.Logger) Option {
	return func(k *Kernel) {
		k.log = log
	}
}

func New(opts ...Option) *Kernel {
	k := &Kernel{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// toGeos parses g into a GEOS geometry. The caller owns the result.
func toGeos(g *geo.Geometry) (*geos.Geom, error) {
	if g == nil {
		return nil, geo.ErrNilGeometry
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	gg, err := geos.NewGeomFromGeoJSON(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrGEOS, g.Type, err)
	}
	return gg, nil
}

func toGeosAll(gs []*geo.Geometry) ([]*geos.Geom, error) {
	out := make([]*geos.Geom, 0, len(gs))
	for _, g := range gs {
		gg, err := toGeos(g)
		if err != nil {
			destroyAll(out)
			return nil, err
		}
		out = append(out, gg)
	}
	return out, nil
}

func fromGeos(gg *geos.Geom) (*geo.Geometry, error) {
	if gg == nil {
		return nil, ErrEmptyResult
	}
	var g geo.Geometry
	if err := json.Unmarshal([]byte(gg.ToGeoJSON(-1)), &g); err != nil {
		return nil, fmt.Errorf("%w: encode result: %w", ErrGEOS, err)
	}
	return &g, nil
}

func destroyAll(gs []*geos.Geom) {
	for _, g := range gs {
		if g != nil {
			g.Destroy()
		}
	}
}

// guard turns a GEOS panic raised inside fn into an error.
func (k *Kernel) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Debug().Str("op", op).Interface("panic", r).Msg("GEOS call failed")
			err = fmt.Errorf("%w: %s: %v", ErrGEOS, op, r)
		}
	}()
	return fn()
}

// binary converts a and b, runs fn and releases both inputs.
func (k *Kernel) binary(op string, a, b *geo.Geometry, fn func(ga, gb *geos.Geom) error) error {
	return k.guard(op, func() error {
		ga, err := toGeos(a)
		if err != nil {
			return err
		}
		defer ga.Destroy()
		gb, err := toGeos(b)
		if err != nil {
			return err
		}
		defer gb.Destroy()
		return fn(ga, gb)
	})
}

// construct runs a binary GEOS operation and converts its result back.
func (k *Kernel) construct(op string, a, b *geo.Geometry, fn func(ga, gb *geos.Geom) *geos.Geom) (*geo.Geometry, error) {
	var out *geo.Geometry
	err := k.binary(op, a, b, func(ga, gb *geos.Geom) error {
		res := fn(ga, gb)
		if res == nil {
			return ErrEmptyResult
		}
		defer res.Destroy()
		g, err := fromGeos(res)
		out = g
		return err
	})
	return out, err
}
