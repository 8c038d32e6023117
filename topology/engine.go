// Package topology validates GeoJSON documents against topology rules and
// applies best-effort repairs to the fixable subset of the faults found.
//
// The Engine is stateless between calls: every Check or Repair works on
// its own view of the input and Repair mutates only a private deep copy,
// so one Engine may serve concurrent callers. Geometric predicates and
// operations are delegated to an injected Kernel.
package topology

import (
	"github.com/rs/zerolog"

	"github.com/bsaid97/go-topology-engine/geo"
)

type Engine struct {
	kernel Kernel
	log    zerolog.Logger
}

type EngineOption func(*Engine)

// WithLogger sets the logger used for detector and repair diagnostics.
func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

func New(kernel Kernel, opts ...EngineOption) *Engine {
	e := &Engine{
		kernel: kernel,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check evaluates rules, in order, against the features of doc.
//
// When doc has no recognised type tag Check returns a report holding a
// single critical invalid_input error together with an error wrapping
// ErrInvalidInput. Every other fault is reported, never returned.
//
// With FixAutomatically set and ReportOnly unset, the detected errors are
// handed to Repair and the report carries the repaired snapshot and log.
func (e *Engine) Check(doc *geo.Document, rules []Rule, opts Options) (*Report, error) {
	features, err := ExtractFeatures(doc)
	if err != nil {
		e.log.Warn().Err(err).Msg("Rejecting document")
		return invalidInputReport(err), err
	}

	e.log.Debug().
		Int("features", len(features)).
		Int("rules", len(rules)).
		Float64("tolerance", opts.tolerance()).
		Msg("Checking topology")

	report := buildReport(e.evaluate(features, rules, opts))

	if opts.FixAutomatically && !opts.ReportOnly && len(report.Errors) > 0 {
		result, err := e.Repair(doc, report.Errors, opts)
		if err != nil {
			return report, err
		}
		report.Repaired = result.RepairedData
		report.RepairLog = result.RepairLog
	}

	return report, nil
}
