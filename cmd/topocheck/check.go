package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/bsaid97/go-topology-engine/config"
	"github.com/bsaid97/go-topology-engine/geo"
	"github.com/bsaid97/go-topology-engine/topology"
	"github.com/bsaid97/go-topology-engine/utils"
)

// Checker runs one independent engine call per file.
type Checker struct {
	Kernel    topology.Kernel
	Config    *config.Config
	Fix       bool
	FixAll    bool
	Tolerance float64
	OutDir    string
	Shapefile bool
	Workers   int
	Log       zerolog.Logger
}

// FileResult is the outcome for a single input file. Error is set when
// the file could not be read or parsed.
type FileResult struct {
	File   string                 `json:"file"`
	Error  string                 `json:"error,omitempty"`
	Report *topology.Report       `json:"report,omitempty"`
	Repair *topology.RepairResult `json:"repair,omitempty"`
	Output []string               `json:"output,omitempty"`
}

// Valid reports whether the file parsed and, after any repair, has no
// remaining errors.
func (r FileResult) Valid() bool {
	switch {
	case r.Error != "":
		return false
	case r.Repair != nil:
		return r.Repair.Report.Valid
	case r.Report != nil:
		return r.Report.Valid
	}
	return false
}

func AllValid(results []FileResult) bool {
	for _, r := range results {
		if !r.Valid() {
			return false
		}
	}
	return true
}

// Run processes files on a worker pool and returns the results in input
// order. A cancelled context leaves the remaining files unprocessed.
func (c *Checker) Run(ctx context.Context, files []string) ([]FileResult, error) {
	if c.OutDir != "" {
		if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	pp := utils.NewParallelProcessor(c.Workers, c.Log)
	results, err := utils.ProcessBatch(ctx, pp, files, c.checkFile, "files")
	for i := range results {
		if results[i].File == "" {
			results[i] = FileResult{File: files[i], Error: "not processed"}
		}
	}
	return results, err
}

func (c *Checker) options() topology.Options {
	opts := c.Config.Options
	if c.Tolerance > 0 {
		opts.Tolerance = c.Tolerance
	}
	opts.FixAutomatically = false
	opts.FixAll = c.FixAll
	return opts
}

func (c *Checker) checkFile(_ context.Context, path string) FileResult {
	result := FileResult{File: path}
	log := c.Log.With().Str("file", path).Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		log.Error().Err(err).Msg("Failed to read file")
		return result
	}

	doc, err := geo.ParseDocument(data)
	if err != nil {
		result.Error = err.Error()
		log.Error().Err(err).Msg("Failed to parse file")
		return result
	}

	engine := topology.New(c.Kernel, topology.WithLogger(log))
	opts := c.options()

	report, err := engine.Check(doc, c.Config.Rules, opts)
	result.Report = report
	if err != nil {
		result.Error = err.Error()
		return result
	}

	log.Info().
		Bool("valid", report.Valid).
		Int("errors", report.ErrorCount).
		Int("warnings", report.WarningCount).
		Msg("Checked")

	if !c.Fix || len(report.Errors) == 0 {
		return result
	}

	repair, err := engine.Repair(doc, report.Errors, opts)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	utils.TruncateFeatures(repair.RepairedData.Features, c.Config.Precision)
	result.Repair = repair

	if c.OutDir != "" {
		result.Output, err = c.writeRepaired(path, repair.RepairedData, log)
		if err != nil {
			result.Error = err.Error()
			log.Error().Err(err).Msg("Failed to write repaired output")
		}
	}

	return result
}

// writeRepaired writes <name>_repaired.geojson, and the shapefile when
// requested, into the output directory.
func (c *Checker) writeRepaired(path string, doc *geo.Document, log zerolog.Logger) ([]string, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_repaired"

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal repaired data: %w", err)
	}

	jsonPath := filepath.Join(c.OutDir, base+".geojson")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return nil, err
	}
	written := []string{jsonPath}

	if c.Shapefile {
		shpPath := filepath.Join(c.OutDir, base+".shp")
		if err := utils.WriteShapefile(shpPath, doc.Features, log); err != nil {
			return written, err
		}
		written = append(written, shpPath)
	}

	return written, nil
}

// WriteResults encodes results as JSON or YAML. YAML goes through the JSON
// encoding so both formats share the same field names.
func WriteResults(w io.Writer, results []FileResult, format string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}

	if format != "yaml" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
