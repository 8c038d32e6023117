// Package config loads the YAML configuration shared by the server and the
// command line tool.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bsaid97/go-topology-engine/topology"
	"github.com/bsaid97/go-topology-engine/utils"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root of the configuration file.
type Config struct {
	// Options are the defaults for every call. Request or command line
	// options are applied over them.
	Options topology.Options `yaml:"options"`

	// Rules are used when a request does not name any.
	Rules []topology.Rule `yaml:"rules"`

	// Precision is the number of decimals kept in repaired output. A
	// negative value keeps full precision.
	Precision int `yaml:"precision"`

	Server Server `yaml:"server,omitempty"`
}

type Server struct {
	Addr string `yaml:"addr,omitempty"`

	// MaxBodyBytes bounds a JSON request body.
	MaxBodyBytes int64 `yaml:"max_body_bytes,omitempty"`
}

const (
	defaultAddr         = "0.0.0.0:8080"
	defaultMaxBodyBytes = 64 << 20
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Options:   topology.DefaultOptions(),
		Rules:     DefaultRules(),
		Precision: utils.PRECISION,
		Server: Server{
			Addr:         defaultAddr,
			MaxBodyBytes: defaultMaxBodyBytes,
		},
	}
}

// DefaultRules is the rule set for parcel layers.
func DefaultRules() []topology.Rule {
	return []topology.Rule{
		{Type: topology.RuleMustBeValid},
		{Type: topology.RuleMustNotSelfIntersect},
		{Type: topology.RuleMustNotOverlap},
		{Type: topology.RuleMustNotHaveGaps},
		{Type: topology.RuleMustBeSinglePart},
	}
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Read parses a configuration over the defaults, so keys missing from r
// keep their default values.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown rule types and negative tolerances.
func (c *Config) Validate() error {
	if c.Options.Tolerance < 0 {
		return fmt.Errorf("%w: negative tolerance %g", ErrInvalidConfig, c.Options.Tolerance)
	}
	for i, rule := range c.Rules {
		if !KnownRule(rule.Type) {
			return fmt.Errorf("%w: rule %d has unknown type %q", ErrInvalidConfig, i, rule.Type)
		}
		if tol := rule.Parameters.Tolerance; tol != nil && *tol < 0 {
			return fmt.Errorf("%w: rule %d has negative tolerance %g", ErrInvalidConfig, i, *tol)
		}
	}
	return nil
}

func KnownRule(t topology.RuleType) bool {
	switch t {
	case topology.RuleMustNotOverlap,
		topology.RuleMustNotHaveGaps,
		topology.RuleMustNotHaveDangles,
		topology.RuleMustNotSelfIntersect,
		topology.RuleMustBeSinglePart,
		topology.RuleMustBeValid,
		topology.RuleMustContainPoint,
		topology.RuleMustBeCoveredBy,
		topology.RuleMustCover:
		return true
	}
	return false
}
