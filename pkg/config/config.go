// Package config loads and validates compilefail.yaml suite definitions.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ormasoftchile/compilefail/pkg/suite"
	"gopkg.in/yaml.v3"
)

// APIVersion is the only accepted apiVersion value.
const APIVersion = "compilefail/v0"

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "compilefail.yaml"

// Config is the top-level suite definition.
type Config struct {
	APIVersion     string          `yaml:"apiVersion"                json:"apiVersion"                jsonschema:"required,enum=compilefail/v0"`
	Patterns       []string        `yaml:"patterns"                  json:"patterns"                  jsonschema:"required,minItems=1"`
	Compiler       Compiler        `yaml:"compiler"                  json:"compiler"                  jsonschema:"required"`
	ExpectationExt string          `yaml:"expectation_ext,omitempty" json:"expectation_ext,omitempty" jsonschema:"pattern=^\\.[A-Za-z0-9_.-]+$"`
	Jobs           int             `yaml:"jobs,omitempty"            json:"jobs,omitempty"            jsonschema:"minimum=0"`
	Gate           string          `yaml:"gate,omitempty"            json:"gate,omitempty"`
	Features       []string        `yaml:"features,omitempty"        json:"features,omitempty"`
	Normalize      []NormalizeRule `yaml:"normalize,omitempty"       json:"normalize,omitempty"`
}

// Compiler describes how a single case is compiled.
type Compiler struct {
	Argv        []string `yaml:"argv"                   json:"argv"                   jsonschema:"required,minItems=1"`
	Env         []string `yaml:"env,omitempty"          json:"env,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"      json:"timeout,omitempty"`
	VersionArgv []string `yaml:"version_argv,omitempty" json:"version_argv,omitempty"`
}

// NormalizeRule is a regex rewrite applied to diagnostics before comparison.
type NormalizeRule struct {
	Pattern string `yaml:"pattern"           json:"pattern"           jsonschema:"required"`
	Replace string `yaml:"replace,omitempty" json:"replace,omitempty"`
}

// Default returns a configuration for Go compile-fail cases under
// testdata/compile-fail.
func Default() *Config {
	return &Config{
		APIVersion: APIVersion,
		Patterns:   []string{"testdata/compile-fail/*.go"},
		Compiler: Compiler{
			Argv:        []string{"go", "build", "-o", "{{ .Output }}", "{{ .File }}"},
			Env:         []string{"GOWORK=off", "GOFLAGS=", "CGO_ENABLED=0"},
			Timeout:     "2m",
			VersionArgv: []string{"go", "version"},
		},
		ExpectationExt: suite.DefaultExpectationExt,
	}
}

// LoadFile reads a config file with strict unknown-field rejection.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a config from r with strict unknown-field rejection.
func Load(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Timeout returns the per-case compile timeout, zero when unset.
func (c *Config) Timeout() time.Duration {
	if c.Compiler.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Compiler.Timeout)
	return d
}

// Rules compiles the normalize rules.
func (c *Config) Rules() ([]suite.Rule, error) {
	rules := make([]suite.Rule, 0, len(c.Normalize))
	for _, n := range c.Normalize {
		r, err := suite.CompileRule(n.Pattern, n.Replace)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Ext returns the expectation extension, defaulting to .stderr.
func (c *Config) Ext() string {
	if c.ExpectationExt == "" {
		return suite.DefaultExpectationExt
	}
	return c.ExpectationExt
}
