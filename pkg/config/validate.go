package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ormasoftchile/compilefail/pkg/gate"
	"github.com/ormasoftchile/compilefail/pkg/toolchain"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "compiler.argv")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a config file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Config, []*ValidationError) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	if errs := Validate(cfg); len(errs) > 0 {
		return cfg, errs
	}
	return cfg, nil
}

// Validate runs the semantic and domain phases on an already decoded config.
func Validate(cfg *Config) []*ValidationError {
	errs := validateSemantic(cfg)
	errs = append(errs, ValidateDomain(cfg)...)
	return errs
}

// HasErrors reports whether errs contains anything other than warnings.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

func validateSemantic(cfg *Config) []*ValidationError {
	semErr := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return semErr("marshal for schema validation: %v", err)
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semErr("generate schema: %v", err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semErr("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("compilefail-v0.json", schemaDoc); err != nil {
		return semErr("add schema resource: %v", err)
	}
	sch, err := c.Compile("compilefail-v0.json")
	if err != nil {
		return semErr("compile schema: %v", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return semErr("unmarshal document: %v", err)
	}
	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semErr("%v", err)
		}
		printer := message.NewPrinter(language.English)
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "."),
				Message:  cause.ErrorKind.LocalizedString(printer),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain checks rules the JSON Schema cannot express.
func ValidateDomain(cfg *Config) []*ValidationError {
	var errs []*ValidationError
	add := func(path, severity, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	if cfg.APIVersion != APIVersion {
		add("apiVersion", "error", "unrecognized apiVersion %q, expected %q", cfg.APIVersion, APIVersion)
	}

	if len(cfg.Compiler.Argv) == 0 || strings.TrimSpace(cfg.Compiler.Argv[0]) == "" {
		add("compiler.argv", "error", "compiler argv must name an executable")
	}
	if cfg.Compiler.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Compiler.Timeout); err != nil {
			add("compiler.timeout", "error", "invalid duration %q: %v", cfg.Compiler.Timeout, err)
		} else if d <= 0 {
			add("compiler.timeout", "error", "timeout must be positive")
		}
	}
	for i, kv := range cfg.Compiler.Env {
		if !strings.Contains(kv, "=") {
			add(fmt.Sprintf("compiler.env[%d]", i), "error", "expected KEY=VALUE, got %q", kv)
		}
	}
	if len(cfg.Compiler.VersionArgv) == 0 && cfg.Gate != "" {
		add("compiler.version_argv", "warning", "gate is set but version_argv is empty; the host Go version is used")
	}

	seen := make(map[string]bool)
	for i, p := range cfg.Patterns {
		if seen[p] {
			add(fmt.Sprintf("patterns[%d]", i), "warning", "duplicate pattern %q", p)
		}
		seen[p] = true
	}

	for i, n := range cfg.Normalize {
		if _, err := regexp.Compile(n.Pattern); err != nil {
			add(fmt.Sprintf("normalize[%d].pattern", i), "error", "invalid regex: %v", err)
		}
	}

	if cfg.Gate != "" {
		facts := gate.NewFacts(toolchain.Version{Major: 1, Channel: toolchain.ChannelStable}, cfg.Features...)
		if _, err := gate.Evaluate(cfg.Gate, facts); err != nil {
			add("gate", "error", "%v", err)
		}
	}
	return errs
}
