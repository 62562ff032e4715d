package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the syntax from the file extension. Anything that is not
// .toml is read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Decode(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// Decode parses configuration data without validating it.
func Decode(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Encode renders cfg in the given syntax.
func Encode(cfg *Config, format Format) ([]byte, error) {
	if format == FormatTOML {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

var (
	tagFetchPolicies = []string{"no", "prompt", "prompt_force", "force"}
	branchStrategies = []string{"ff-only", "rebase", "merge", "no"}
)

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.Version != 0 && cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d, only version 1 is supported", cfg.Version))
	}

	if cfg.Manifest != "" && strings.TrimSpace(cfg.Manifest) != cfg.Manifest {
		errs = append(errs, fmt.Sprintf("manifest '%s': leading or trailing whitespace is not allowed", cfg.Manifest))
	}

	if v := cfg.Checkout.FetchForTags; v != "" && !oneOf(v, tagFetchPolicies) {
		errs = append(errs, fmt.Sprintf("checkout: invalid fetch_for_tags '%s', must be one of: %s", v, strings.Join(tagFetchPolicies, ", ")))
	}
	if v := cfg.Checkout.MergeForBranches; v != "" && !oneOf(v, branchStrategies) {
		errs = append(errs, fmt.Sprintf("checkout: invalid merge_for_branches '%s', must be one of: %s", v, strings.Join(branchStrategies, ", ")))
	}

	if s := cfg.Freeze.BackupSuffix; s != nil && strings.ContainsAny(*s, `/\`) {
		errs = append(errs, fmt.Sprintf("freeze: backup_suffix '%s' must not contain a path separator", *s))
	}

	if cfg.Status.Concurrency < 0 {
		errs = append(errs, fmt.Sprintf("status: concurrency must not be negative, got %d", cfg.Status.Concurrency))
	}

	return errs
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
