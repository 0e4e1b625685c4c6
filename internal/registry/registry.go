// Package registry loads and validates the declarative model configuration
// every other component depends on. A registry is immutable after Load and
// safe for concurrent readers.
package registry

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"

	"llmevalbench/internal/tokenizer"
)

// ErrNotFound is returned when a model name is not present in the registry.
var ErrNotFound = errors.New("model not found")

// ConfigError describes an invalid or incomplete model configuration.
// Configuration errors are always fatal: a broken config must surface
// before any paid call is made.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid model config: %s: %s", e.Field, e.Reason)
}

// Pricing is USD per 1K tokens.
type Pricing struct {
	InputPer1K  float64 `yaml:"input_per_1k" json:"inputPer1k"`
	OutputPer1K float64 `yaml:"output_per_1k" json:"outputPer1k"`
}

// GenerationParams are the sampling knobs passed to the invocation client.
type GenerationParams struct {
	MaxTokens   int     `yaml:"max_tokens" json:"maxTokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	TopP        float64 `yaml:"top_p" json:"topP"`
}

// ModelSpec is one evaluable backend. Constructed once from configuration,
// never mutated by evaluation.
type ModelSpec struct {
	Name             string           `yaml:"name" json:"name"`
	Provider         string           `yaml:"provider" json:"provider"`
	ModelID          string           `yaml:"model_id" json:"modelId"`
	Tokenizer        string           `yaml:"tokenizer" json:"tokenizer"`
	Pricing          Pricing          `yaml:"pricing" json:"pricing"`
	GenerationParams GenerationParams `yaml:"generation_params" json:"generationParams"`
}

// Config mirrors the YAML configuration file.
type Config struct {
	Region    string      `yaml:"region"`
	Endpoint  string      `yaml:"endpoint"`
	APIKeyEnv string      `yaml:"api_key_env"`
	Models    []ModelSpec `yaml:"models"`
}

// Registry holds validated model specs in declaration order.
type Registry struct {
	Region    string
	Endpoint  string
	APIKeyEnv string

	models []ModelSpec
	byName map[string]int
}

// paramRange bounds generation parameters per provider. Validated at load
// time, not at call time.
type paramRange struct {
	maxTokens      int
	maxTemperature float64
}

var providerRanges = map[string]paramRange{
	"openai":    {maxTokens: 16384, maxTemperature: 2.0},
	"anthropic": {maxTokens: 8192, maxTemperature: 1.0},
	"meta":      {maxTokens: 8192, maxTemperature: 1.0},
	"amazon":    {maxTokens: 8192, maxTemperature: 1.0},
	"alibaba":   {maxTokens: 8192, maxTemperature: 1.0},
}

const (
	defaultMaxTokens   = 512
	defaultTemperature = 0.2
	defaultTopP        = 0.95
)

// Load reads and validates a YAML model configuration file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "config", Reason: err.Error()}
	}
	return Parse(data)
}

// Parse validates a YAML model configuration document.
func Parse(data []byte) (*Registry, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Field: "config", Reason: fmt.Sprintf("not valid YAML: %v", err)}
	}
	if len(cfg.Models) == 0 {
		return nil, &ConfigError{Field: "models", Reason: "at least one model is required"}
	}

	reg := &Registry{
		Region:    cfg.Region,
		Endpoint:  cfg.Endpoint,
		APIKeyEnv: cfg.APIKeyEnv,
		models:    make([]ModelSpec, 0, len(cfg.Models)),
		byName:    make(map[string]int, len(cfg.Models)),
	}
	if reg.Region == "" {
		reg.Region = "us-east-1"
	}

	for i, m := range cfg.Models {
		if err := validateModel(i, &m); err != nil {
			return nil, err
		}
		if _, dup := reg.byName[m.Name]; dup {
			return nil, &ConfigError{
				Field:  fmt.Sprintf("models[%d].name", i),
				Reason: fmt.Sprintf("duplicate model name %q", m.Name),
			}
		}
		reg.byName[m.Name] = len(reg.models)
		reg.models = append(reg.models, m)
	}
	return reg, nil
}

func validateModel(i int, m *ModelSpec) error {
	field := func(name string) string { return fmt.Sprintf("models[%d].%s", i, name) }

	if m.Name == "" {
		return &ConfigError{Field: field("name"), Reason: "required"}
	}
	if m.ModelID == "" {
		return &ConfigError{Field: field("model_id"), Reason: "required"}
	}
	bounds, ok := providerRanges[m.Provider]
	if !ok {
		return &ConfigError{Field: field("provider"), Reason: fmt.Sprintf("unknown provider %q", m.Provider)}
	}

	if m.Tokenizer == "" {
		m.Tokenizer = "heuristic"
	}
	if !tokenizer.Supported(m.Tokenizer) {
		return &ConfigError{Field: field("tokenizer"), Reason: fmt.Sprintf("unsupported tokenizer %q", m.Tokenizer)}
	}

	if m.Pricing.InputPer1K < 0 || m.Pricing.OutputPer1K < 0 {
		return &ConfigError{Field: field("pricing"), Reason: "pricing must be non-negative"}
	}

	p := &m.GenerationParams
	if p.MaxTokens == 0 {
		p.MaxTokens = defaultMaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = defaultTemperature
	}
	if p.TopP == 0 {
		p.TopP = defaultTopP
	}
	if p.MaxTokens < 1 || p.MaxTokens > bounds.maxTokens {
		return &ConfigError{
			Field:  field("generation_params.max_tokens"),
			Reason: fmt.Sprintf("must be between 1 and %d for provider %q", bounds.maxTokens, m.Provider),
		}
	}
	if p.Temperature < 0 || p.Temperature > bounds.maxTemperature {
		return &ConfigError{
			Field:  field("generation_params.temperature"),
			Reason: fmt.Sprintf("must be between 0 and %g for provider %q", bounds.maxTemperature, m.Provider),
		}
	}
	if p.TopP < 0 || p.TopP > 1 {
		return &ConfigError{Field: field("generation_params.top_p"), Reason: "must be between 0 and 1"}
	}
	return nil
}

// Get returns the model spec for name.
func (r *Registry) Get(name string) (ModelSpec, error) {
	idx, ok := r.byName[name]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.models[idx], nil
}

// List returns all models in declaration order. Declaration order is the
// default evaluation order, which keeps reports diffable across runs.
func (r *Registry) List() []ModelSpec {
	out := make([]ModelSpec, len(r.models))
	copy(out, r.models)
	return out
}

// Select resolves a subset of model names, preserving request order. Any
// unknown name fails the whole selection so a typo surfaces before a run
// issues calls.
func (r *Registry) Select(names []string) ([]ModelSpec, error) {
	out := make([]ModelSpec, 0, len(names))
	for _, name := range names {
		m, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ByModelID returns the model spec whose invocation identifier matches id.
// Used by the log parser to map logged model ids back to display names.
func (r *Registry) ByModelID(id string) (ModelSpec, bool) {
	for _, m := range r.models {
		if m.ModelID == id {
			return m, true
		}
	}
	return ModelSpec{}, false
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	return len(r.models)
}
