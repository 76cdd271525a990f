package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StageDef describes one unit of work in the bootstrap pipeline.
type StageDef struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Script      string   `yaml:"script"`
	CacheKey    string   `yaml:"cacheKey,omitempty"`
	Required    *bool    `yaml:"required,omitempty"`
	SkipIfEmpty string   `yaml:"skipIfEmpty,omitempty"`
	SkipIf      string   `yaml:"skipIf,omitempty"`
	Args        []string `yaml:"args,omitempty"`
}

// IsRequired reports whether a missing script is fatal for this stage.
// Absent means required.
func (s *StageDef) IsRequired() bool {
	return s.Required == nil || *s.Required
}

// PostValidationStep is a best-effort check run after all stages complete.
type PostValidationStep struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Script      string   `yaml:"script"`
	Args        []string `yaml:"args,omitempty"`
}

// StageFile is a parsed stage definition document.
type StageFile struct {
	Mode           string               `yaml:"mode"`
	TotalSteps     int                  `yaml:"total_steps,omitempty"`
	Description    string               `yaml:"description,omitempty"`
	Stages         []StageDef           `yaml:"stages"`
	PostValidation []PostValidationStep `yaml:"post_validation,omitempty"`
}

// Error wraps any stage-file loading or validation failure. It is fatal and
// reported before any stage runs.
type Error struct {
	Path   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage file %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("stage file %s: %s", e.Path, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads, schema-checks, decodes and validates a stage file.
func Load(path string) (*StageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Reason: "failed to read", Err: err}
	}
	if err := validateSchema(path, data); err != nil {
		return nil, &Error{Path: path, Reason: "schema validation failed", Err: err}
	}
	var sf StageFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, &Error{Path: path, Reason: "failed to parse YAML", Err: err}
	}
	if err := sf.validate(); err != nil {
		return nil, &Error{Path: path, Reason: err.Error()}
	}
	return &sf, nil
}

// validate checks semantic constraints the schema cannot express.
func (sf *StageFile) validate() error {
	if sf.Mode == "" {
		return fmt.Errorf("missing required field: mode")
	}
	if len(sf.Stages) == 0 {
		return fmt.Errorf("stages must not be empty")
	}
	names := make(map[string]struct{}, len(sf.Stages))
	keys := make(map[string]struct{}, len(sf.Stages))
	for i, st := range sf.Stages {
		if st.Name == "" {
			return fmt.Errorf("stage %d: missing required field: name", i)
		}
		if _, dup := names[st.Name]; dup {
			return fmt.Errorf("duplicate stage name: %s", st.Name)
		}
		names[st.Name] = struct{}{}
		if st.Script == "" {
			return fmt.Errorf("stage %s: missing required field: script", st.Name)
		}
		if st.CacheKey != "" {
			if _, dup := keys[st.CacheKey]; dup {
				return fmt.Errorf("duplicate cacheKey: %s", st.CacheKey)
			}
			keys[st.CacheKey] = struct{}{}
		}
	}
	for i, st := range sf.PostValidation {
		if st.Name == "" {
			return fmt.Errorf("post_validation %d: missing required field: name", i)
		}
		if st.Script == "" {
			return fmt.Errorf("post_validation %s: missing required field: script", st.Name)
		}
	}
	return nil
}
