package models

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed suite_schema.json
var suiteSchemaJSON []byte

// Example is one test case: a natural-language question plus its assertions.
type Example struct {
	ID       string      `yaml:"id" json:"id"`
	Question string      `yaml:"question" json:"question"`
	Asserts  []Assertion `yaml:"asserts" json:"asserts"`
}

// Suite is a named, mutable collection of examples. Runs never reference a
// Suite directly: they reference an immutable [SuiteSnapshot] frozen at run
// creation.
type Suite struct {
	ID          string    `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Examples    []Example `yaml:"examples" json:"examples"`
	CreatedAt   time.Time `yaml:"-" json:"created_at"`
	UpdatedAt   time.Time `yaml:"-" json:"updated_at"`
}

// ExampleSnapshot is the frozen copy of an example taken for one run.
// OriginalExampleID survives suite edits between runs and is the logical case
// identity used when comparing runs.
type ExampleSnapshot struct {
	ID                string      `json:"id"`
	OriginalExampleID string      `json:"original_example_id"`
	Question          string      `json:"question"`
	Asserts           []Assertion `json:"asserts"`
}

// SuiteSnapshot is the frozen copy of a suite and all its examples. Immutable
// once a run references it.
type SuiteSnapshot struct {
	ID              string            `json:"id"`
	OriginalSuiteID string            `json:"original_suite_id"`
	Name            string            `json:"name"`
	Examples        []ExampleSnapshot `json:"examples"`
	CreatedAt       time.Time         `json:"created_at"`
}

// LoadSuiteFile loads a suite definition from a YAML file, validating it
// against the embedded schema before decoding.
func LoadSuiteFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateSuiteYAML(data); err != nil {
		return nil, fmt.Errorf("invalid suite file %s: %w", path, err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite file %s: %w", path, err)
	}

	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite file %s: %w", path, err)
	}

	return &suite, nil
}

// validateSuiteYAML checks the raw document against the suite JSON schema.
// YAML is round-tripped through JSON so the validator sees plain JSON values.
func validateSuiteYAML(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to serialize suite for validation: %w", err)
	}
	var jsonDoc any
	if err := json.Unmarshal(jsonBytes, &jsonDoc); err != nil {
		return err
	}

	var schemaValue any
	if err := json.Unmarshal(suiteSchemaJSON, &schemaValue); err != nil {
		return fmt.Errorf("failed to parse embedded suite schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("suite.schema.json", schemaValue); err != nil {
		return fmt.Errorf("failed to add suite schema resource: %w", err)
	}
	schema, err := compiler.Compile("suite.schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile suite schema: %w", err)
	}

	if err := schema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("schema validation failed: %v", err)
	}
	return nil
}

// Validate checks semantic constraints the schema cannot express.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("suite must have a name")
	}
	seen := make(map[string]bool, len(s.Examples))
	for i, ex := range s.Examples {
		if ex.Question == "" {
			return fmt.Errorf("example %d has an empty question", i+1)
		}
		if ex.ID != "" {
			if seen[ex.ID] {
				return fmt.Errorf("duplicate example id %q", ex.ID)
			}
			seen[ex.ID] = true
		}
		for j, a := range ex.Asserts {
			if a.Weight < 0 {
				return fmt.Errorf("example %d assert %d: weight must be >= 0, got %v", i+1, j+1, a.Weight)
			}
		}
	}
	return nil
}

// Snapshot freezes the suite into an immutable copy. The caller assigns IDs to
// the snapshot and its examples before persisting.
func (s *Suite) Snapshot() *SuiteSnapshot {
	snap := &SuiteSnapshot{
		OriginalSuiteID: s.ID,
		Name:            s.Name,
		CreatedAt:       time.Now().UTC(),
	}
	for _, ex := range s.Examples {
		asserts := make([]Assertion, len(ex.Asserts))
		copy(asserts, ex.Asserts)
		snap.Examples = append(snap.Examples, ExampleSnapshot{
			OriginalExampleID: ex.ID,
			Question:          ex.Question,
			Asserts:           asserts,
		})
	}
	return snap
}
