package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/havenmind/sentinel/pkg/contracts"
)

// ErrInvalidBundle marks a bundle that failed schema or enum validation.
var ErrInvalidBundle = errors.New("invalid rule bundle")

// Bundle is one versioned rule file. YAML and JSON are interchangeable on
// disk; both normalize to this model.
type Bundle struct {
	Name    string                `json:"name" yaml:"name"`
	Version string                `json:"version" yaml:"version"`
	Rules   []contracts.SafetyRule `json:"rules" yaml:"rules"`
}

// bundleSchema validates the raw bundle shape before any rule is built, so
// a bad enum or missing field fails at load time with a precise message.
const bundleSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "rules"],
  "properties": {
    "name": {"type": "string"},
    "version": {"type": "string", "minLength": 1},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "category", "level", "validation_type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "category": {"type": "string", "minLength": 1},
          "priority": {"type": "integer"},
          "level": {"enum": ["safe", "warning", "blocked"]},
          "pattern": {"type": "string"},
          "case_insensitive": {"type": "boolean"},
          "validation_type": {"enum": ["keyword", "sentiment", "context_aware", "crisis_detection", "therapeutic_boundary"]},
          "sensitivity": {"type": "number", "minimum": 0, "maximum": 1},
          "context_aware": {"type": "boolean"},
          "therapeutic_context": {"type": "string"},
          "crisis_type": {"enum": ["suicidal_ideation", "self_harm", "severe_depression"]},
          "escalation_threshold": {"type": "number", "minimum": 0, "maximum": 1},
          "alternative_template": {"type": "string"},
          "guard": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		const url = "https://sentinel.schemas.local/rule-bundle.schema.json"
		if err := c.AddResource(url, strings.NewReader(bundleSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}

// Loader loads rule bundles from disk and enforces version monotonicity per
// bundle name across reloads.
type Loader struct {
	mu       sync.Mutex
	versions map[string]*semver.Version
}

// NewLoader creates a bundle loader.
func NewLoader() *Loader {
	return &Loader{versions: make(map[string]*semver.Version)}
}

// LoadFile loads one .yaml/.yml/.json bundle.
func (l *Loader) LoadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", path, err)
	}
	b, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	if b.Name == "" {
		b.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := l.gateVersion(b); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	return b, nil
}

// Parse validates and decodes bundle bytes. YAML is the superset format;
// JSON documents parse through the same path.
func (l *Loader) Parse(data []byte) (*Bundle, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("bundle schema: %w", err)
	}
	if err := schema.Validate(normalizeJSON(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if _, err := semver.NewVersion(b.Version); err != nil {
		return nil, fmt.Errorf("%w: version %q: %v", ErrInvalidBundle, b.Version, err)
	}
	return &b, nil
}

// LoadDir loads every bundle in a directory and concatenates their rules.
func (l *Loader) LoadDir(dir string) ([]contracts.SafetyRule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir %s: %w", dir, err)
	}

	var rules []contracts.SafetyRule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		b, err := l.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		rules = append(rules, b.Rules...)
	}
	return rules, nil
}

// gateVersion rejects a reload that moves a named bundle's version backwards.
func (l *Loader) gateVersion(b *Bundle) error {
	v, err := semver.NewVersion(b.Version)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrInvalidBundle, b.Version, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.versions[b.Name]; ok && v.LessThan(prev) {
		return fmt.Errorf("%w: version %s regresses below loaded %s", ErrInvalidBundle, v, prev)
	}
	l.versions[b.Name] = v
	return nil
}

// normalizeJSON converts YAML-decoded values into the JSON-typed tree the
// schema validator expects.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeJSON(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeJSON(val)
		}
		return out
	case int:
		return json.Number(fmt.Sprintf("%d", t))
	case int64:
		return json.Number(fmt.Sprintf("%d", t))
	case float64:
		return json.Number(fmt.Sprintf("%g", t))
	default:
		return v
	}
}
