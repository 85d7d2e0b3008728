package security

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// PatternCategory is a named group of injection patterns.
type PatternCategory struct {
	Name     string   `yaml:"name" json:"name" validate:"required"`
	Patterns []string `yaml:"patterns" json:"patterns" validate:"required,min=1,dive,required"`

	compiled []*regexp.Regexp
}

// FieldRule limits the length of a named free-text field.
type FieldRule struct {
	MaxLength   int    `yaml:"max_length" json:"max_length" validate:"gt=0"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// PatternTable is the data-driven rule set behind the text sanitizer.
// It is served verbatim to the client mirror so both sides share one source.
type PatternTable struct {
	Version       int                  `yaml:"version" json:"version" validate:"gte=1"`
	Categories    []PatternCategory    `yaml:"categories" json:"categories" validate:"required,min=1,dive"`
	Fields        map[string]FieldRule `yaml:"fields" json:"fields" validate:"dive"`
	DangerousKeys []string             `yaml:"dangerous_keys" json:"dangerous_keys" validate:"required,min=1,dive,required"`
}

// DefaultPatternTable returns the embedded pattern table.
func DefaultPatternTable() (*PatternTable, error) {
	return ParsePatternTable(defaultPatterns)
}

// LoadPatternTable reads a pattern table from path, or the embedded table
// when path is empty.
func LoadPatternTable(path string) (*PatternTable, error) {
	if path == "" {
		return DefaultPatternTable()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern table: %w", err)
	}
	return ParsePatternTable(data)
}

// ParsePatternTable decodes, validates and compiles a YAML pattern table.
func ParsePatternTable(data []byte) (*PatternTable, error) {
	var table PatternTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to parse pattern table: %w", err)
	}

	if err := validator.New().Struct(table); err != nil {
		return nil, fmt.Errorf("invalid pattern table: %w", err)
	}

	seen := make(map[string]bool, len(table.Categories))
	for i := range table.Categories {
		cat := &table.Categories[i]
		if seen[cat.Name] {
			return nil, fmt.Errorf("invalid pattern table: duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true

		cat.compiled = make([]*regexp.Regexp, 0, len(cat.Patterns))
		for _, p := range cat.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern in category %q: %w", cat.Name, err)
			}
			cat.compiled = append(cat.compiled, re)
		}
	}

	return &table, nil
}

// Detect returns the first category with a pattern matching text, or "".
func (t *PatternTable) Detect(text string) string {
	for _, cat := range t.Categories {
		for _, re := range cat.compiled {
			if re.MatchString(text) {
				return cat.Name
			}
		}
	}
	return ""
}

// MaxLength returns the length limit for field, if one is configured.
func (t *PatternTable) MaxLength(field string) (int, bool) {
	rule, ok := t.Fields[field]
	if !ok {
		return 0, false
	}
	return rule.MaxLength, true
}

// IsDangerousKey reports whether key may alter shared object behavior.
func (t *PatternTable) IsDangerousKey(key string) bool {
	return contains(t.DangerousKeys, key)
}
