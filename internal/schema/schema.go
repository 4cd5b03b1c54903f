// Package schema holds the feature schema: the ordered list of feature
// columns fixed at training time, and the alignment of serving records to it.
package schema

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/churnline/pkg/core"
)

// FileName is the schema file inside an artifact directory.
const FileName = "feature_columns.txt"

// Schema is an immutable ordered list of feature names.
type Schema struct {
	columns []string
	index   map[string]int
}

// New creates a schema. Names are trimmed; empty and duplicate names are
// rejected, as is an empty list.
func New(columns []string) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: feature schema has no columns", core.ErrSchema)
	}
	s := &Schema{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		name := strings.TrimSpace(c)
		if name == "" {
			return nil, fmt.Errorf("%w: empty feature name at position %d", core.ErrSchema, i)
		}
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate feature name %q", core.ErrSchema, name)
		}
		s.columns[i] = name
		s.index[name] = i
	}
	return s, nil
}

// Load reads a schema file with one name per line. Blank lines are ignored.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature schema: %w", err)
	}

	var columns []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		columns = append(columns, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan feature schema %s: %w", path, err)
	}

	s, err := New(columns)
	if err != nil {
		return nil, fmt.Errorf("invalid feature schema %s: %w", path, err)
	}
	return s, nil
}

// Save writes the schema, creating parent directories as needed.
func (s *Schema) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create schema directory: %w", err)
	}
	body := strings.Join(s.columns, "\n") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("failed to write feature schema: %w", err)
	}
	return nil
}

// Columns returns a copy of the ordered names.
func (s *Schema) Columns() []string {
	return append([]string(nil), s.columns...)
}

// Len returns the number of features.
func (s *Schema) Len() int { return len(s.columns) }

// Index returns the position of a feature.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Equal reports whether both schemas list the same names in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.columns) != len(o.columns) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != o.columns[i] {
			return false
		}
	}
	return true
}
