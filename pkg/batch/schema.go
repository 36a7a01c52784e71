package batch

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileType describes one recognized type tag and the number of columns its
// files must have.
type FileType struct {
	Name    Type `yaml:"name"`
	Columns int  `yaml:"columns"`
}

// Schema describes the source layout: how member files are named and how their
// contents are shaped. The first entry of FileTypes is the reference type.
type Schema struct {
	Extension       string     `yaml:"extension"`
	NameDelimiter   string     `yaml:"name_delimiter"`
	ColumnSeparator string     `yaml:"column_separator"`
	Enclosing       string     `yaml:"enclosing"`
	Encoding        string     `yaml:"encoding"`
	FileTypes       []FileType `yaml:"types"`

	columns map[Type]int
}

// DefaultSchema returns the built-in layout: CSV files named
// {customer}_{YYYYMMDD}_{HHMM}_{type}.csv, double-quoted fields, UTF-8.
func DefaultSchema() *Schema {
	s := &Schema{
		Extension:       "csv",
		NameDelimiter:   "_",
		ColumnSeparator: ",",
		Enclosing:       `"`,
		Encoding:        "UTF-8-SIG",
		FileTypes: []FileType{
			{Name: "type1", Columns: 4},
			{Name: "type2", Columns: 4},
			{Name: "type3", Columns: 14},
			{Name: "type4", Columns: 3},
			{Name: "type5", Columns: 2},
			{Name: "type7", Columns: 23},
			{Name: "type8", Columns: 21},
			{Name: "type9", Columns: 5},
			{Name: "type10", Columns: 3},
		},
	}
	s.index()
	return s
}

// LoadSchema reads a YAML schema file. Unset layout fields fall back to the
// defaults; the type list must be given.
func LoadSchema(filename string) (*Schema, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSchema(data)
}

func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	def := DefaultSchema()
	if s.Extension == "" {
		s.Extension = def.Extension
	}
	if s.NameDelimiter == "" {
		s.NameDelimiter = def.NameDelimiter
	}
	if s.ColumnSeparator == "" {
		s.ColumnSeparator = def.ColumnSeparator
	}
	if s.Enclosing == "" {
		s.Enclosing = def.Enclosing
	}
	if s.Encoding == "" {
		s.Encoding = def.Encoding
	}
	s.Extension = strings.TrimPrefix(s.Extension, ".")
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.index()
	return &s, nil
}

// Validate checks that the type list is usable.
func (s *Schema) Validate() error {
	if len(s.FileTypes) == 0 {
		return errors.New("schema has no types")
	}
	seen := map[Type]struct{}{}
	for i, ft := range s.FileTypes {
		if ft.Name == "" {
			return fmt.Errorf("schema type %d has no name", i+1)
		}
		if strings.Contains(string(ft.Name), s.NameDelimiter) {
			return fmt.Errorf("schema type %q contains the name delimiter %q", ft.Name, s.NameDelimiter)
		}
		if ft.Columns <= 0 {
			return fmt.Errorf("schema type %q: columns must be positive", ft.Name)
		}
		if _, ok := seen[ft.Name]; ok {
			return fmt.Errorf("schema type %q is listed twice", ft.Name)
		}
		seen[ft.Name] = struct{}{}
	}
	return nil
}

func (s *Schema) index() {
	s.columns = make(map[Type]int, len(s.FileTypes))
	for _, ft := range s.FileTypes {
		s.columns[ft.Name] = ft.Columns
	}
}

// Types returns the recognized type tags in schema order.
func (s *Schema) Types() []Type {
	ts := make([]Type, 0, len(s.FileTypes))
	for _, ft := range s.FileTypes {
		ts = append(ts, ft.Name)
	}
	return ts
}

// Reference returns the type whose member hosts the batch status.
func (s *Schema) Reference() Type {
	if len(s.FileTypes) == 0 {
		return ""
	}
	return s.FileTypes[0].Name
}

func (s *Schema) Recognized(t Type) bool {
	_, ok := s.Columns(t)
	return ok
}

// Columns returns the expected column count for t.
func (s *Schema) Columns(t Type) (int, bool) {
	if s.columns == nil {
		for _, ft := range s.FileTypes {
			if ft.Name == t {
				return ft.Columns, true
			}
		}
		return 0, false
	}
	n, ok := s.columns[t]
	return n, ok
}
