// Package schema turns the declarative table file into idempotent DDL.
package schema

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rasnes/stock-warehouse-etl/template"
	"gopkg.in/yaml.v3"
)

var (
	identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)
	// Column types are restricted to words, digits, spaces, commas and parentheses, e.g. DECIMAL(18, 4).
	columnType = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ]*(\(\s*\d+(\s*,\s*\d+)?\s*\))?(\[\])?$`)
)

const createTable = "CREATE TABLE IF NOT EXISTS {{.Table}} ({{join .Columns \", \"}});"

type Column struct {
	Name string
	Type string
}

type Table struct {
	Name    string
	Columns []Column
}

// Schema lists tables in file order.
type Schema struct {
	Tables []Table
}

// Execer runs a single statement.
type Execer interface {
	Exec(ctx context.Context, query string) error
}

// ValidateIdentifier accepts plain or dotted (schema.table) SQL identifiers.
func ValidateIdentifier(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("invalid SQL identifier %q", name)
	}
	return nil
}

// LoadFile reads the schema file at path.
func LoadFile(path string) (Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to open schema file %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a mapping of table name to an ordered mapping of column name to
// column type. Column order is preserved.
func Load(r io.Reader) (Schema, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return Schema{}, fmt.Errorf("schema file is empty")
		}
		return Schema{}, fmt.Errorf("failed to parse schema file: %w", err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return Schema{}, fmt.Errorf("schema file must be a mapping of table name to columns")
	}

	doc := root.Content[0]
	var s Schema
	for i := 0; i+1 < len(doc.Content); i += 2 {
		name, cols := doc.Content[i].Value, doc.Content[i+1]
		if err := ValidateIdentifier(name); err != nil {
			return Schema{}, err
		}
		if cols.Kind != yaml.MappingNode || len(cols.Content) == 0 {
			return Schema{}, fmt.Errorf("table %s must map at least one column to a type", name)
		}

		table := Table{Name: name}
		for j := 0; j+1 < len(cols.Content); j += 2 {
			col := Column{Name: cols.Content[j].Value, Type: strings.TrimSpace(cols.Content[j+1].Value)}
			if err := ValidateIdentifier(col.Name); err != nil || strings.Contains(col.Name, ".") {
				return Schema{}, fmt.Errorf("table %s: invalid column name %q", name, col.Name)
			}
			if !columnType.MatchString(col.Type) {
				return Schema{}, fmt.Errorf("table %s: invalid type %q for column %s", name, col.Type, col.Name)
			}
			table.Columns = append(table.Columns, col)
		}
		s.Tables = append(s.Tables, table)
	}

	if len(s.Tables) == 0 {
		return Schema{}, fmt.Errorf("schema file defines no tables")
	}
	return s, nil
}

// Statements renders one CREATE TABLE IF NOT EXISTS per table, in file order.
func (s Schema) Statements() ([]string, error) {
	stmts := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, c.Name+" "+c.Type)
		}
		stmt, err := template.Render("create_table", createTable, map[string]any{
			"Table":   t.Name,
			"Columns": cols,
		})
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Table returns the named table, compared case-insensitively.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Ensure creates every missing table. Running it again is a no-op.
func Ensure(ctx context.Context, exec Execer, s Schema) error {
	stmts, err := s.Statements()
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("error creating table %s: %w", s.Tables[i].Name, err)
		}
	}
	return nil
}
