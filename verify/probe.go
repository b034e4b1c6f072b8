package verify

import (
	"fmt"
	"strings"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/statement"
)

const (
	ECode060201 = e.Code0602 + "01"
	ECode060202 = e.Code0602 + "02"
	ECode060203 = e.Code0602 + "03"
	ECode060204 = e.Code0602 + "04"
	ECode060205 = e.Code0602 + "05"
	ECode060206 = e.Code0602 + "06"
)

// ProbeType what a probe checks
type ProbeType string

const (
	ProbeTable      ProbeType = "table"      // Table exists
	ProbeColumn     ProbeType = "column"     // Column exists on the table
	ProbeIndex      ProbeType = "index"      // Named index exists on the table
	ProbeConstraint ProbeType = "constraint" // Named constraint exists on the table
	ProbeMinRows    ProbeType = "min-rows"   // Table has at least MinRows rows
	ProbeQuery      ProbeType = "query"      // Read only query returns exactly Rows rows
)

// Probe a post migration expectation about the live schema
type Probe struct {
	Type    ProbeType `yaml:"type"`
	Table   string    `yaml:"table,omitempty"`
	Column  string    `yaml:"column,omitempty"`
	Name    string    `yaml:"name,omitempty"` // Index or constraint name
	MinRows int64     `yaml:"min_rows,omitempty"`
	Query   string    `yaml:"query,omitempty"`
	Rows    int64     `yaml:"rows,omitempty"`
	// Absent inverts existence probes, e.g. a column that was dropped
	Absent bool `yaml:"absent,omitempty"`
}

// TableProbe expects the table to exist
func TableProbe(table string) *Probe {
	return &Probe{Type: ProbeTable, Table: table}
}

// ColumnProbe expects the column to exist on the table
func ColumnProbe(table, column string) *Probe {
	return &Probe{Type: ProbeColumn, Table: table, Column: column}
}

// IndexProbe expects the named index to exist on the table
func IndexProbe(table, index string) *Probe {
	return &Probe{Type: ProbeIndex, Table: table, Name: index}
}

// ConstraintProbe expects the named constraint to exist on the table
func ConstraintProbe(table, constraint string) *Probe {
	return &Probe{Type: ProbeConstraint, Table: table, Name: constraint}
}

// MinRowsProbe expects the table to have at least n rows
func MinRowsProbe(table string, n int64) *Probe {
	return &Probe{Type: ProbeMinRows, Table: table, MinRows: n}
}

// QueryProbe expects the read only query to return exactly n rows
func QueryProbe(query string, n int64) *Probe {
	return &Probe{Type: ProbeQuery, Query: query, Rows: n}
}

// ParseColumnProbe parses "table.column"
func ParseColumnProbe(s string) (p *Probe, err error) {
	table, column, ok := strings.Cut(s, ".")
	if !ok || table == "" || column == "" {
		return nil, e.N(ECode060201, fmt.Sprintf("expected table.column, got %q", s))
	}
	return ColumnProbe(table, column), nil
}

// Validate checks the probe has the fields its type needs
func (p *Probe) Validate() (err error) {
	switch p.Type {
	case ProbeTable, ProbeMinRows:
		if p.Table == "" {
			return e.N(ECode060202, fmt.Sprintf("%s probe requires a table", p.Type))
		}
	case ProbeColumn:
		if p.Table == "" || p.Column == "" {
			return e.N(ECode060203, "column probe requires a table and a column")
		}
	case ProbeIndex, ProbeConstraint:
		if p.Table == "" || p.Name == "" {
			return e.N(ECode060204, fmt.Sprintf("%s probe requires a table and a name", p.Type))
		}
	case ProbeQuery:
		if !statement.New(p.Query, 1).IsReadOnly() {
			return e.N(ECode060205, "query probe requires a read only query")
		}
	default:
		return e.N(ECode060206, fmt.Sprintf("unknown probe type %q", p.Type))
	}

	return nil
}

// String describes the probe for reports
func (p *Probe) String() string {
	not := ""
	if p.Absent {
		not = "no "
	}

	switch p.Type {
	case ProbeTable:
		return fmt.Sprintf("%stable %s", not, p.Table)
	case ProbeColumn:
		return fmt.Sprintf("%scolumn %s.%s", not, p.Table, p.Column)
	case ProbeIndex:
		return fmt.Sprintf("%sindex %s on %s", not, p.Name, p.Table)
	case ProbeConstraint:
		return fmt.Sprintf("%sconstraint %s on %s", not, p.Name, p.Table)
	case ProbeMinRows:
		return fmt.Sprintf("%s has at least %d rows", p.Table, p.MinRows)
	case ProbeQuery:
		return fmt.Sprintf("%q returns %d rows", statement.New(p.Query, 1).Summary(60), p.Rows)
	}

	return string(p.Type)
}
