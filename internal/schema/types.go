// Copyright (C) 2025 Quartzdata, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package schema defines the semantic column types of a conversion run and
// resolves a target schema either from an explicit declaration (manifest) or
// by sampling records and inferring the narrowest type per column.
package schema

import (
	"fmt"
	"strings"
)

// SemanticType identifies the target type of a column. The declaration order
// of the numeric members doubles as the widening lattice used during
// inference: Int64 widens to Float64, and anything that fails a numeric
// parse widens to Utf8.
type SemanticType int

const (
	TypeUnknown SemanticType = iota
	TypeInt64
	TypeFloat64
	TypeBoolean
	TypeUtf8
	TypeDate
	TypeTimestamp
	TypeDecimal
	TypeBinary
)

func (t SemanticType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "double"
	case TypeBoolean:
		return "bool"
	case TypeUtf8:
		return "string"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	case TypeDecimal:
		return "decimal"
	case TypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Widen returns the narrowest type that losslessly represents both inputs.
// Equal types widen to themselves, Int64 and Float64 widen to Float64, and
// every other mixed pair lands on Utf8. Only Int64, Float64, Boolean, Date
// and Timestamp participate in inference; Decimal and Binary are
// declaration-only.
func Widen(a, b SemanticType) SemanticType {
	if a == TypeUnknown {
		return b
	}
	if b == TypeUnknown {
		return a
	}
	if a == b {
		return a
	}
	if (a == TypeInt64 && b == TypeFloat64) || (a == TypeFloat64 && b == TypeInt64) {
		return TypeFloat64
	}
	return TypeUtf8
}

// ColumnDef describes a single column of the resolved schema.
type ColumnDef struct {
	Name     string
	Type     SemanticType
	Nullable bool

	// Precision and Scale apply only to TypeDecimal columns.
	Precision int
	Scale     int
}

func (c ColumnDef) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte(':')
	if c.Type == TypeDecimal {
		fmt.Fprintf(&sb, "decimal(%d,%d)", c.Precision, c.Scale)
	} else {
		sb.WriteString(c.Type.String())
	}
	if !c.Nullable {
		sb.WriteString(" not null")
	}
	return sb.String()
}

// Schema is the ordered column list shared read-only by every stage of a
// conversion run. It is immutable once resolved.
type Schema struct {
	columns []ColumnDef
	byName  map[string]int
}

// New creates a Schema from an ordered column list. Duplicate column names
// are rejected.
func New(columns []ColumnDef) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("schema requires at least one column")
	}
	byName := make(map[string]int, len(columns))
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if col.Type == TypeUnknown {
			return nil, fmt.Errorf("column %q has no type", col.Name)
		}
		if _, dup := byName[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		byName[col.Name] = i
	}
	cols := make([]ColumnDef, len(columns))
	copy(cols, columns)
	return &Schema{columns: cols, byName: byName}, nil
}

// Columns returns the ordered column definitions. Callers must not mutate
// the returned slice.
func (s *Schema) Columns() []ColumnDef {
	return s.columns
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Column returns the definition at the given position.
func (s *Schema) Column(i int) ColumnDef {
	return s.columns[i]
}

// Lookup returns the column with the given name.
func (s *Schema) Lookup(name string) (ColumnDef, bool) {
	if i, ok := s.byName[name]; ok {
		return s.columns[i], true
	}
	return ColumnDef{}, false
}

// Index returns the position of the named column, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.byName[name]; ok {
		return i
	}
	return -1
}

func (s *Schema) String() string {
	parts := make([]string, len(s.columns))
	for i, col := range s.columns {
		parts[i] = col.String()
	}
	return strings.Join(parts, ", ")
}
