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

package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ManifestColumn is the JSON shape of one declared column.
type ManifestColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// Manifest is the on-disk schema declaration: an ordered column list.
type Manifest struct {
	Columns []ManifestColumn `json:"columns"`
}

// dtypeAliases maps the human type spellings accepted in manifests to
// semantic types. Decimal is handled separately since it carries parameters.
var dtypeAliases = map[string]SemanticType{
	"int":       TypeInt64,
	"int64":     TypeInt64,
	"long":      TypeInt64,
	"double":    TypeFloat64,
	"float":     TypeFloat64,
	"float64":   TypeFloat64,
	"real":      TypeFloat64,
	"number":    TypeFloat64,
	"bool":      TypeBoolean,
	"boolean":   TypeBoolean,
	"string":    TypeUtf8,
	"utf8":      TypeUtf8,
	"text":      TypeUtf8,
	"date":      TypeDate,
	"date32":    TypeDate,
	"timestamp": TypeTimestamp,
	"datetime":  TypeTimestamp,
	"binary":    TypeBinary,
	"bytes":     TypeBinary,
}

var decimalPattern = regexp.MustCompile(`^decimal\((\d+)\s*,\s*(\d+)\)$`)
var timestampPattern = regexp.MustCompile(`^timestamp\[[^\]]*\]$`)

// ParseType converts a manifest type string such as "int64", "decimal(18,4)"
// or "timestamp[us]" into a ColumnDef type with parameters.
func ParseType(s string) (SemanticType, int, int, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))

	if t, ok := dtypeAliases[normalized]; ok {
		return t, 0, 0, nil
	}
	if m := decimalPattern.FindStringSubmatch(normalized); m != nil {
		precision, _ := strconv.Atoi(m[1])
		scale, _ := strconv.Atoi(m[2])
		if precision <= 0 || precision > 38 {
			return TypeUnknown, 0, 0, fmt.Errorf("decimal precision %d out of range (1..38)", precision)
		}
		if scale < 0 || scale > precision {
			return TypeUnknown, 0, 0, fmt.Errorf("decimal scale %d out of range (0..%d)", scale, precision)
		}
		return TypeDecimal, precision, scale, nil
	}
	// Unit annotations are accepted but only microseconds are produced.
	if timestampPattern.MatchString(normalized) {
		return TypeTimestamp, 0, 0, nil
	}
	return TypeUnknown, 0, 0, fmt.Errorf("unknown type %q", s)
}

// formatType renders a ColumnDef type as a manifest type string.
func formatType(c ColumnDef) string {
	if c.Type == TypeDecimal {
		return fmt.Sprintf("decimal(%d,%d)", c.Precision, c.Scale)
	}
	return c.Type.String()
}

// LoadManifest reads a JSON manifest file and resolves it into a Schema.
func LoadManifest(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m.Resolve()
}

// Resolve converts the manifest into an immutable Schema.
func (m *Manifest) Resolve() (*Schema, error) {
	if len(m.Columns) == 0 {
		return nil, &ResolutionError{Reason: "manifest declares no columns"}
	}
	columns := make([]ColumnDef, 0, len(m.Columns))
	for _, mc := range m.Columns {
		typ, precision, scale, err := ParseType(mc.Type)
		if err != nil {
			return nil, &ResolutionError{Reason: fmt.Sprintf("column %q: %v", mc.Name, err)}
		}
		columns = append(columns, ColumnDef{
			Name:      mc.Name,
			Type:      typ,
			Nullable:  mc.Nullable,
			Precision: precision,
			Scale:     scale,
		})
	}
	return New(columns)
}

// EncodeManifest renders a Schema as indented manifest JSON.
func EncodeManifest(s *Schema) ([]byte, error) {
	m := Manifest{Columns: make([]ManifestColumn, 0, s.Len())}
	for _, col := range s.Columns() {
		m.Columns = append(m.Columns, ManifestColumn{
			Name:     col.Name,
			Type:     formatType(col),
			Nullable: col.Nullable,
		})
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// SaveManifest writes a Schema as a JSON manifest file.
func SaveManifest(path string, s *Schema) error {
	data, err := EncodeManifest(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}
