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

// Package coerce converts raw text fields into typed values matching a
// resolved schema. Typed values use a fixed native representation per
// semantic type: int64, float64, bool, string, int32 epoch days for dates,
// int64 UTC microseconds for timestamps, unscaled int64 for decimals and
// []byte for binary.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/quartzdata/parqconv/internal/filereader"
	"github.com/quartzdata/parqconv/internal/pipeline"
	"github.com/quartzdata/parqconv/internal/pipeline/wkk"
	"github.com/quartzdata/parqconv/internal/schema"
)

// Policy decides what happens to a field that fails coercion.
type Policy int

const (
	// PolicyTolerant nulls out a bad field and keeps the record. This is
	// the default, preserving row volume over schema cleanliness.
	PolicyTolerant Policy = iota
	// PolicyStrict rejects the whole record on the first bad field.
	PolicyStrict
)

// Options shape how text values are interpreted.
type Options struct {
	Policy          Policy
	NullTokens      []string
	TrueTokens      []string
	FalseTokens     []string
	DateLayout      string
	TimestampLayout string
}

// DefaultOptions mirrors the token sets used for schema inference so a
// value classified during sampling coerces the same way during conversion.
func DefaultOptions() Options {
	infer := schema.DefaultInferOptions()
	return Options{
		Policy:          PolicyTolerant,
		NullTokens:      infer.NullTokens,
		TrueTokens:      infer.TrueTokens,
		FalseTokens:     infer.FalseTokens,
		DateLayout:      infer.DateLayout,
		TimestampLayout: infer.TimestampLayout,
	}
}

type column struct {
	def   schema.ColumnDef
	key   wkk.RowKey
	parse func(string) (any, error)
}

// Coercer converts raw records to typed rows for one resolved schema.
// Column lookups and parse rules are prepared once at construction.
type Coercer struct {
	opts    Options
	columns map[string]*column
	ordered []*column
	nulls   map[string]struct{}
}

// New builds a Coercer for the given schema.
func New(s *schema.Schema, opts Options) (*Coercer, error) {
	c := &Coercer{
		opts:    opts,
		columns: make(map[string]*column, s.Len()),
		ordered: make([]*column, 0, s.Len()),
		nulls:   make(map[string]struct{}, len(opts.NullTokens)),
	}
	for _, tok := range opts.NullTokens {
		c.nulls[tok] = struct{}{}
	}

	for _, def := range s.Columns() {
		parse, err := c.parserFor(def)
		if err != nil {
			return nil, err
		}
		col := &column{def: def, key: wkk.NewRowKey(def.Name), parse: parse}
		c.columns[def.Name] = col
		c.ordered = append(c.ordered, col)
	}
	return c, nil
}

// CoerceRecord converts rec into row. Fields without a schema column are
// dropped. Under the tolerant policy a failed field is left null and its
// FieldCoercionError is returned in the soft slice; the record survives.
// Under the strict policy the first failure is returned as err and the
// caller must discard the record.
func (c *Coercer) CoerceRecord(rec *filereader.RawRecord, row pipeline.Row) ([]*FieldCoercionError, error) {
	var soft []*FieldCoercionError
	seen := make(map[string]struct{}, len(rec.Names))

	for i, name := range rec.Names {
		col, ok := c.columns[name]
		if !ok {
			continue
		}
		seen[name] = struct{}{}

		raw := rec.Fields[i]
		if c.isNull(raw) {
			if fce := c.nullCheck(col, rec, raw, "null value"); fce != nil {
				if c.opts.Policy == PolicyStrict {
					return nil, fce
				}
				soft = append(soft, fce)
			}
			continue
		}

		value, err := col.parse(raw)
		if err != nil {
			fce := &FieldCoercionError{
				Source: rec.Source,
				Line:   rec.Line,
				Column: col.def.Name,
				Value:  raw,
				Type:   col.def.Type,
				Reason: "unparseable value",
				Err:    err,
			}
			if c.opts.Policy == PolicyStrict {
				return nil, fce
			}
			soft = append(soft, fce)
			continue
		}
		row[col.key] = value
	}

	// Columns the record never mentioned are nulls too.
	for _, col := range c.ordered {
		if _, ok := seen[col.def.Name]; ok {
			continue
		}
		if fce := c.nullCheck(col, rec, "", "missing field"); fce != nil {
			if c.opts.Policy == PolicyStrict {
				return nil, fce
			}
			soft = append(soft, fce)
		}
	}
	return soft, nil
}

func (c *Coercer) isNull(raw string) bool {
	_, ok := c.nulls[raw]
	return ok
}

func (c *Coercer) nullCheck(col *column, rec *filereader.RawRecord, raw, reason string) *FieldCoercionError {
	if col.def.Nullable {
		return nil
	}
	return &FieldCoercionError{
		Source: rec.Source,
		Line:   rec.Line,
		Column: col.def.Name,
		Value:  raw,
		Type:   col.def.Type,
		Reason: reason + " in non-nullable column",
	}
}

func (c *Coercer) parserFor(def schema.ColumnDef) (func(string) (any, error), error) {
	switch def.Type {
	case schema.TypeInt64:
		return parseInt64, nil
	case schema.TypeFloat64:
		return parseFloat64, nil
	case schema.TypeBoolean:
		return c.parseBool, nil
	case schema.TypeUtf8:
		return func(s string) (any, error) { return s, nil }, nil
	case schema.TypeDate:
		layout := c.opts.DateLayout
		return func(s string) (any, error) { return parseDate(s, layout) }, nil
	case schema.TypeTimestamp:
		layout := c.opts.TimestampLayout
		return func(s string) (any, error) { return parseTimestamp(s, layout) }, nil
	case schema.TypeDecimal:
		precision, scale := def.Precision, def.Scale
		return func(s string) (any, error) { return parseDecimal(s, precision, scale) }, nil
	case schema.TypeBinary:
		return func(s string) (any, error) { return []byte(s), nil }, nil
	default:
		return nil, fmt.Errorf("column %q has uncoercible type %s", def.Name, def.Type)
	}
}

func parseInt64(s string) (any, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func parseFloat64(s string) (any, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Coercer) parseBool(s string) (any, error) {
	for _, tok := range c.opts.TrueTokens {
		if strings.EqualFold(s, tok) {
			return true, nil
		}
	}
	for _, tok := range c.opts.FalseTokens {
		if strings.EqualFold(s, tok) {
			return false, nil
		}
	}
	return nil, fmt.Errorf("%q is not a recognized boolean token", s)
}

func parseDate(s, layout string) (any, error) {
	t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return nil, err
	}
	days := t.Unix() / 86400
	if days < math.MinInt32 || days > math.MaxInt32 {
		return nil, fmt.Errorf("date %q is out of range", s)
	}
	return int32(days), nil
}

func parseTimestamp(s, layout string) (any, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return t.UTC().UnixMicro(), nil
}

// parseDecimal converts decimal text to an unscaled int64 at exactly the
// declared scale. Excess fractional digits are an error rather than a
// silent rounding.
func parseDecimal(s string, precision, scale int) (any, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return nil, fmt.Errorf("empty decimal")
	}

	negative := false
	switch text[0] {
	case '-':
		negative = true
		text = text[1:]
	case '+':
		text = text[1:]
	}

	intPart, fracPart, _ := strings.Cut(text, ".")
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("%q is not a decimal", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > scale {
		return nil, fmt.Errorf("%q has more than %d fractional digits", s, scale)
	}
	fracPart += strings.Repeat("0", scale-len(fracPart))

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		digits = "0"
	}
	if len(digits) > precision {
		return nil, fmt.Errorf("%q exceeds precision %d", s, precision)
	}

	unscaled, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a decimal: %w", s, err)
	}
	if negative {
		unscaled = -unscaled
	}
	return unscaled, nil
}
