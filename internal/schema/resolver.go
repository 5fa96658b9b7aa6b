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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSchemaResolution is the sentinel for fatal schema resolution failures.
var ErrSchemaResolution = errors.New("schema resolution failed")

// ResolutionError wraps the cause of a failed schema resolution.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaResolution, e.Reason)
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrSchemaResolution
}

// InferOptions shape how sampled string values are classified.
type InferOptions struct {
	// NullTokens are values treated as null (always includes the empty string).
	NullTokens []string
	// TrueTokens and FalseTokens classify a column as Boolean when every
	// non-null sampled value matches one of them.
	TrueTokens  []string
	FalseTokens []string
	// DateLayout and TimestampLayout are Go time layouts. A column infers
	// Date/Timestamp only when the layout parses every non-null sample.
	DateLayout      string
	TimestampLayout string
}

// DefaultInferOptions mirror the defaults of the coercion layer.
func DefaultInferOptions() InferOptions {
	return InferOptions{
		NullTokens:      []string{"", "NULL", "null", "N.A.", "NA"},
		TrueTokens:      []string{"true", "True", "TRUE", "t", "T", "yes", "Y"},
		FalseTokens:     []string{"false", "False", "FALSE", "f", "F", "no", "N"},
		DateLayout:      "2006-01-02",
		TimestampLayout: time.RFC3339,
	}
}

// Builder accumulates sampled values and produces an inferred Schema. Column
// order is the order columns were first observed. The same sample always
// produces the same schema, and a superset of a sample never infers a
// narrower type for any column (widening is monotone).
type Builder struct {
	opts    InferOptions
	order   []string
	columns map[string]*columnState
	sampled int
}

type columnState struct {
	inferred SemanticType
	nullable bool
	nonNull  int
	seen     int
}

// NewBuilder creates a schema builder with the given inference options.
func NewBuilder(opts InferOptions) *Builder {
	return &Builder{
		opts:    opts,
		columns: make(map[string]*columnState),
	}
}

// AddRecord feeds one sampled record, aligned with the given column names.
// A known column absent from a record counts as a null sample: sources that
// drop null fields from the record entirely still infer nullable columns.
func (b *Builder) AddRecord(names []string, values []string) {
	b.sampled++
	for i, name := range names {
		st := b.columns[name]
		if st == nil {
			st = &columnState{}
			b.columns[name] = st
			b.order = append(b.order, name)
		}
		st.seen++
		if i >= len(values) {
			st.nullable = true
			continue
		}
		b.addValue(st, values[i])
	}
}

func (b *Builder) addValue(st *columnState, raw string) {
	if b.isNull(raw) {
		st.nullable = true
		return
	}
	st.nonNull++
	st.inferred = Widen(st.inferred, b.classify(raw))
}

func (b *Builder) isNull(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true
	}
	for _, tok := range b.opts.NullTokens {
		if trimmed == tok {
			return true
		}
	}
	return false
}

// classify returns the narrowest SemanticType representing one value.
// Integer parse is attempted before bool so "1"/"0" stay numeric.
func (b *Builder) classify(raw string) SemanticType {
	trimmed := strings.TrimSpace(raw)

	if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return TypeInt64
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return TypeFloat64
	}
	if b.matchesToken(trimmed, b.opts.TrueTokens) || b.matchesToken(trimmed, b.opts.FalseTokens) {
		return TypeBoolean
	}
	if b.opts.DateLayout != "" {
		if _, err := time.Parse(b.opts.DateLayout, trimmed); err == nil {
			return TypeDate
		}
	}
	if b.opts.TimestampLayout != "" {
		if _, err := time.Parse(b.opts.TimestampLayout, trimmed); err == nil {
			return TypeTimestamp
		}
	}
	return TypeUtf8
}

func (b *Builder) matchesToken(v string, tokens []string) bool {
	for _, tok := range tokens {
		if v == tok {
			return true
		}
	}
	return false
}

// Build resolves the accumulated sample into a Schema. Columns that never
// saw a non-null value resolve to nullable Utf8.
func (b *Builder) Build() (*Schema, error) {
	if b.sampled == 0 {
		return nil, &ResolutionError{Reason: "sample is empty"}
	}
	if len(b.order) == 0 {
		return nil, &ResolutionError{Reason: "no columns detected"}
	}

	columns := make([]ColumnDef, 0, len(b.order))
	for _, name := range b.order {
		st := b.columns[name]
		typ := st.inferred
		if typ == TypeUnknown {
			typ = TypeUtf8
		}
		columns = append(columns, ColumnDef{
			Name: name,
			Type: typ,
			// A column missing from any sampled record was null there.
			Nullable: st.nullable || st.seen < b.sampled,
		})
	}
	return New(columns)
}
