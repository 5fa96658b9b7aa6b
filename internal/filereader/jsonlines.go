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

package filereader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// JSONLinesReader reads newline-delimited JSON objects as raw records.
// Framing is line-based, so a malformed object only loses that line.
type JSONLinesReader struct {
	reader *bufio.Reader
	source string
	closer io.Closer
	closed bool
	line   int64
	offset int64
}

var _ Reader = (*JSONLinesReader)(nil)
var _ Resumable = (*JSONLinesReader)(nil)

// NewJSONLinesReader creates a JSONLinesReader over the given stream. The
// reader takes ownership of the closer. StartOffset must point at a line
// boundary from a prior ResumeOffset.
func NewJSONLinesReader(r io.ReadCloser, source string, startOffset int64) (*JSONLinesReader, error) {
	if startOffset > 0 {
		seeker, ok := r.(io.Seeker)
		if !ok {
			drainClose(r)
			return nil, fmt.Errorf("resuming from an offset requires a seekable source")
		}
		if _, err := seeker.Seek(startOffset, io.SeekStart); err != nil {
			drainClose(r)
			return nil, fmt.Errorf("seek to resume offset %d: %w", startOffset, err)
		}
	}

	return &JSONLinesReader{
		reader: bufio.NewReaderSize(r, 64*1024),
		source: source,
		closer: r,
		offset: startOffset,
	}, nil
}

// Next returns the next raw record, flattening the object's top-level values
// to their text forms. Null fields are omitted entirely.
func (r *JSONLinesReader) Next(ctx context.Context) (*RawRecord, error) {
	if r.closed {
		return nil, io.EOF
	}

	for {
		lineStart := r.offset
		data, err := r.reader.ReadBytes('\n')
		r.offset += int64(len(data))
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read line %d: %w", r.line+1, err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			if err == io.EOF {
				return nil, io.EOF
			}
			r.line++
			continue
		}
		r.line++

		obj, decErr := decodeJSONObject(data)
		if decErr != nil {
			recordsDroppedCounter.Add(ctx, 1, otelmetric.WithAttributes(
				attribute.String("reader", "jsonlines"),
				attribute.String("reason", "invalid_json"),
			))
			return nil, &RecordError{
				Source: r.source,
				Line:   r.line,
				Reason: "invalid JSON object",
				Err:    decErr,
			}
		}

		names, fields := flattenObject(obj)
		recordsInCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("reader", "jsonlines"),
		))
		return &RawRecord{
			Names:  names,
			Fields: fields,
			Source: r.source,
			Line:   r.line,
			Offset: lineStart,
		}, nil
	}
}

func decodeJSONObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("line is not a JSON object")
	}
	return obj, nil
}

// flattenObject renders top-level values as text in sorted key order.
// json.Number keeps its lexical form so numeric width survives inference.
// Nested structures are carried as compact JSON text.
func flattenObject(obj map[string]any) ([]string, []string) {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, len(keys))
	for i, k := range keys {
		switch v := obj[k].(type) {
		case string:
			fields[i] = v
		case json.Number:
			fields[i] = v.String()
		case bool:
			fields[i] = strconv.FormatBool(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				fields[i] = fmt.Sprintf("%v", v)
			} else {
				fields[i] = string(encoded)
			}
		}
	}
	return keys, fields
}

// ResumeOffset returns the byte offset of the line after the last record
// returned by Next.
func (r *JSONLinesReader) ResumeOffset() int64 {
	return r.offset
}

// Close closes the reader and the underlying stream.
func (r *JSONLinesReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.closer != nil {
		err = r.closer.Close()
		r.closer = nil
	}
	r.reader = nil
	return err
}
