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
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// FixedWidthColumn describes one column slice of a fixed-width line.
// Start is a zero-based byte position.
type FixedWidthColumn struct {
	Name  string
	Start int
	Width int
}

// FixedWidthReader reads column-aligned text files as raw records. Each line
// is sliced by the configured column layout and the slices are space-trimmed.
type FixedWidthReader struct {
	reader  *bufio.Reader
	source  string
	columns []FixedWidthColumn
	names   []string
	minLine int
	closer  io.Closer
	closed  bool
	line    int64
	offset  int64
}

var _ Reader = (*FixedWidthReader)(nil)
var _ Resumable = (*FixedWidthReader)(nil)

// NewFixedWidthReader creates a FixedWidthReader over the given stream using
// the supplied column layout. The reader takes ownership of the closer.
func NewFixedWidthReader(r io.ReadCloser, source string, columns []FixedWidthColumn) (*FixedWidthReader, error) {
	if len(columns) == 0 {
		drainClose(r)
		return nil, fmt.Errorf("fixed-width layout has no columns")
	}

	names := make([]string, len(columns))
	minLine := 0
	for i, col := range columns {
		if col.Name == "" {
			drainClose(r)
			return nil, fmt.Errorf("fixed-width column %d has no name", i)
		}
		if col.Start < 0 || col.Width <= 0 {
			drainClose(r)
			return nil, fmt.Errorf("fixed-width column %q has invalid bounds", col.Name)
		}
		names[i] = col.Name
		if end := col.Start + col.Width; end > minLine {
			minLine = end
		}
	}

	return &FixedWidthReader{
		reader:  bufio.NewReaderSize(r, 64*1024),
		source:  source,
		columns: columns,
		names:   names,
		minLine: minLine,
		closer:  r,
	}, nil
}

// Next returns the next raw record. Lines shorter than the layout are
// recoverable per-line errors.
func (r *FixedWidthReader) Next(ctx context.Context) (*RawRecord, error) {
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
		trimmed := bytes.TrimRight(data, "\r\n")
		if len(trimmed) == 0 {
			if err == io.EOF {
				return nil, io.EOF
			}
			r.line++
			continue
		}
		r.line++

		if len(trimmed) < r.minLine {
			recordsDroppedCounter.Add(ctx, 1, otelmetric.WithAttributes(
				attribute.String("reader", "fixedwidth"),
				attribute.String("reason", "short_line"),
			))
			return nil, &RecordError{
				Source: r.source,
				Line:   r.line,
				Reason: fmt.Sprintf("line is %d bytes, layout needs %d", len(trimmed), r.minLine),
			}
		}

		fields := make([]string, len(r.columns))
		for i, col := range r.columns {
			fields[i] = strings.TrimSpace(string(trimmed[col.Start : col.Start+col.Width]))
		}

		recordsInCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("reader", "fixedwidth"),
		))
		return &RawRecord{
			Names:  r.names,
			Fields: fields,
			Source: r.source,
			Line:   r.line,
			Offset: lineStart,
		}, nil
	}
}

// ResumeOffset returns the byte offset of the line after the last record
// returned by Next.
func (r *FixedWidthReader) ResumeOffset() int64 {
	return r.offset
}

// Close closes the reader and the underlying stream.
func (r *FixedWidthReader) Close() error {
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
