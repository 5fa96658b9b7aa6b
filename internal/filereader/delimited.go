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
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// DelimitedOptions shape how a delimited text stream is decoded.
type DelimitedOptions struct {
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune
	// SkipRows is the number of leading rows dropped before the header
	// (vendor banners and the like).
	SkipRows int
	// SkipFooter is the number of trailing rows dropped at end of stream
	// (trailer/checksum lines).
	SkipFooter int
	// ColumnNames, when non-empty, suppresses header-row reading and names
	// the columns explicitly. Required when resuming from StartOffset.
	ColumnNames []string
	// StartOffset resumes reading at the given byte offset. The underlying
	// reader must be seekable and ColumnNames must be set.
	StartOffset int64
}

// DelimitedReader reads CSV/TSV style sources as raw records. Field count
// mismatches are recoverable per-record errors; quoting failures lose stream
// alignment and are fatal.
type DelimitedReader struct {
	reader  *csv.Reader
	source  string
	names   []string
	opts    DelimitedOptions
	closer  io.Closer
	closed  bool
	line    int64
	pending []pendingRecord
	resume  int64
	eof     bool
}

type pendingRecord struct {
	fields []string
	line   int64
	offset int64
}

var _ Reader = (*DelimitedReader)(nil)
var _ Resumable = (*DelimitedReader)(nil)

// NewDelimitedReader creates a DelimitedReader over the given stream. The
// reader takes ownership of the closer. Unless ColumnNames is set, the first
// row after SkipRows is consumed as the header.
func NewDelimitedReader(r io.ReadCloser, source string, opts DelimitedOptions) (*DelimitedReader, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.SkipRows < 0 || opts.SkipFooter < 0 {
		drainClose(r)
		return nil, fmt.Errorf("negative skip counts are not valid")
	}

	if opts.StartOffset > 0 {
		if len(opts.ColumnNames) == 0 {
			drainClose(r)
			return nil, fmt.Errorf("resuming from an offset requires explicit column names")
		}
		seeker, ok := r.(io.Seeker)
		if !ok {
			drainClose(r)
			return nil, fmt.Errorf("resuming from an offset requires a seekable source")
		}
		if _, err := seeker.Seek(opts.StartOffset, io.SeekStart); err != nil {
			drainClose(r)
			return nil, fmt.Errorf("seek to resume offset %d: %w", opts.StartOffset, err)
		}
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	dr := &DelimitedReader{
		reader: cr,
		source: source,
		opts:   opts,
		closer: r,
		resume: opts.StartOffset,
	}

	if opts.StartOffset == 0 {
		for i := 0; i < opts.SkipRows; i++ {
			if _, err := cr.Read(); err != nil {
				drainClose(r)
				return nil, fmt.Errorf("skip leading row %d: %w", i+1, err)
			}
		}
	}

	if len(opts.ColumnNames) > 0 {
		dr.names = opts.ColumnNames
	} else {
		headers, err := cr.Read()
		if err != nil {
			drainClose(r)
			return nil, fmt.Errorf("read header row: %w", err)
		}
		if len(headers) == 0 {
			drainClose(r)
			return nil, fmt.Errorf("source has no header columns")
		}
		dr.names = headers
	}

	// Lock the expected arity so short/long rows surface as csv.ErrFieldCount.
	cr.FieldsPerRecord = len(dr.names)

	return dr, nil
}

// Next returns the next raw record. With SkipFooter > 0 a lookahead window
// holds back the trailing rows so they are never emitted.
func (r *DelimitedReader) Next(ctx context.Context) (*RawRecord, error) {
	if r.closed {
		return nil, io.EOF
	}

	for {
		// Emit from the lookahead window once it is deep enough that the
		// front cannot be a footer row.
		if len(r.pending) > r.opts.SkipFooter {
			return r.popPending(), nil
		}
		if r.eof {
			return nil, io.EOF
		}

		offset := r.reader.InputOffset() + r.resumeBase()
		fields, err := r.reader.Read()
		if err != nil {
			if err == io.EOF {
				r.eof = true
				continue
			}
			r.line++
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
				recordsDroppedCounter.Add(ctx, 1, otelmetric.WithAttributes(
					attribute.String("reader", "delimited"),
					attribute.String("reason", "field_count_mismatch"),
				))
				return nil, &RecordError{
					Source: r.source,
					Line:   r.line,
					Reason: fmt.Sprintf("expected %d fields", len(r.names)),
					Err:    err,
				}
			}
			// Quote state errors mean the parser can no longer find record
			// boundaries reliably.
			return nil, &FramingError{
				Source: r.source,
				Line:   r.line,
				Reason: "unrecoverable parse failure",
				Err:    err,
			}
		}

		r.line++
		recordsInCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("reader", "delimited"),
		))
		r.pending = append(r.pending, pendingRecord{fields: fields, line: r.line, offset: offset})
	}
}

func (r *DelimitedReader) popPending() *RawRecord {
	head := r.pending[0]
	copy(r.pending, r.pending[1:])
	r.pending = r.pending[:len(r.pending)-1]

	// Resuming restarts at the first record not yet handed out.
	if len(r.pending) > 0 {
		r.resume = r.pending[0].offset
	} else {
		r.resume = r.reader.InputOffset() + r.resumeBase()
	}

	return &RawRecord{
		Names:  r.names,
		Fields: head.fields,
		Source: r.source,
		Line:   head.line,
		Offset: head.offset,
	}
}

func (r *DelimitedReader) resumeBase() int64 {
	return r.opts.StartOffset
}

// Names returns the column names in source order.
func (r *DelimitedReader) Names() []string {
	return r.names
}

// ResumeOffset returns the byte offset at which a new reader should start
// to continue after the records emitted so far.
func (r *DelimitedReader) ResumeOffset() int64 {
	return r.resume
}

// Close closes the reader and the underlying stream.
func (r *DelimitedReader) Close() error {
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
