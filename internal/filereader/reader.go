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

// Package filereader provides streaming decoders for the supported source
// formats (delimited text, JSON lines, fixed width, legacy binary exports).
// Each reader produces a lazy, single-pass sequence of raw records; callers
// construct readers directly and drive them to io.EOF.
package filereader

import (
	"context"
	"fmt"
	"io"
)

// Format identifies a source file format.
type Format string

const (
	FormatCSV        Format = "csv"
	FormatTSV        Format = "tsv"
	FormatJSONLines  Format = "jsonl"
	FormatFixedWidth Format = "fixedwidth"
	FormatLegacyBin  Format = "legacybin"
)

// ParseFormat validates a format name from configuration or flags.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatTSV, FormatJSONLines, FormatFixedWidth, FormatLegacyBin:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown source format %q", s)
	}
}

// RawRecord is one untyped record plus provenance. Fields are raw text
// aligned with Names; a missing field is represented by the record being
// shorter than Names. Records are ephemeral: the coercion layer consumes
// and discards them.
type RawRecord struct {
	// Names are the column names, shared across all records of a reader.
	// Callers must not mutate the slice.
	Names []string
	// Fields holds the raw field text in source order.
	Fields []string
	// Source is the originating file path.
	Source string
	// Line is the 1-based record number within the source.
	Line int64
	// Offset is the byte offset of the record start, when the format
	// supports offset-based resumption (-1 otherwise).
	Offset int64
}

// Reader is the core interface for streaming raw records from a source.
type Reader interface {
	// Next returns the next record. It returns io.EOF at end of stream,
	// a *RecordError for a malformed record that does not corrupt stream
	// alignment, and a *FramingError (fatal) when alignment is lost.
	Next(ctx context.Context) (*RawRecord, error)

	// Close releases any resources held by the reader.
	Close() error
}

// Resumable is implemented by readers that can restart from a byte offset
// after a partial failure. Buffered in-memory formats do not implement it.
type Resumable interface {
	// ResumeOffset returns the byte offset from which a new reader could
	// continue after the most recently returned record.
	ResumeOffset() int64
}

// drainClose closes an io.Closer ignoring the error, for paths where a
// read error is already being returned.
func drainClose(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
