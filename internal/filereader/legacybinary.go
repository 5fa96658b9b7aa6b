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
	"encoding/binary"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Legacy binary layout:
//
//	magic "QLB1"
//	uint16 column count
//	per column: uint16 name length, name bytes
//	per record: uint16 field count (must match columns), then per field a
//	uint32 length (nullFieldLen marks null) followed by that many bytes of
//	UTF-8 text.
//
// Lengths are big-endian. There is no per-record sync marker, so any framing
// damage is unrecoverable.
const (
	legacyBinaryMagic = "QLB1"
	nullFieldLen      = 0xFFFFFFFF
	maxFieldLen       = 16 << 20
	maxColumnCount    = 4096
)

// LegacyBinaryReader reads length-prefixed binary export files as raw
// records.
type LegacyBinaryReader struct {
	reader *bufio.Reader
	source string
	names  []string
	closer io.Closer
	closed bool
	recnum int64
}

var _ Reader = (*LegacyBinaryReader)(nil)

// NewLegacyBinaryReader creates a LegacyBinaryReader over the given stream
// and consumes the file header. The reader takes ownership of the closer.
func NewLegacyBinaryReader(r io.ReadCloser, source string) (*LegacyBinaryReader, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	magic := make([]byte, len(legacyBinaryMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		drainClose(r)
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(magic, []byte(legacyBinaryMagic)) {
		drainClose(r)
		return nil, fmt.Errorf("bad magic %q, not a legacy binary export", magic)
	}

	var colCount uint16
	if err := binary.Read(br, binary.BigEndian, &colCount); err != nil {
		drainClose(r)
		return nil, fmt.Errorf("read column count: %w", err)
	}
	if colCount == 0 || colCount > maxColumnCount {
		drainClose(r)
		return nil, fmt.Errorf("implausible column count %d", colCount)
	}

	names := make([]string, colCount)
	for i := range names {
		var nameLen uint16
		if err := binary.Read(br, binary.BigEndian, &nameLen); err != nil {
			drainClose(r)
			return nil, fmt.Errorf("read column %d name length: %w", i, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			drainClose(r)
			return nil, fmt.Errorf("read column %d name: %w", i, err)
		}
		names[i] = string(name)
	}

	return &LegacyBinaryReader{
		reader: br,
		source: source,
		names:  names,
		closer: r,
	}, nil
}

// Names returns the column names from the file header.
func (r *LegacyBinaryReader) Names() []string {
	return r.names
}

// Next returns the next raw record. Null fields are omitted from the record.
// Any structural damage is a fatal framing error since record boundaries
// cannot be re-found.
func (r *LegacyBinaryReader) Next(ctx context.Context) (*RawRecord, error) {
	if r.closed {
		return nil, io.EOF
	}

	var fieldCount uint16
	if err := binary.Read(r.reader, binary.BigEndian, &fieldCount); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, r.framingErr("read field count", err)
	}
	r.recnum++

	if int(fieldCount) != len(r.names) {
		return nil, r.framingErr(
			fmt.Sprintf("record has %d fields, header declared %d", fieldCount, len(r.names)), nil)
	}

	names := make([]string, 0, fieldCount)
	fields := make([]string, 0, fieldCount)
	for i := 0; i < int(fieldCount); i++ {
		var fieldLen uint32
		if err := binary.Read(r.reader, binary.BigEndian, &fieldLen); err != nil {
			return nil, r.framingErr(fmt.Sprintf("read field %d length", i), err)
		}
		if fieldLen == nullFieldLen {
			continue
		}
		if fieldLen > maxFieldLen {
			return nil, r.framingErr(fmt.Sprintf("field %d length %d exceeds limit", i, fieldLen), nil)
		}
		value := make([]byte, fieldLen)
		if _, err := io.ReadFull(r.reader, value); err != nil {
			return nil, r.framingErr(fmt.Sprintf("read field %d payload", i), err)
		}
		names = append(names, r.names[i])
		fields = append(fields, string(value))
	}

	recordsInCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("reader", "legacybin"),
	))
	return &RawRecord{
		Names:  names,
		Fields: fields,
		Source: r.source,
		Line:   r.recnum,
		Offset: -1,
	}, nil
}

func (r *LegacyBinaryReader) framingErr(reason string, err error) *FramingError {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return &FramingError{
		Source: r.source,
		Line:   r.recnum,
		Reason: reason,
		Err:    err,
	}
}

// Close closes the reader and the underlying stream.
func (r *LegacyBinaryReader) Close() error {
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
