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
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type legacyBuilder struct {
	buf bytes.Buffer
}

func newLegacyBuilder(columns ...string) *legacyBuilder {
	b := &legacyBuilder{}
	b.buf.WriteString(legacyBinaryMagic)
	_ = binary.Write(&b.buf, binary.BigEndian, uint16(len(columns)))
	for _, col := range columns {
		_ = binary.Write(&b.buf, binary.BigEndian, uint16(len(col)))
		b.buf.WriteString(col)
	}
	return b
}

// addRecord appends a record; a nil pointer marks a null field.
func (b *legacyBuilder) addRecord(fields ...*string) *legacyBuilder {
	_ = binary.Write(&b.buf, binary.BigEndian, uint16(len(fields)))
	for _, f := range fields {
		if f == nil {
			_ = binary.Write(&b.buf, binary.BigEndian, uint32(nullFieldLen))
			continue
		}
		_ = binary.Write(&b.buf, binary.BigEndian, uint32(len(*f)))
		b.buf.WriteString(*f)
	}
	return b
}

func (b *legacyBuilder) stream() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b.buf.Bytes()))
}

func strp(s string) *string { return &s }

func TestLegacyBinaryReader_Basic(t *testing.T) {
	stream := newLegacyBuilder("id", "name").
		addRecord(strp("1"), strp("alice")).
		addRecord(strp("2"), strp("bob")).
		stream()

	r, err := NewLegacyBinaryReader(stream, "test.bin")
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.Equal(t, []string{"id", "name"}, r.Names())

	rec, err := r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, rec.Names)
	assert.Equal(t, []string{"1", "alice"}, rec.Fields)
	assert.Equal(t, int64(-1), rec.Offset)

	rec, err = r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "bob"}, rec.Fields)

	_, err = r.Next(context.TODO())
	assert.Equal(t, io.EOF, err)
}

func TestLegacyBinaryReader_NullFieldsOmitted(t *testing.T) {
	stream := newLegacyBuilder("id", "name").
		addRecord(strp("1"), nil).
		stream()

	r, err := NewLegacyBinaryReader(stream, "test.bin")
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	rec, err := r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, rec.Names)
	assert.Equal(t, []string{"1"}, rec.Fields)
}

func TestLegacyBinaryReader_BadMagic(t *testing.T) {
	stream := io.NopCloser(bytes.NewReader([]byte("NOPE....")))
	_, err := NewLegacyBinaryReader(stream, "test.bin")
	assert.Error(t, err)
}

func TestLegacyBinaryReader_TruncatedRecordIsFatal(t *testing.T) {
	b := newLegacyBuilder("id").addRecord(strp("1"))
	full := b.buf.Bytes()
	truncated := full[:len(full)-1]

	r, err := NewLegacyBinaryReader(io.NopCloser(bytes.NewReader(truncated)), "test.bin")
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.Next(context.TODO())
	var frErr *FramingError
	require.ErrorAs(t, err, &frErr)
	assert.True(t, errors.Is(err, ErrFraming))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestLegacyBinaryReader_FieldCountMismatchIsFatal(t *testing.T) {
	b := newLegacyBuilder("id", "name")
	_ = binary.Write(&b.buf, binary.BigEndian, uint16(3))

	r, err := NewLegacyBinaryReader(b.stream(), "test.bin")
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.Next(context.TODO())
	var frErr *FramingError
	require.ErrorAs(t, err, &frErr)
}
