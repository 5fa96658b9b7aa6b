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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLinesReader_Basic(t *testing.T) {
	data := `{"id": 1, "name": "alice", "active": true}
{"id": 2, "name": "bob", "active": false}
`
	r, err := NewJSONLinesReader(newTestStream(data), "test.jsonl", 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	rec, err := r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"active", "id", "name"}, rec.Names)
	assert.Equal(t, []string{"true", "1", "alice"}, rec.Fields)

	rec, err = r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"false", "2", "bob"}, rec.Fields)

	_, err = r.Next(context.TODO())
	assert.Equal(t, io.EOF, err)
}

func TestJSONLinesReader_NullFieldsOmitted(t *testing.T) {
	data := `{"id": 1, "name": null}` + "\n"
	r, err := NewJSONLinesReader(newTestStream(data), "test.jsonl", 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	rec, err := r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, rec.Names)
	assert.Equal(t, []string{"1"}, rec.Fields)
}

func TestJSONLinesReader_NumberLexicalFormPreserved(t *testing.T) {
	data := `{"lat": 40.7500, "count": 9007199254740993}` + "\n"
	r, err := NewJSONLinesReader(newTestStream(data), "test.jsonl", 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	rec, err := r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "lat"}, rec.Names)
	assert.Equal(t, []string{"9007199254740993", "40.7500"}, rec.Fields)
}

func TestJSONLinesReader_NestedValuesAsJSONText(t *testing.T) {
	data := `{"id": 1, "tags": ["a", "b"]}` + "\n"
	r, err := NewJSONLinesReader(newTestStream(data), "test.jsonl", 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	rec, err := r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "tags"}, rec.Names)
	assert.Equal(t, []string{"1", `["a","b"]`}, rec.Fields)
}

func TestJSONLinesReader_BadLineIsRecoverable(t *testing.T) {
	data := `{"id": 1}
{not json
{"id": 3}
`
	r, err := NewJSONLinesReader(newTestStream(data), "test.jsonl", 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	rec, err := r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, rec.Fields)

	_, err = r.Next(context.TODO())
	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, int64(2), recErr.Line)

	rec, err = r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, rec.Fields)
}

func TestJSONLinesReader_BlankLinesSkipped(t *testing.T) {
	data := "{\"id\": 1}\n\n\n{\"id\": 2}\n"
	r, err := NewJSONLinesReader(newTestStream(data), "test.jsonl", 0)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	rec, err := r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, rec.Fields)

	rec, err = r.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, rec.Fields)

	_, err = r.Next(context.TODO())
	assert.Equal(t, io.EOF, err)
}

func TestJSONLinesReader_ResumeOffset(t *testing.T) {
	data := "{\"id\": 1}\n{\"id\": 2}\n{\"id\": 3}\n"
	r, err := NewJSONLinesReader(newTestStream(data), "test.jsonl", 0)
	require.NoError(t, err)

	_, err = r.Next(context.TODO())
	require.NoError(t, err)
	offset := r.ResumeOffset()
	require.NoError(t, r.Close())

	resumed, err := NewJSONLinesReader(newTestStream(data), "test.jsonl", offset)
	require.NoError(t, err)
	defer func() { _ = resumed.Close() }()

	rec, err := resumed.Next(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, rec.Fields)
}
