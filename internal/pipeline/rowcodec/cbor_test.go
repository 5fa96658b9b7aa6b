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

package rowcodec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)

	row := map[string]any{
		"i":  int64(42),
		"f":  3.25,
		"s":  "hello",
		"b":  true,
		"by": []byte{0x01, 0x02},
	}

	data, err := c.Encode(row)
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, row, got)
}

func TestDecodeWidensNarrowTypes(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)

	data, err := c.Encode(map[string]any{"d": int32(19723), "f32": float32(1.5)})
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, int64(19723), got["d"])
	assert.Equal(t, float64(1.5), got["f32"])
}

func TestStreamingEncodeDecode(t *testing.T) {
	c, err := NewConfig()
	require.NoError(t, err)

	var buf bytes.Buffer
	enc := c.NewEncoder(&buf)
	require.NoError(t, enc.Encode(map[string]any{"n": int64(1)}))
	require.NoError(t, enc.Encode(map[string]any{"n": int64(2)}))

	dec := c.NewDecoder(&buf)
	var count int
	for {
		row := map[string]any{}
		if err := dec.Decode(&row); err != nil {
			require.Equal(t, io.EOF, err)
			break
		}
		count++
		assert.Equal(t, int64(count), row["n"])
	}
	assert.Equal(t, 2, count)
}
