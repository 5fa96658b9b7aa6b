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

// Package rowcodec provides CBOR encoding/decoding for row data
// (map[string]any) spilled to temporary buffer files between the batch
// accumulator and the final Parquet streaming pass.
//
// CBOR type behavior:
//   - All integers (int, int32, uint32) decode as int64
//   - float32 decodes as float64
//   - string, bool, []byte, nil are preserved exactly
//
// Callers that need narrower types (int32 date columns, for example) must
// restore them against their schema after decode.
package rowcodec

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Config holds CBOR encoder and decoder configurations optimized for row data.
type Config struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewConfig creates a new CBOR configuration for row spill files.
func NewConfig() (*Config, error) {
	encMode, err := cbor.EncOptions{
		Sort:          cbor.SortNone,          // Preserve map key order
		ShortestFloat: cbor.ShortestFloatNone, // Don't convert float types
		BigIntConvert: cbor.BigIntConvertNone, // Don't convert large integers
		Time:          cbor.TimeUnixMicro,     // Encode times as Unix timestamps
		TimeTag:       cbor.EncTagNone,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR encoder: %w", err)
	}

	decMode, err := cbor.DecOptions{
		BigIntDec:      cbor.BigIntDecodeValue,
		IntDec:         cbor.IntDecConvertSigned, // All integers decode as int64
		DefaultMapType: reflect.TypeOf(map[string]any{}),
		UTF8:           cbor.UTF8DecodeInvalid,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR decoder: %w", err)
	}

	return &Config{encMode: encMode, decMode: decMode}, nil
}

// NewEncoder creates a streaming CBOR encoder for a spill file.
func (c *Config) NewEncoder(w io.Writer) *cbor.Encoder {
	return c.encMode.NewEncoder(w)
}

// NewDecoder creates a streaming CBOR decoder for a spill file.
func (c *Config) NewDecoder(r io.Reader) *cbor.Decoder {
	return c.decMode.NewDecoder(r)
}

// Encode encodes a row to CBOR bytes.
func (c *Config) Encode(row map[string]any) ([]byte, error) {
	return c.encMode.Marshal(row)
}

// Decode decodes CBOR bytes to a row, normalizing integer and float widths.
func (c *Config) Decode(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := c.decMode.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		raw[k] = normalizeValue(v)
	}
	return raw, nil
}

// normalizeValue widens the handful of types the CBOR decoder can produce
// that the rest of the pipeline does not traffic in.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
