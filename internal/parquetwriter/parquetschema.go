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

package parquetwriter

import (
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/quartzdata/parqconv/internal/schema"
)

// parquetNodeFor maps a resolved column to a parquet schema node. Dictionary
// encoding is used for strings, which repeat heavily in the files this tool
// sees.
func parquetNodeFor(def schema.ColumnDef) (parquet.Node, error) {
	var node parquet.Node
	switch def.Type {
	case schema.TypeInt64:
		node = parquet.Int(64)
	case schema.TypeFloat64:
		node = parquet.Leaf(parquet.DoubleType)
	case schema.TypeBoolean:
		node = parquet.Leaf(parquet.BooleanType)
	case schema.TypeUtf8:
		node = parquet.Encoded(parquet.String(), &parquet.RLEDictionary)
	case schema.TypeDate:
		node = parquet.Date()
	case schema.TypeTimestamp:
		node = parquet.Timestamp(parquet.Microsecond)
	case schema.TypeDecimal:
		node = parquet.Decimal(def.Scale, def.Precision, parquet.Int64Type)
	case schema.TypeBinary:
		node = parquet.Leaf(parquet.ByteArrayType)
	default:
		return nil, fmt.Errorf("column %q has no parquet mapping for type %s", def.Name, def.Type)
	}

	// Every column is optional on disk. Tolerant coercion can null any
	// field regardless of what the resolved schema declares.
	return parquet.Optional(node), nil
}

// parquetSchemaFor builds the file schema for a resolved column set.
func parquetSchemaFor(s *schema.Schema) (*parquet.Schema, error) {
	group := make(parquet.Group, s.Len())
	for _, def := range s.Columns() {
		node, err := parquetNodeFor(def)
		if err != nil {
			return nil, err
		}
		group[def.Name] = node
	}
	return parquet.NewSchema("parqconv", group), nil
}

func compressionCodec(c Compression) compress.Codec {
	switch c {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionGzip:
		return &parquet.Gzip
	case CompressionNone:
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// writerOptions returns the tuning used for every output file. Page buffers
// stay small and spill to disk so many concurrent partition writers fit in
// memory.
func writerOptions(cfg *WriterConfig, s *parquet.Schema) []parquet.WriterOption {
	return []parquet.WriterOption{
		s,
		parquet.Compression(compressionCodec(cfg.compression())),
		parquet.PageBufferSize(32 * 1024),
		parquet.ColumnIndexSizeLimit(1024),
		parquet.MaxRowsPerRowGroup(80_000),
		parquet.ColumnPageBuffers(
			parquet.NewFileBufferPool(cfg.TmpDir, "buffers.*"),
		),
	}
}
