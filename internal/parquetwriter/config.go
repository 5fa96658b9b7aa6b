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

	"github.com/quartzdata/parqconv/internal/schema"
)

// Compression selects the parquet page compression codec.
type Compression string

const (
	CompressionZstd   Compression = "zstd"
	CompressionSnappy Compression = "snappy"
	CompressionGzip   Compression = "gzip"
	CompressionNone   Compression = "none"
)

// WriterConfig controls output file generation.
type WriterConfig struct {
	// Schema is the resolved column set every row must conform to.
	Schema *schema.Schema

	// TmpDir receives spill files and in-progress parquet files.
	TmpDir string

	// RecordsPerFile caps rows per output file. Zero means no split.
	RecordsPerFile int64

	// Compression defaults to zstd when empty.
	Compression Compression

	// WriteChecksums emits an MD5 sidecar next to each finished file.
	WriteChecksums bool

	// StatsEnabled collects per-column min/max/null counts into Results.
	StatsEnabled bool
}

// Validate checks the configuration for basic sanity.
func (c *WriterConfig) Validate() error {
	if c.Schema == nil || c.Schema.Len() == 0 {
		return fmt.Errorf("writer config requires a non-empty schema")
	}
	if c.TmpDir == "" {
		return fmt.Errorf("writer config requires a tmp dir")
	}
	if c.RecordsPerFile < 0 {
		return fmt.Errorf("records per file cannot be negative")
	}
	switch c.Compression {
	case "", CompressionZstd, CompressionSnappy, CompressionGzip, CompressionNone:
	default:
		return fmt.Errorf("unknown compression %q", c.Compression)
	}
	return nil
}

func (c *WriterConfig) compression() Compression {
	if c.Compression == "" {
		return CompressionZstd
	}
	return c.Compression
}
