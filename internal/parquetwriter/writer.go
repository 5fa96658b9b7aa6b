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

// Package parquetwriter turns typed row batches into parquet files. Rows are
// spilled to a compact temporary encoding as they arrive, then streamed into
// the parquet encoder when the writer is closed, so memory stays flat no
// matter how many rows a file holds.
package parquetwriter

import (
	"context"
	"errors"

	"github.com/quartzdata/parqconv/internal/pipeline"
)

// ErrWriterClosed is returned by writes after Close or Abort.
var ErrWriterClosed = errors.New("writer is closed")

// Writer accepts row batches and produces one or more parquet files.
type Writer interface {
	// WriteBatch appends all rows of the batch. The batch remains owned by
	// the caller.
	WriteBatch(batch *pipeline.Batch) error

	// Close finishes all pending files and returns their results.
	Close(ctx context.Context) ([]Result, error)

	// Abort discards all pending data and removes temporary files.
	Abort()
}

// Result describes one finished parquet file.
type Result struct {
	// Path of the finished file.
	Path string

	// RecordCount is the number of rows written.
	RecordCount int64

	// FileSize in bytes.
	FileSize int64

	// ChecksumMD5 is the hex MD5 of the file contents, empty when checksums
	// are disabled.
	ChecksumMD5 string

	// Columns holds per-column statistics when enabled.
	Columns []ColumnStats
}
