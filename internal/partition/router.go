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

// Package partition fans typed row batches out to per-partition parquet
// writers using the col=value directory layout.
package partition

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/quartzdata/parqconv/internal/parquetwriter"
	"github.com/quartzdata/parqconv/internal/pipeline"
	"github.com/quartzdata/parqconv/internal/pipeline/wkk"
	"github.com/quartzdata/parqconv/internal/schema"
)

// nullSegment names the directory for rows whose partition value is null,
// matching the hive convention.
const nullSegment = "__NULL__"

// RouterConfig controls partition fan-out.
type RouterConfig struct {
	// OutputDir is the dataset root all partition directories live under.
	OutputDir string

	// PartitionColumns are the schema columns, in order, that form the
	// directory path. Empty means a single unpartitioned output.
	PartitionColumns []string

	// MaxOpenPartitions caps concurrently open writers. Zero means 128.
	MaxOpenPartitions int

	// Writer is the per-file configuration shared by all partitions.
	Writer parquetwriter.WriterConfig
}

// PartitionResult pairs one partition directory with the files written
// into it.
type PartitionResult struct {
	// Key is the relative col=value path, empty for unpartitioned output.
	Key string

	// Files are the finished parquet files of this partition.
	Files []parquetwriter.Result
}

type partitionColumn struct {
	def schema.ColumnDef
	key wkk.RowKey
}

// Router owns the PartitionKey to writer map. It is not safe for concurrent
// Route calls; the conversion pipeline feeds it from a single goroutine.
type Router struct {
	cfg     RouterConfig
	columns []partitionColumn
	writers map[string]*parquetwriter.SpillWriter
	order   []string
	closed  bool
}

// NewRouter validates the partition columns against the schema and prepares
// the output root.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("router requires an output dir")
	}
	if cfg.MaxOpenPartitions == 0 {
		cfg.MaxOpenPartitions = 128
	}
	if cfg.MaxOpenPartitions < 0 {
		return nil, fmt.Errorf("max open partitions cannot be negative")
	}

	columns := make([]partitionColumn, len(cfg.PartitionColumns))
	for i, name := range cfg.PartitionColumns {
		def, ok := cfg.Writer.Schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("partition column %q is not in the schema", name)
		}
		columns[i] = partitionColumn{def: def, key: wkk.NewRowKey(name)}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", cfg.OutputDir, err)
	}

	return &Router{
		cfg:     cfg,
		columns: columns,
		writers: make(map[string]*parquetwriter.SpillWriter),
	}, nil
}

// Route distributes the batch's rows to their partition writers. The batch
// remains owned by the caller.
func (r *Router) Route(ctx context.Context, batch *pipeline.Batch) error {
	if r.closed {
		return parquetwriter.ErrWriterClosed
	}

	// Group rows by partition so each writer sees one sub-batch per call.
	groups := make(map[string]*pipeline.Batch)
	defer func() {
		for _, g := range groups {
			pipeline.ReturnBatch(g)
		}
	}()

	for i := 0; i < batch.Len(); i++ {
		row := batch.Get(i)
		if row == nil {
			continue
		}
		key, err := r.keyFor(row)
		if err != nil {
			return err
		}
		group, ok := groups[key]
		if !ok {
			// Creating the writer here keeps partition order aligned with
			// first appearance in the input.
			if _, err := r.writerFor(ctx, key); err != nil {
				return err
			}
			group = pipeline.GetBatch()
			groups[key] = group
		}
		target := group.AddRow()
		for k, v := range row {
			target[k] = v
		}
	}

	for key, group := range groups {
		if err := r.writers[key].WriteBatch(group); err != nil {
			return fmt.Errorf("partition %q: %w", key, err)
		}
	}
	return nil
}

// keyFor renders the row's partition values as a relative col=value path.
func (r *Router) keyFor(row pipeline.Row) (string, error) {
	if len(r.columns) == 0 {
		return "", nil
	}

	segments := make([]string, len(r.columns))
	for i, col := range r.columns {
		value, ok := row[col.key]
		if !ok || value == nil {
			segments[i] = col.def.Name + "=" + nullSegment
			continue
		}
		text, err := formatPartitionValue(col.def, value)
		if err != nil {
			return "", err
		}
		segments[i] = col.def.Name + "=" + url.PathEscape(text)
	}
	return filepath.Join(segments...), nil
}

func (r *Router) writerFor(ctx context.Context, key string) (*parquetwriter.SpillWriter, error) {
	if w, ok := r.writers[key]; ok {
		return w, nil
	}
	if len(r.writers) >= r.cfg.MaxOpenPartitions {
		return nil, &TooManyPartitionsError{Limit: r.cfg.MaxOpenPartitions, Key: key}
	}

	dir := filepath.Join(r.cfg.OutputDir, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create partition dir %s: %w", dir, err)
	}

	w, err := parquetwriter.NewWriter(dir, r.cfg.Writer)
	if err != nil {
		return nil, fmt.Errorf("create writer for partition %q: %w", key, err)
	}
	r.writers[key] = w
	r.order = append(r.order, key)
	partitionsOpenedCounter.Add(ctx, 1)
	return w, nil
}

// CloseAll finalizes every partition writer concurrently and returns the
// results in partition creation order.
func (r *Router) CloseAll(ctx context.Context) ([]PartitionResult, error) {
	if r.closed {
		return nil, parquetwriter.ErrWriterClosed
	}
	r.closed = true

	results := make([]PartitionResult, len(r.order))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, key := range r.order {
		g.Go(func() error {
			files, err := r.writers[key].Close(ctx)
			if err != nil {
				return fmt.Errorf("finalize partition %q: %w", key, err)
			}
			results[i] = PartitionResult{Key: key, Files: files}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Writers that did finish leave valid files behind; the caller
		// decides whether to keep or remove them.
		var errs *multierror.Error
		errs = multierror.Append(errs, err)
		for _, key := range r.order {
			r.writers[key].Abort()
		}
		return nil, errs.ErrorOrNil()
	}
	return results, nil
}

// Abort discards all pending data across partitions.
func (r *Router) Abort() {
	r.closed = true
	for _, w := range r.writers {
		w.Abort()
	}
}

// OpenPartitions returns the number of partitions seen so far.
func (r *Router) OpenPartitions() int {
	return len(r.writers)
}

// formatPartitionValue renders a native typed value as directory text.
func formatPartitionValue(def schema.ColumnDef, value any) (string, error) {
	switch v := value.(type) {
	case int64:
		if def.Type == schema.TypeDecimal {
			return formatDecimal(v, def.Scale), nil
		}
		if def.Type == schema.TypeTimestamp {
			return time.UnixMicro(v).UTC().Format(time.RFC3339), nil
		}
		return strconv.FormatInt(v, 10), nil
	case int32:
		return time.Unix(int64(v)*86400, 0).UTC().Format("2006-01-02"), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("column %q value type %T cannot form a partition path", def.Name, value)
	}
}

func formatDecimal(unscaled int64, scale int) string {
	if scale <= 0 {
		return strconv.FormatInt(unscaled, 10)
	}
	negative := unscaled < 0
	digits := strconv.FormatInt(unscaled, 10)
	if negative {
		digits = digits[1:]
	}
	for len(digits) <= scale {
		digits = "0" + digits
	}
	out := digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	if negative {
		out = "-" + out
	}
	return out
}
