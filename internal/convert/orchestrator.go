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

// Package convert drives one source file through reading, coercion,
// batching, partition routing and parquet encoding, and accounts for every
// record along the way.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/quartzdata/parqconv/internal/coerce"
	"github.com/quartzdata/parqconv/internal/filereader"
	"github.com/quartzdata/parqconv/internal/logctx"
	"github.com/quartzdata/parqconv/internal/parquetwriter"
	"github.com/quartzdata/parqconv/internal/partition"
	"github.com/quartzdata/parqconv/internal/pipeline"
	"github.com/quartzdata/parqconv/internal/schema"
)

// Options configures one conversion run.
type Options struct {
	// InputPath is the source file.
	InputPath string

	// Format of the source file.
	Format filereader.Format

	// Reader holds the per-format shaping knobs.
	Reader filereader.OpenOptions

	// ManifestPath names a schema declaration file. Empty means the schema
	// is inferred from a sample of the input.
	ManifestPath string

	// SampleSize bounds the records examined during inference. Zero means
	// 1000.
	SampleSize int

	// Infer shapes schema inference when no manifest is given.
	Infer schema.InferOptions

	// Coerce shapes field coercion.
	Coerce coerce.Options

	// OutputDir is the dataset root for partition directories.
	OutputDir string

	// PartitionColumns form the col=value directory layout, in order.
	PartitionColumns []string

	// MaxOpenPartitions caps concurrently open partition writers.
	MaxOpenPartitions int

	// TmpDir receives spill and page buffer files. Empty means the OS
	// temp dir.
	TmpDir string

	// RecordsPerFile caps rows per output file. Zero means no split.
	RecordsPerFile int64

	// Compression selects the parquet codec. Empty means zstd.
	Compression parquetwriter.Compression

	// WriteChecksums emits MD5 sidecars next to finished files.
	WriteChecksums bool

	// StatsEnabled collects per-column statistics into results.
	StatsEnabled bool

	// BatchSize is the row count per routed batch. Zero means 1000.
	BatchSize int
}

func (o *Options) batchSize() int {
	if o.BatchSize <= 0 {
		return 1000
	}
	return o.BatchSize
}

func (o *Options) sampleSize() int {
	if o.SampleSize <= 0 {
		return 1000
	}
	return o.SampleSize
}

// Converter runs one conversion end to end. A Converter is single-use.
type Converter struct {
	opts      Options
	progress  *progress
	runID     string
	startedAt time.Time
}

// New validates the options and prepares a Converter.
func New(opts Options) (*Converter, error) {
	if opts.InputPath == "" {
		return nil, fmt.Errorf("conversion requires an input path")
	}
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("conversion requires an output dir")
	}
	if _, err := filereader.ParseFormat(string(opts.Format)); err != nil {
		return nil, err
	}
	return &Converter{
		opts:     opts,
		progress: newProgress(),
		runID:    newRunID(),
	}, nil
}

// RunID returns the unique identifier of this run.
func (c *Converter) RunID() string { return c.runID }

// State returns the current lifecycle phase. Safe to call from another
// goroutine while Run is in flight.
func (c *Converter) State() State { return c.progress.currentState() }

// Run converts the input to parquet. The returned report is complete even
// when err is non-nil. Cancellation via ctx aborts between batches.
func (c *Converter) Run(ctx context.Context) (*Report, error) {
	c.startedAt = time.Now()
	ll := logctx.FromContext(ctx).With("run_id", c.runID, "input", c.opts.InputPath)
	ctx = logctx.WithLogger(ctx, ll)

	c.progress.setState(StateResolving)
	resolved, err := c.resolveSchema(ctx)
	if err != nil {
		return c.fail(ctx, nil, nil, err)
	}
	ll.Info("schema resolved", "columns", resolved.Len())

	coercer, err := coerce.New(resolved, c.opts.Coerce)
	if err != nil {
		return c.fail(ctx, nil, nil, err)
	}

	router, err := partition.NewRouter(partition.RouterConfig{
		OutputDir:         c.opts.OutputDir,
		PartitionColumns:  c.opts.PartitionColumns,
		MaxOpenPartitions: c.opts.MaxOpenPartitions,
		Writer: parquetwriter.WriterConfig{
			Schema:         resolved,
			TmpDir:         c.tmpDir(),
			RecordsPerFile: c.opts.RecordsPerFile,
			Compression:    c.opts.Compression,
			WriteChecksums: c.opts.WriteChecksums,
			StatsEnabled:   c.opts.StatsEnabled,
		},
	})
	if err != nil {
		return c.fail(ctx, nil, nil, err)
	}

	reader, err := filereader.OpenFile(c.opts.InputPath, c.opts.Format, c.opts.Reader)
	if err != nil {
		return c.fail(ctx, router, nil, err)
	}

	c.progress.setState(StateStreaming)
	if err := c.stream(ctx, reader, coercer, router); err != nil {
		return c.fail(ctx, router, reader, err)
	}
	if err := reader.Close(); err != nil {
		return c.fail(ctx, router, nil, err)
	}

	c.progress.setState(StateFinalizing)
	results, err := router.CloseAll(ctx)
	if err != nil {
		return c.fail(ctx, nil, nil, err)
	}

	c.progress.setState(StateDone)
	report := c.progress.buildReport(c.runID, c.opts.InputPath, c.startedAt)
	for _, pr := range results {
		for _, f := range pr.Files {
			c.progress.recordsWritten.Add(f.RecordCount)
			report.Files = append(report.Files, FileReport{
				Path:        f.Path,
				Partition:   pr.Key,
				RecordCount: f.RecordCount,
				FileSize:    f.FileSize,
				ChecksumMD5: f.ChecksumMD5,
			})
		}
	}
	report.Partitions = len(results)
	report.RecordsWritten = c.progress.recordsWritten.Load()
	recordsWrittenCounter.Add(ctx, report.RecordsWritten)

	ll.Info("conversion finished",
		"records_read", report.RecordsRead,
		"records_written", report.RecordsWritten,
		"records_rejected", report.RecordsRejected,
		"partitions", report.Partitions,
		"files", len(report.Files),
		"elapsed", report.Elapsed.String())
	return report, nil
}

// stream pulls records, coerces them into pooled batches and routes full
// batches to the partition writers.
func (c *Converter) stream(ctx context.Context, reader filereader.Reader, coercer *coerce.Coercer, router *partition.Router) error {
	batch := pipeline.GetBatch()
	defer func() {
		if batch != nil {
			pipeline.ReturnBatch(batch)
		}
	}()

	flush := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := router.Route(ctx, batch); err != nil {
			return err
		}
		pipeline.ReturnBatch(batch)
		batch = pipeline.GetBatch()
		return nil
	}

	for {
		rec, err := reader.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			var recErr *filereader.RecordError
			if errors.As(err, &recErr) {
				c.progress.recordsRead.Add(1)
				c.progress.reject(RejectionCause{
					Source: recErr.Source,
					Line:   recErr.Line,
					Reason: recErr.Reason,
				})
				recordsRejectedCounter.Add(ctx, 1)
				continue
			}
			return err
		}

		c.progress.recordsRead.Add(1)
		row := batch.AddRow()
		soft, err := coercer.CoerceRecord(rec, row)
		if err != nil {
			batch.DeleteRow(batch.Len() - 1)
			var fce *coerce.FieldCoercionError
			if errors.As(err, &fce) {
				c.progress.reject(RejectionCause{
					Source: fce.Source,
					Line:   fce.Line,
					Reason: fce.Error(),
				})
				recordsRejectedCounter.Add(ctx, 1)
				continue
			}
			return err
		}
		// Tolerant-mode field failures keep the record but still land in
		// the report's sample.
		for _, fce := range soft {
			c.progress.softFailure(RejectionCause{
				Source: fce.Source,
				Line:   fce.Line,
				Reason: fce.Error(),
			})
		}
		if len(soft) > 0 {
			coercionFailuresCounter.Add(ctx, int64(len(soft)))
		}

		if batch.Len() >= c.opts.batchSize() {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// resolveSchema loads the manifest or infers from a bounded sample. The
// sampling pass uses its own reader so conversion always starts at the top
// of the file.
func (c *Converter) resolveSchema(ctx context.Context) (*schema.Schema, error) {
	if c.opts.ManifestPath != "" {
		return schema.LoadManifest(c.opts.ManifestPath)
	}

	reader, err := filereader.OpenFile(c.opts.InputPath, c.opts.Format, c.opts.Reader)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	builder := schema.NewBuilder(c.inferOptions())
	for sampled := 0; sampled < c.opts.sampleSize(); {
		rec, err := reader.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			var recErr *filereader.RecordError
			if errors.As(err, &recErr) {
				continue
			}
			return nil, err
		}
		builder.AddRecord(rec.Names, rec.Fields)
		sampled++
	}
	return builder.Build()
}

func (c *Converter) inferOptions() schema.InferOptions {
	if len(c.opts.Infer.NullTokens) == 0 && c.opts.Infer.DateLayout == "" {
		return schema.DefaultInferOptions()
	}
	return c.opts.Infer
}

func (c *Converter) tmpDir() string {
	if c.opts.TmpDir == "" {
		return os.TempDir()
	}
	return c.opts.TmpDir
}

// fail tears down whatever was running and produces a failure report.
func (c *Converter) fail(ctx context.Context, router *partition.Router, reader filereader.Reader, err error) (*Report, error) {
	if reader != nil {
		_ = reader.Close()
	}
	if router != nil {
		router.Abort()
	}

	c.progress.setState(StateFailed)
	report := c.progress.buildReport(c.runID, c.opts.InputPath, c.startedAt)
	report.FailureKind = ClassifyFailure(err)
	report.FailureDetail = err.Error()

	logctx.FromContext(ctx).Error("conversion failed",
		"kind", string(report.FailureKind),
		"error", err,
		"records_read", report.RecordsRead,
		"elapsed", report.Elapsed.String())
	return report, err
}
