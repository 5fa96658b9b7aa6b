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
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/oklog/ulid/v2"
	"github.com/parquet-go/parquet-go"

	"github.com/quartzdata/parqconv/internal/pipeline"
	"github.com/quartzdata/parqconv/internal/pipeline/rowcodec"
	"github.com/quartzdata/parqconv/internal/pipeline/wkk"
	"github.com/quartzdata/parqconv/internal/schema"
)

// SpillWriter implements Writer by spilling rows to a CBOR buffer file and
// streaming them into the parquet encoder at file finish. Output files are
// written under a .tmp name and renamed into place so readers never see a
// partial file.
type SpillWriter struct {
	cfg           WriterConfig
	dir           string
	codec         *rowcodec.Config
	parquetSchema *parquet.Schema
	columnTypes   map[string]schema.SemanticType
	keyNames      map[wkk.RowKey]string

	spillFile  *os.File
	encoder    *cbor.Encoder
	stats      *statsAccumulator
	rowsInFile int64

	results []Result
	closed  bool
}

var _ Writer = (*SpillWriter)(nil)

// NewWriter creates a SpillWriter that places finished files in dir.
func NewWriter(dir string, cfg WriterConfig) (*SpillWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("writer requires an output dir")
	}

	codec, err := rowcodec.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("create spill codec: %w", err)
	}

	pqSchema, err := parquetSchemaFor(cfg.Schema)
	if err != nil {
		return nil, err
	}

	columnTypes := make(map[string]schema.SemanticType, cfg.Schema.Len())
	keyNames := make(map[wkk.RowKey]string, cfg.Schema.Len())
	for _, def := range cfg.Schema.Columns() {
		columnTypes[def.Name] = def.Type
		keyNames[wkk.NewRowKey(def.Name)] = def.Name
	}

	return &SpillWriter{
		cfg:           cfg,
		dir:           dir,
		codec:         codec,
		parquetSchema: pqSchema,
		columnTypes:   columnTypes,
		keyNames:      keyNames,
	}, nil
}

// WriteBatch appends all rows of the batch to the current output file,
// rolling to a new file when the per-file row cap is reached.
func (w *SpillWriter) WriteBatch(batch *pipeline.Batch) error {
	if w.closed {
		return ErrWriterClosed
	}

	for i := 0; i < batch.Len(); i++ {
		row := batch.Get(i)
		if row == nil {
			continue
		}
		if err := w.writeRow(row); err != nil {
			return err
		}
		if w.cfg.RecordsPerFile > 0 && w.rowsInFile >= w.cfg.RecordsPerFile {
			if err := w.finishCurrentFile(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *SpillWriter) writeRow(row pipeline.Row) error {
	if w.spillFile == nil {
		if err := w.startSpillFile(); err != nil {
			return err
		}
	}

	rowMap := make(map[string]any, len(row))
	for key, value := range row {
		name, ok := w.keyNames[key]
		if !ok {
			return fmt.Errorf("row has column %q not in the resolved schema", wkk.RowKeyValue(key))
		}
		rowMap[name] = value
	}

	if err := w.encoder.Encode(rowMap); err != nil {
		return fmt.Errorf("spill row: %w", err)
	}
	if w.stats != nil {
		w.stats.observe(row)
	}
	w.rowsInFile++
	return nil
}

func (w *SpillWriter) startSpillFile() error {
	f, err := os.CreateTemp(w.cfg.TmpDir, "spill-*.cbor")
	if err != nil {
		return fmt.Errorf("create spill file: %w", err)
	}
	w.spillFile = f
	w.encoder = w.codec.NewEncoder(f)
	if w.cfg.StatsEnabled {
		w.stats = newStatsAccumulator(w.cfg.Schema)
	}
	w.rowsInFile = 0
	return nil
}

// Close finishes the in-progress file and returns every Result produced
// over the writer's lifetime.
func (w *SpillWriter) Close(ctx context.Context) ([]Result, error) {
	if w.closed {
		return nil, ErrWriterClosed
	}
	w.closed = true

	if w.spillFile != nil {
		if err := w.finishCurrentFile(); err != nil {
			w.cleanupSpill()
			return nil, err
		}
	}
	return w.results, nil
}

// Abort discards buffered data and removes the spill file. Files already
// finished stay on disk.
func (w *SpillWriter) Abort() {
	w.closed = true
	w.cleanupSpill()
}

func (w *SpillWriter) cleanupSpill() {
	if w.spillFile != nil {
		name := w.spillFile.Name()
		_ = w.spillFile.Close()
		_ = os.Remove(name)
		w.spillFile = nil
		w.encoder = nil
	}
}

func (w *SpillWriter) finishCurrentFile() error {
	spillName := w.spillFile.Name()
	defer func() {
		_ = os.Remove(spillName)
		w.spillFile = nil
		w.encoder = nil
		w.stats = nil
		w.rowsInFile = 0
	}()

	if err := w.spillFile.Sync(); err != nil {
		_ = w.spillFile.Close()
		return fmt.Errorf("sync spill file: %w", err)
	}
	if err := w.spillFile.Close(); err != nil {
		return fmt.Errorf("close spill file: %w", err)
	}

	spill, err := os.Open(spillName)
	if err != nil {
		return fmt.Errorf("reopen spill file: %w", err)
	}
	defer func() { _ = spill.Close() }()

	finalPath := filepath.Join(w.dir, fmt.Sprintf("part-%s.parquet", ulid.MustNew(ulid.Now(), rand.Reader)))
	tmpPath := finalPath + ".tmp"

	result, err := w.encodeParquet(spill, tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s into place: %w", tmpPath, err)
	}
	result.Path = finalPath

	if w.cfg.WriteChecksums {
		if err := writeChecksumSidecar(finalPath, result.ChecksumMD5); err != nil {
			return err
		}
	}

	w.results = append(w.results, result)
	return nil
}

func (w *SpillWriter) encodeParquet(spill io.Reader, tmpPath string) (Result, error) {
	out, err := os.Create(tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("create %s: %w", tmpPath, err)
	}
	defer func() { _ = out.Close() }()

	var sink io.Writer = out
	var digest hash.Hash
	if w.cfg.WriteChecksums {
		digest = md5.New()
		sink = io.MultiWriter(out, digest)
	}

	writerConfig, err := parquet.NewWriterConfig(writerOptions(&w.cfg, w.parquetSchema)...)
	if err != nil {
		return Result{}, fmt.Errorf("create parquet writer config: %w", err)
	}
	pw := parquet.NewGenericWriter[map[string]any](sink, writerConfig)

	decoder := w.codec.NewDecoder(spill)
	var rows int64
	rowMap := make(map[string]any)
	for {
		clear(rowMap)
		if err := decoder.Decode(&rowMap); err != nil {
			if err == io.EOF {
				break
			}
			return Result{}, fmt.Errorf("decode spilled row: %w", err)
		}
		w.restoreTypes(rowMap)
		if _, err := pw.Write([]map[string]any{rowMap}); err != nil {
			return Result{}, fmt.Errorf("write parquet row: %w", err)
		}
		rows++
	}

	if err := pw.Close(); err != nil {
		return Result{}, fmt.Errorf("close parquet writer: %w", err)
	}
	if err := out.Sync(); err != nil {
		return Result{}, fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	info, err := out.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", tmpPath, err)
	}

	result := Result{
		RecordCount: rows,
		FileSize:    info.Size(),
	}
	if digest != nil {
		result.ChecksumMD5 = hex.EncodeToString(digest.Sum(nil))
	}
	if w.stats != nil {
		result.Columns = w.stats.snapshot()
	}
	return result, nil
}

// restoreTypes undoes the width widening the spill codec applies. Only date
// columns need it, everything else round-trips as its native type.
func (w *SpillWriter) restoreTypes(rowMap map[string]any) {
	for name, value := range rowMap {
		if w.columnTypes[name] != schema.TypeDate {
			continue
		}
		if v, ok := value.(int64); ok {
			rowMap[name] = int32(v)
		}
	}
}

func writeChecksumSidecar(path, hexsum string) error {
	sidecar := path + ".md5"
	content := fmt.Sprintf("%s  %s\n", hexsum, filepath.Base(path))
	if err := os.WriteFile(sidecar, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write checksum sidecar %s: %w", sidecar, err)
	}
	return nil
}
