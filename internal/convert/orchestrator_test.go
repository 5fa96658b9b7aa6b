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

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzdata/parqconv/internal/coerce"
	"github.com/quartzdata/parqconv/internal/filereader"
	"github.com/quartzdata/parqconv/internal/partition"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeManifest(t *testing.T, content string) string {
	return writeInput(t, "schema.json", content)
}

func readAllRows(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	require.NoError(t, err)

	pf, err := parquet.OpenFile(f, info.Size())
	require.NoError(t, err)

	reader := parquet.NewGenericReader[map[string]any](pf, pf.Schema())
	defer func() { _ = reader.Close() }()

	var out []map[string]any
	for {
		rows := make([]map[string]any, 16)
		for i := range rows {
			rows[i] = map[string]any{}
		}
		n, err := reader.Read(rows)
		out = append(out, rows[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	return out
}

const mixedManifest = `{"columns": [
	{"name": "id", "type": "string"},
	{"name": "amount", "type": "double"}
]}`

func TestRun_TolerantNullsBadFieldAndKeepsRow(t *testing.T) {
	input := writeInput(t, "in.csv", "id,amount\n1,10.5\n2,bad\nx,20.0\n")
	outDir := filepath.Join(t.TempDir(), "out")

	conv, err := New(Options{
		InputPath:    input,
		Format:       filereader.FormatCSV,
		ManifestPath: writeManifest(t, mixedManifest),
		OutputDir:    outDir,
	})
	require.NoError(t, err)

	report, err := conv.Run(context.TODO())
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, int64(3), report.RecordsRead)
	assert.Equal(t, int64(3), report.RecordsWritten)
	assert.Equal(t, int64(0), report.RecordsRejected)
	assert.Equal(t, int64(1), report.CoercionFailures)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, int64(2), report.Rejections[0].Line)

	require.Len(t, report.Files, 1)
	rows := readAllRows(t, report.Files[0].Path)
	require.Len(t, rows, 3)
	assert.Equal(t, "2", rows[1]["id"])
	assert.Nil(t, rows[1]["amount"])
}

func TestRun_StrictRejectsBadRecord(t *testing.T) {
	input := writeInput(t, "in.csv", "id,amount\n1,10.5\n2,bad\nx,20.0\n")
	outDir := filepath.Join(t.TempDir(), "out")

	opts := coerce.DefaultOptions()
	opts.Policy = coerce.PolicyStrict

	conv, err := New(Options{
		InputPath:    input,
		Format:       filereader.FormatCSV,
		ManifestPath: writeManifest(t, mixedManifest),
		OutputDir:    outDir,
		Coerce:       opts,
	})
	require.NoError(t, err)

	report, err := conv.Run(context.TODO())
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.RecordsRead)
	assert.Equal(t, int64(2), report.RecordsWritten)
	assert.Equal(t, int64(1), report.RecordsRejected)
	assert.Equal(t, report.RecordsRead, report.RecordsWritten+report.RecordsRejected)
}

func TestRun_StrictKeepsJSONNullField(t *testing.T) {
	// JSON lines drop null fields from the record; the inferred schema
	// must still mark the column nullable so strict mode keeps the row.
	input := writeInput(t, "in.jsonl", `{"a":1,"b":2}`+"\n"+`{"a":3,"b":null}`+"\n")
	outDir := filepath.Join(t.TempDir(), "out")

	opts := coerce.DefaultOptions()
	opts.Policy = coerce.PolicyStrict

	conv, err := New(Options{
		InputPath: input,
		Format:    filereader.FormatJSONLines,
		OutputDir: outDir,
		Coerce:    opts,
	})
	require.NoError(t, err)

	report, err := conv.Run(context.TODO())
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.RecordsRead)
	assert.Equal(t, int64(2), report.RecordsWritten)
	assert.Equal(t, int64(0), report.RecordsRejected)

	require.Len(t, report.Files, 1)
	rows := readAllRows(t, report.Files[0].Path)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0]["b"])
	assert.Nil(t, rows[1]["b"])
}

func TestRun_PartitionIntegrity(t *testing.T) {
	var content = "region,id\n"
	for i := 1; i <= 10; i++ {
		region := "A"
		if i%2 == 0 {
			region = "B"
		}
		content += fmt.Sprintf("%s,%d\n", region, i)
	}
	input := writeInput(t, "in.csv", content)
	outDir := filepath.Join(t.TempDir(), "out")

	conv, err := New(Options{
		InputPath:        input,
		Format:           filereader.FormatCSV,
		OutputDir:        outDir,
		PartitionColumns: []string{"region"},
	})
	require.NoError(t, err)

	report, err := conv.Run(context.TODO())
	require.NoError(t, err)

	assert.Equal(t, int64(10), report.RecordsRead)
	assert.Equal(t, int64(10), report.RecordsWritten)
	assert.Equal(t, 2, report.Partitions)
	require.Len(t, report.Files, 2)

	for _, f := range report.Files {
		rows := readAllRows(t, f.Path)
		for _, row := range rows {
			want := "region=" + row["region"].(string)
			assert.Equal(t, want, f.Partition)
		}
	}
}

func TestRun_InferredSchema(t *testing.T) {
	input := writeInput(t, "in.csv", "id,score,label\n1,1.5,aa\n2,2.5,bb\n")
	outDir := filepath.Join(t.TempDir(), "out")

	conv, err := New(Options{
		InputPath: input,
		Format:    filereader.FormatCSV,
		OutputDir: outDir,
	})
	require.NoError(t, err)

	report, err := conv.Run(context.TODO())
	require.NoError(t, err)
	require.Len(t, report.Files, 1)

	rows := readAllRows(t, report.Files[0].Path)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, 1.5, rows[0]["score"])
	assert.Equal(t, "aa", rows[0]["label"])
}

func TestRun_MalformedRecordsAreRejected(t *testing.T) {
	input := writeInput(t, "in.csv", "id,amount\n1,2.5\nonly-one-field\n3,4.5\n")
	outDir := filepath.Join(t.TempDir(), "out")

	conv, err := New(Options{
		InputPath:    input,
		Format:       filereader.FormatCSV,
		ManifestPath: writeManifest(t, mixedManifest),
		OutputDir:    outDir,
	})
	require.NoError(t, err)

	report, err := conv.Run(context.TODO())
	require.NoError(t, err)

	assert.Equal(t, int64(3), report.RecordsRead)
	assert.Equal(t, int64(2), report.RecordsWritten)
	assert.Equal(t, int64(1), report.RecordsRejected)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, report.RecordsRead, report.RecordsWritten+report.RecordsRejected)
}

func TestRun_EmptyInputFailsResolution(t *testing.T) {
	input := writeInput(t, "in.csv", "id,amount\n")
	outDir := filepath.Join(t.TempDir(), "out")

	conv, err := New(Options{
		InputPath: input,
		Format:    filereader.FormatCSV,
		OutputDir: outDir,
	})
	require.NoError(t, err)

	report, err := conv.Run(context.TODO())
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, FailureSchemaResolution, report.FailureKind)
}

func TestRun_Cancellation(t *testing.T) {
	input := writeInput(t, "in.csv", "id\n1\n2\n3\n")
	outDir := filepath.Join(t.TempDir(), "out")

	conv, err := New(Options{
		InputPath: input,
		Format:    filereader.FormatCSV,
		OutputDir: outDir,
		BatchSize: 1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := conv.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, FailureCancelled, report.FailureKind)
}

func TestRun_TooManyPartitions(t *testing.T) {
	input := writeInput(t, "in.csv", "region,id\na,1\nb,2\nc,3\n")
	outDir := filepath.Join(t.TempDir(), "out")

	conv, err := New(Options{
		InputPath:         input,
		Format:            filereader.FormatCSV,
		OutputDir:         outDir,
		PartitionColumns:  []string{"region"},
		MaxOpenPartitions: 2,
		BatchSize:         1,
	})
	require.NoError(t, err)

	report, err := conv.Run(context.TODO())
	require.Error(t, err)
	assert.True(t, errors.Is(err, partition.ErrTooManyPartitions))
	assert.Equal(t, FailureTooManyParts, report.FailureKind)
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, FailureNone},
		{"cancelled", context.Canceled, FailureCancelled},
		{"framing", &filereader.FramingError{Reason: "x"}, FailureFraming},
		{"partitions", &partition.TooManyPartitionsError{Limit: 1}, FailureTooManyParts},
		{"io", errors.New("disk full"), FailureIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.err))
		})
	}
}
