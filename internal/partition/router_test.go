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

package partition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzdata/parqconv/internal/parquetwriter"
	"github.com/quartzdata/parqconv/internal/pipeline"
	"github.com/quartzdata/parqconv/internal/pipeline/wkk"
	"github.com/quartzdata/parqconv/internal/schema"
)

func routerSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New([]schema.ColumnDef{
		{Name: "region", Type: schema.TypeUtf8, Nullable: true},
		{Name: "day", Type: schema.TypeDate, Nullable: true},
		{Name: "id", Type: schema.TypeInt64},
	})
	require.NoError(t, err)
	return s
}

func routerConfig(t *testing.T, partitionColumns []string) RouterConfig {
	t.Helper()
	return RouterConfig{
		OutputDir:        filepath.Join(t.TempDir(), "out"),
		PartitionColumns: partitionColumns,
		Writer: parquetwriter.WriterConfig{
			Schema: routerSchema(t),
			TmpDir: t.TempDir(),
		},
	}
}

func routerRow(region string, day int32, id int64) pipeline.Row {
	row := pipeline.Row{wkk.NewRowKey("id"): id}
	if region != "" {
		row[wkk.NewRowKey("region")] = region
	}
	if day >= 0 {
		row[wkk.NewRowKey("day")] = day
	}
	return row
}

func routeRows(t *testing.T, r *Router, rows ...pipeline.Row) {
	t.Helper()
	batch := pipeline.GetBatch()
	defer pipeline.ReturnBatch(batch)
	for _, row := range rows {
		target := batch.AddRow()
		for k, v := range row {
			target[k] = v
		}
	}
	require.NoError(t, r.Route(context.TODO(), batch))
}

func TestRouter_PartitionLayout(t *testing.T) {
	cfg := routerConfig(t, []string{"region", "day"})
	r, err := NewRouter(cfg)
	require.NoError(t, err)

	routeRows(t, r,
		routerRow("us-east", 0, 1),
		routerRow("us-east", 0, 2),
		routerRow("eu-west", 1, 3),
	)

	results, err := r.CloseAll(context.TODO())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, filepath.Join("region=us-east", "day=1970-01-01"), results[0].Key)
	assert.Equal(t, filepath.Join("region=eu-west", "day=1970-01-02"), results[1].Key)

	require.Len(t, results[0].Files, 1)
	assert.Equal(t, int64(2), results[0].Files[0].RecordCount)
	assert.Equal(t, int64(1), results[1].Files[0].RecordCount)

	for _, pr := range results {
		for _, f := range pr.Files {
			_, err := os.Stat(f.Path)
			assert.NoError(t, err)
			assert.Equal(t, filepath.Join(cfg.OutputDir, pr.Key), filepath.Dir(f.Path))
		}
	}
}

func TestRouter_NullPartitionValue(t *testing.T) {
	r, err := NewRouter(routerConfig(t, []string{"region"}))
	require.NoError(t, err)

	routeRows(t, r, routerRow("", -1, 1))

	results, err := r.CloseAll(context.TODO())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "region=__NULL__", results[0].Key)
}

func TestRouter_Unpartitioned(t *testing.T) {
	r, err := NewRouter(routerConfig(t, nil))
	require.NoError(t, err)

	routeRows(t, r,
		routerRow("us-east", 0, 1),
		routerRow("eu-west", 1, 2),
	)

	results, err := r.CloseAll(context.TODO())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "", results[0].Key)
	require.Len(t, results[0].Files, 1)
	assert.Equal(t, int64(2), results[0].Files[0].RecordCount)
}

func TestRouter_TooManyPartitions(t *testing.T) {
	cfg := routerConfig(t, []string{"region"})
	cfg.MaxOpenPartitions = 2
	r, err := NewRouter(cfg)
	require.NoError(t, err)
	defer r.Abort()

	routeRows(t, r, routerRow("a", -1, 1), routerRow("b", -1, 2))

	batch := pipeline.GetBatch()
	defer pipeline.ReturnBatch(batch)
	target := batch.AddRow()
	for k, v := range routerRow("c", -1, 3) {
		target[k] = v
	}

	err = r.Route(context.TODO(), batch)
	var tmp *TooManyPartitionsError
	require.ErrorAs(t, err, &tmp)
	assert.True(t, errors.Is(err, ErrTooManyPartitions))
	assert.Equal(t, 2, tmp.Limit)
}

func TestRouter_ValuesNeedingEscaping(t *testing.T) {
	r, err := NewRouter(routerConfig(t, []string{"region"}))
	require.NoError(t, err)

	routeRows(t, r, routerRow("us/east 1", -1, 1))

	results, err := r.CloseAll(context.TODO())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "region=us%2Feast%201", results[0].Key)
}

func TestRouter_RejectsUnknownPartitionColumn(t *testing.T) {
	_, err := NewRouter(routerConfig(t, []string{"nope"}))
	assert.Error(t, err)
}
