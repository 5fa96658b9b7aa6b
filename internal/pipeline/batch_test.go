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

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzdata/parqconv/internal/pipeline/wkk"
)

var (
	keyID   = wkk.NewRowKey("id")
	keyName = wkk.NewRowKey("name")
)

func TestBatch_AddAndGet(t *testing.T) {
	batch := GetBatch()
	defer ReturnBatch(batch)

	row := batch.AddRow()
	row[keyID] = int64(1)
	row[keyName] = "alice"

	require.Equal(t, 1, batch.Len())
	got := batch.Get(0)
	assert.Equal(t, int64(1), got[keyID])
	assert.Equal(t, "alice", got[keyName])

	assert.Nil(t, batch.Get(1))
	assert.Nil(t, batch.Get(-1))
}

func TestBatch_DeleteTailPreservesOrder(t *testing.T) {
	batch := GetBatch()
	defer ReturnBatch(batch)

	for i := int64(0); i < 3; i++ {
		batch.AddRow()[keyID] = i
	}

	batch.DeleteRow(batch.Len() - 1)
	require.Equal(t, 2, batch.Len())
	assert.Equal(t, int64(0), batch.Get(0)[keyID])
	assert.Equal(t, int64(1), batch.Get(1)[keyID])
}

func TestBatch_ReuseClearsRows(t *testing.T) {
	batch := GetBatch()
	batch.AddRow()[keyID] = int64(42)
	ReturnBatch(batch)

	fresh := GetBatch()
	defer ReturnBatch(fresh)
	assert.Equal(t, 0, fresh.Len())
	row := fresh.AddRow()
	_, present := row[keyID]
	assert.False(t, present)
}

func TestCopyRow(t *testing.T) {
	batch := GetBatch()
	row := batch.AddRow()
	row[keyID] = int64(5)
	row[keyName] = "bob"

	dup := CopyRow(row)
	ReturnBatch(batch)

	// The copy survives the batch returning to the pool.
	assert.Equal(t, int64(5), dup[keyID])
	assert.Equal(t, "bob", dup[keyName])
}

func TestWkkInterning(t *testing.T) {
	a := wkk.NewRowKey("column")
	b := wkk.NewRowKey("column")
	assert.Equal(t, a, b)
	assert.Equal(t, "column", wkk.RowKeyValue(a))
}
