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

// Package pipeline provides the row and batch plumbing shared by the
// conversion stages: pooled map-backed rows keyed by interned column names,
// and bounded batches that are created, filled, consumed exactly once, and
// returned to the pool.
package pipeline

import (
	"maps"

	"github.com/quartzdata/parqconv/internal/pipeline/wkk"
)

// Row represents a single typed record as a map of RowKey to value. A nil
// value never appears in a Row; null fields are simply absent.
type Row map[wkk.RowKey]any

// CopyRow creates a deep copy of a row, detaching it from the pooled batch
// that owns it.
func CopyRow(in Row) Row {
	out := make(Row, len(in))
	maps.Copy(out, in)
	return out
}
