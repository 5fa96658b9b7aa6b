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
	"bytes"

	"github.com/quartzdata/parqconv/internal/pipeline"
	"github.com/quartzdata/parqconv/internal/pipeline/wkk"
	"github.com/quartzdata/parqconv/internal/schema"
)

// ColumnStats summarizes one column of one finished file. Min and Max hold
// the column's native value representation and are nil when every value was
// null.
type ColumnStats struct {
	Name      string
	NullCount int64
	Min       any
	Max       any
}

type columnTracker struct {
	stats ColumnStats
	key   wkk.RowKey
}

// statsAccumulator tracks per-column extremes and null counts for the rows
// of a single output file.
type statsAccumulator struct {
	trackers []*columnTracker
}

func newStatsAccumulator(s *schema.Schema) *statsAccumulator {
	trackers := make([]*columnTracker, s.Len())
	for i, def := range s.Columns() {
		trackers[i] = &columnTracker{
			stats: ColumnStats{Name: def.Name},
			key:   wkk.NewRowKey(def.Name),
		}
	}
	return &statsAccumulator{trackers: trackers}
}

func (a *statsAccumulator) observe(row pipeline.Row) {
	for _, tr := range a.trackers {
		value, ok := row[tr.key]
		if !ok || value == nil {
			tr.stats.NullCount++
			continue
		}
		if tr.stats.Min == nil {
			tr.stats.Min = value
			tr.stats.Max = value
			continue
		}
		if lessValue(value, tr.stats.Min) {
			tr.stats.Min = value
		}
		if lessValue(tr.stats.Max, value) {
			tr.stats.Max = value
		}
	}
}

func (a *statsAccumulator) snapshot() []ColumnStats {
	out := make([]ColumnStats, len(a.trackers))
	for i, tr := range a.trackers {
		out[i] = tr.stats
	}
	return out
}

// lessValue orders two values of the same native representation. Mixed or
// unordered types compare as equal so stats stay stable instead of flapping.
func lessValue(a, b any) bool {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		return ok && av < bv
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	case int32:
		bv, ok := b.(int32)
		return ok && av < bv
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	case bool:
		bv, ok := b.(bool)
		return ok && !av && bv
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Compare(av, bv) < 0
	default:
		return false
	}
}
