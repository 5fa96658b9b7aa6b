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

package filereader

import (
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	recordsInCounter      otelmetric.Int64Counter
	recordsDroppedCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/quartzdata/parqconv/internal/filereader")

	var err error
	recordsInCounter, err = meter.Int64Counter(
		"parqconv.reader.records.in",
		otelmetric.WithDescription("Number of records read by readers from their input source"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create records.in counter: %w", err))
	}

	recordsDroppedCounter, err = meter.Int64Counter(
		"parqconv.reader.records.dropped",
		otelmetric.WithDescription("Number of malformed records dropped by readers"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create records.dropped counter: %w", err))
	}
}
