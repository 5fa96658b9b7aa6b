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
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	recordsWrittenCounter   otelmetric.Int64Counter
	recordsRejectedCounter  otelmetric.Int64Counter
	coercionFailuresCounter otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/quartzdata/parqconv/internal/convert")

	var err error
	recordsWrittenCounter, err = meter.Int64Counter(
		"parqconv.convert.records.written",
		otelmetric.WithDescription("Number of records written to finalized parquet files"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create records.written counter: %w", err))
	}

	recordsRejectedCounter, err = meter.Int64Counter(
		"parqconv.convert.records.rejected",
		otelmetric.WithDescription("Number of records rejected during conversion"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create records.rejected counter: %w", err))
	}

	coercionFailuresCounter, err = meter.Int64Counter(
		"parqconv.convert.coercion.failures",
		otelmetric.WithDescription("Number of fields nulled by tolerant coercion"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create coercion.failures counter: %w", err))
	}
}
