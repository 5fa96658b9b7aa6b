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
	"fmt"

	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var partitionsOpenedCounter otelmetric.Int64Counter

func init() {
	meter := otel.Meter("github.com/quartzdata/parqconv/internal/partition")

	var err error
	partitionsOpenedCounter, err = meter.Int64Counter(
		"parqconv.partition.writers.opened",
		otelmetric.WithDescription("Number of partition writers opened by the router"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create writers.opened counter: %w", err))
	}
}
