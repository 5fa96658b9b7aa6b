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

	"github.com/quartzdata/parqconv/internal/coerce"
	"github.com/quartzdata/parqconv/internal/filereader"
	"github.com/quartzdata/parqconv/internal/partition"
	"github.com/quartzdata/parqconv/internal/schema"
)

// FailureKind buckets a conversion failure for reporting.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureFraming          FailureKind = "framing"
	FailureSchemaResolution FailureKind = "schema_resolution"
	FailureCoercion         FailureKind = "coercion"
	FailureTooManyParts     FailureKind = "too_many_partitions"
	FailureCancelled        FailureKind = "cancelled"
	FailureIO               FailureKind = "io"
)

// ClassifyFailure maps an error to its failure bucket. Anything not matching
// a known sentinel is treated as an I/O level failure.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return FailureCancelled
	case errors.Is(err, filereader.ErrFraming):
		return FailureFraming
	case errors.Is(err, schema.ErrSchemaResolution):
		return FailureSchemaResolution
	case errors.Is(err, coerce.ErrCoercion):
		return FailureCoercion
	case errors.Is(err, partition.ErrTooManyPartitions):
		return FailureTooManyParts
	default:
		return FailureIO
	}
}
