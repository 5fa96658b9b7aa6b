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
	"errors"
	"fmt"
)

// ErrTooManyPartitions indicates the partition column produced more
// distinct values than the router is allowed to keep open.
var ErrTooManyPartitions = errors.New("too many partitions")

// TooManyPartitionsError reports the partition that pushed the router over
// its limit.
type TooManyPartitionsError struct {
	Limit int
	Key   string
}

func (e *TooManyPartitionsError) Error() string {
	return fmt.Sprintf("partition %q exceeds the limit of %d open partitions", e.Key, e.Limit)
}

func (e *TooManyPartitionsError) Is(target error) bool { return target == ErrTooManyPartitions }
