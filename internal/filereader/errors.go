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
	"errors"
	"fmt"
)

// ErrFraming is the sentinel for fatal framing failures: the reader can no
// longer trust its position in the stream and must stop.
// Use errors.Is(err, ErrFraming) to check for this condition.
var ErrFraming = errors.New("stream framing lost")

// ErrRecord is the sentinel for recoverable per-record failures. The record
// is dropped but the stream remains aligned and reading continues.
var ErrRecord = errors.New("malformed record")

// FramingError reports a fatal loss of stream alignment.
type FramingError struct {
	Source string
	Line   int64
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s line %d: %s: %v", ErrFraming, e.Source, e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s line %d: %s", ErrFraming, e.Source, e.Line, e.Reason)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

func (e *FramingError) Is(target error) bool {
	return target == ErrFraming
}

// RecordError reports a malformed record that was skipped without losing
// stream alignment.
type RecordError struct {
	Source string
	Line   int64
	Reason string
	Err    error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s line %d: %s: %v", ErrRecord, e.Source, e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s line %d: %s", ErrRecord, e.Source, e.Line, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Is(target error) bool {
	return target == ErrRecord
}
