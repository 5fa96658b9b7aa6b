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

package coerce

import (
	"errors"
	"fmt"

	"github.com/quartzdata/parqconv/internal/schema"
)

// ErrCoercion indicates a field value could not be converted to its
// declared column type.
var ErrCoercion = errors.New("field coercion failed")

// FieldCoercionError reports one field that failed conversion, with enough
// context to locate the offending value in the source.
type FieldCoercionError struct {
	Source string
	Line   int64
	Column string
	Value  string
	Type   schema.SemanticType
	Reason string
	Err    error
}

func (e *FieldCoercionError) Error() string {
	loc := e.Column
	if e.Source != "" {
		loc = fmt.Sprintf("%s:%d %s", e.Source, e.Line, e.Column)
	}
	if e.Err != nil {
		return fmt.Sprintf("coerce %s to %s: %s: %v", loc, e.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("coerce %s to %s: %s", loc, e.Type, e.Reason)
}

func (e *FieldCoercionError) Unwrap() error { return e.Err }

func (e *FieldCoercionError) Is(target error) bool { return target == ErrCoercion }
