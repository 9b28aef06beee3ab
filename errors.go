// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package gvariant

import (
	"errors"
	"fmt"

	"github.com/SnellerInc/gvariant/gtype"
	"github.com/SnellerInc/gvariant/gvec"
)

// Kind is one of the closed set of error categories an operation on a
// Variant can fail with.
type Kind int

const (
	KindBadRequest Kind = iota
	KindInvalidType
	KindTooDeep
	KindTooLong
	KindTooBig
	KindOutOfBuffers
	KindOutOfMemory
	KindNotUnique
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad-request"
	case KindInvalidType:
		return "invalid-type"
	case KindTooDeep:
		return "too-deep"
	case KindTooLong:
		return "too-long"
	case KindTooBig:
		return "too-big"
	case KindOutOfBuffers:
		return "out-of-buffers"
	case KindOutOfMemory:
		return "out-of-memory"
	case KindNotUnique:
		return "not-unique"
	default:
		return "internal"
	}
}

// Error is the concrete error type returned by every Variant
// operation that can fail. It carries the operation name and the
// error Kind, mirroring ion.TypeError's shape in the teacher package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gvariant: %s: %s: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("gvariant: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err is a *Error of the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func mapTypeErr(op string, err error) *Error {
	switch {
	case errors.Is(err, gtype.ErrTooDeep):
		return &Error{Kind: KindTooDeep, Op: op, Err: err}
	case errors.Is(err, gtype.ErrTooLong):
		return &Error{Kind: KindTooLong, Op: op, Err: err}
	case errors.Is(err, gtype.ErrInvalidType):
		return &Error{Kind: KindInvalidType, Op: op, Err: err}
	default:
		return &Error{Kind: KindInternal, Op: op, Err: err}
	}
}

func mapVecErr(op string, err error) *Error {
	switch {
	case errors.Is(err, gvec.ErrOutOfBuffers):
		return &Error{Kind: KindOutOfBuffers, Op: op, Err: err}
	case errors.Is(err, gvec.ErrTooBig):
		return &Error{Kind: KindTooBig, Op: op, Err: err}
	default:
		return &Error{Kind: KindInternal, Op: op, Err: err}
	}
}
