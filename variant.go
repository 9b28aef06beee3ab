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

// Package gvariant implements a reader and writer for the GVariant
// binary serialization format: a typed, self-describing, little-endian
// wire format supporting zero-copy random access via framing offsets
// stored at container tails.
package gvariant

import (
	"github.com/SnellerInc/gvariant/glevel"
	"github.com/SnellerInc/gvariant/glimits"
	"github.com/SnellerInc/gvariant/gtype"
	"github.com/SnellerInc/gvariant/gvec"
	"github.com/SnellerInc/gvariant/gword"
)

// Variant is a single GVariant value, either being built (a writer)
// or positioned for traversal over borrowed bytes (a reader). A nil
// *Variant is accepted everywhere as a stand-in for the unit type
// "()": its only child is an empty tuple, so Enter("(")/Exit("(")
// succeed and read nothing, while any write fails with KindBadRequest
// and any attempt to read a basic value out of it fails with
// KindInvalidType (its only child is a tuple, not a basic value).
type Variant struct {
	typ []byte

	root  glevel.Level
	stack glevel.Stack

	arena *gvec.Arena

	sealed  bool
	writing bool

	poisonErr *Error

	// front/tail are the scatter/gather folding cursors access.go uses
	// to resolve absolute byte positions into (vector, offset) pairs
	// without ever materializing the arena's vectors into one
	// contiguous buffer. front tracks forward data reads/writes; tail
	// tracks framing-offset table lookups, which have their own,
	// independent locality pattern.
	front, tail cursor

	// frontPos is the writer's current absolute position: the total
	// number of bytes committed to the front (data) stream so far,
	// i.e. what len(buf) meant before the single-buffer design was
	// replaced by the arena's vector list.
	frontPos int
}

// New creates a writer for a value of the given type.
func New(typ string) (*Variant, error) {
	tb := []byte(typ)
	info, err := gtype.SignatureOne(tb)
	if err != nil {
		return nil, mapTypeErr("new", err)
	}
	v := &Variant{typ: append([]byte(nil), tb...), writing: true, arena: gvec.New()}
	v.root = glevel.Level{Base: 0, Size: -1, Type: v.typ, Enclosing: glevel.KindTuple, Index: 1}

	// Seed the arena's very first backing buffer. Nothing is appended
	// to the vector list here: the buffer's front share is cached as
	// spare capacity that the first writes draw from, and its tail
	// share (bookkeeping scratch) is discarded, since this writer keeps
	// its own pending-offset bookkeeping in the Level rather than in
	// the tail share itself. The buffer is the arena's first geometric
	// step (glimits.ReserveStart bytes) for either kind of root; it is
	// not sized to a fixed-size root's own size, and a variable-size
	// root only asks for a tail share of at least the tail part of
	// glimits.InitialBufferSize's 80/20 split.
	if info.Size > 0 {
		if _, _, err := v.arena.ReserveSplit(0, 0); err != nil {
			return nil, mapVecErr("new", err)
		}
	} else {
		frontNeed := glimits.InitialBufferSize * glimits.FrontShareNum / glimits.FrontShareDen
		tailNeed := glimits.InitialBufferSize - frontNeed
		if _, _, err := v.arena.ReserveSplit(0, tailNeed); err != nil {
			return nil, mapVecErr("new", err)
		}
	}
	return v, nil
}

// NewFromVecs creates a sealed reader directly over the given byte
// ranges: they are borrowed, not copied, and remain the caller's to
// reuse or discard only once the Variant is done with them (i.e.
// after the last read, or after Free). GetVecs on a Variant built this
// way returns exactly these ranges back.
func NewFromVecs(typ string, vecs [][]byte) (*Variant, error) {
	tb := []byte(typ)
	_, err := gtype.SignatureOne(tb)
	if err != nil {
		return nil, mapTypeErr("new_from_vecs", err)
	}

	a := gvec.New()
	if err := a.InsertBorrowed(vecs); err != nil {
		return nil, mapVecErr("new_from_vecs", err)
	}
	total := a.TotalLen()
	if total > (1<<32 - 1) {
		return nil, &Error{Kind: KindTooBig, Op: "new_from_vecs"}
	}

	v := &Variant{typ: append([]byte(nil), tb...), arena: a, sealed: true}
	v.root = glevel.Level{
		Base:      0,
		Size:      total,
		Wordsize:  gword.Size(0, total),
		Enclosing: glevel.KindTuple,
		Index:     1,
		Type:      v.typ,
	}
	return v, nil
}

// Free releases a Variant's resources. Go's garbage collector already
// reclaims everything a Variant owns once it becomes unreachable, so
// Free exists purely for API symmetry with the original library (and
// to give callers an explicit point to stop using a value); it clears
// the Variant's fields defensively and is not required for memory
// safety.
func Free(v *Variant) {
	if v == nil {
		return
	}
	*v = Variant{}
}

// IsSealed reports whether v has transitioned from writable to
// readable. A nil Variant is always sealed (it behaves as "()").
func IsSealed(v *Variant) bool {
	if v == nil {
		return true
	}
	return v.sealed
}

// ReturnPoison returns the first error ever produced by an operation
// on v, or nil when no error has occurred.
func ReturnPoison(v *Variant) *Error {
	if v == nil {
		return nil
	}
	return v.poisonErr
}

func (v *Variant) fail(err error) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		e = &Error{Kind: KindInternal, Err: err}
	}
	if v == nil {
		return e
	}
	if v.poisonErr == nil {
		v.poisonErr = e
	}
	return e
}

// GetVecs returns the Variant's backing vector list. For a reader
// these are the same borrowed ranges passed to NewFromVecs; for a
// sealed writer they are the library-owned buffers produced by Seal.
func (v *Variant) GetVecs() [][]byte {
	if v == nil || v.arena == nil {
		return nil
	}
	return v.arena.Clone()
}

// Rewind moves a reader's cursor back to the start of the root value,
// discarding any open Enter levels.
func (v *Variant) Rewind() {
	if v == nil {
		return
	}
	v.stack.Reset()
	v.root.Type = v.typ
	v.root.Offset = 0
	v.front.reset()
	v.tail.reset()
}

func (v *Variant) curLevel() *glevel.Level {
	if v == nil {
		l := unitLevel
		return &l
	}
	if l := v.stack.Top(); l != nil {
		return l
	}
	return &v.root
}

// unitLevel is the template a nil *Variant's read-only accessors copy
// to behave as the unit type "()"; curLevel never returns its address
// directly so a nil Variant's callers can never mutate the shared
// template.
var unitLevel = glevel.Level{Type: []byte("()"), Size: 1, Enclosing: glevel.KindTuple, Index: 1}

// PeekCount reports the number of elements remaining at the current
// position: an array's remaining element count, a maybe's presence
// (0 or 1), or 1 for any other non-exhausted type, 0 once the current
// frame is exhausted.
func (v *Variant) PeekCount() int {
	if v == nil {
		return 1
	}
	l := v.curLevel()
	switch l.Enclosing {
	case glevel.KindArray:
		if len(l.Type) == 0 {
			return 0
		}
		elem, err := gtype.SignatureOne(l.Type)
		if err != nil {
			return 0
		}
		if elem.Size > 0 {
			return l.Size/elem.Size - l.Index
		}
		count, ok := v.arrayCount(l)
		if !ok || l.Index >= count {
			return 0
		}
		return count - l.Index
	case glevel.KindMaybe, glevel.KindVariant:
		return l.Index
	default:
		if len(l.Type) == 0 {
			return 0
		}
		return 1
	}
}

// PeekType returns the type string of the next value at the current
// position, without consuming it.
func (v *Variant) PeekType() []byte {
	l := v.curLevel()
	switch l.Enclosing {
	case glevel.KindArray, glevel.KindMaybe, glevel.KindVariant:
		if v.PeekCount() == 0 {
			return nil
		}
	}
	if len(l.Type) == 0 {
		return nil
	}
	info, err := gtype.Signature(l.Type)
	if err != nil {
		return nil
	}
	return l.Type[:info.Length]
}
