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

// Package gvec implements the scatter/gather vector arena shared by
// the reader and writer: an ordered list of byte ranges ("vectors"),
// a parallel bit recording which of them the arena itself allocated
// (and must therefore never be true for caller-supplied data spliced
// in through Insert), and the front/tail reservation policy used
// while building a new value.
package gvec

import (
	"errors"

	"golang.org/x/exp/slices"

	"github.com/SnellerInc/gvariant/glimits"
	"github.com/SnellerInc/gvariant/internal/bits"
)

var (
	// ErrOutOfBuffers is returned when a single value would need more
	// iovecs than glimits.MaxVecs.
	ErrOutOfBuffers = errors.New("gvec: too many vectors")
	// ErrTooBig is returned when a buffer allocation or the total
	// value size would overflow the address space this package
	// operates in.
	ErrTooBig = errors.New("gvec: size overflow")
)

// Arena holds the vector list for one Variant. Vectors from index 0
// are filled front-to-back as data is written ("front" vectors); the
// last allocated buffer of the arena may additionally donate a tail
// region used for scratch framing-offset bookkeeping during writes.
type Arena struct {
	vecs  [][]byte
	owned []uint64 // packed ownership bitset, one bit per vecs[i]
	nvec  int      // logical length of vecs/owned (owned may run ahead)

	// unused caches exactly one spare allocated-but-unwritten buffer,
	// mirroring the original implementation's single-slot reuse cache.
	unused []byte

	nalloc int // number of fresh buffer allocations so far (growth counter)
}

// New returns an empty arena.
func New() *Arena { return &Arena{} }

// Len returns the number of vectors currently in the arena.
func (a *Arena) Len() int { return a.nvec }

// Vec returns the i-th vector.
func (a *Arena) Vec(i int) []byte { return a.vecs[i] }

// Owned reports whether the arena itself allocated vector i (as
// opposed to it having been spliced in by Insert).
func (a *Arena) Owned(i int) bool { return bits.Test(a.owned, i) }

// Vecs returns the full, in-use vector list. Callers must not retain
// or mutate the returned slice across further arena operations.
func (a *Arena) Vecs() [][]byte { return a.vecs[:a.nvec] }

func (a *Arena) ensureBitCapacity(n int) {
	need := bits.WordsNeeded[uint64](n)
	for len(a.owned) < need {
		a.owned = append(a.owned, 0)
	}
}

// appendVec appends one vector to the arena, recording its ownership.
func (a *Arena) appendVec(v []byte, owned bool) (int, error) {
	if a.nvec >= glimits.MaxVecs {
		return 0, ErrOutOfBuffers
	}
	idx := a.nvec
	if idx < len(a.vecs) {
		a.vecs[idx] = v
	} else {
		a.vecs = append(a.vecs, v)
	}
	a.ensureBitCapacity(idx + 1)
	if owned {
		bits.Set(a.owned, idx)
	} else {
		bits.Clear(a.owned, idx)
	}
	a.nvec = idx + 1
	return idx, nil
}

// InsertBorrowed splices caller-owned vectors into the arena without
// copying; they are never freed by the arena and are never grown
// into. Used by the writer's zero-copy Insert operation.
func (a *Arena) InsertBorrowed(vecs [][]byte) error {
	for _, v := range vecs {
		if _, err := a.appendVec(v, false); err != nil {
			return err
		}
	}
	return nil
}

// nextBufferSize computes the geometric growth step: the arena's
// buffers start at glimits.ReserveStart and double with every
// allocation, capped at glimits.ReserveMax.
func (a *Arena) nextBufferSize(need int) (int, error) {
	size := glimits.ReserveStart
	for i := 0; i < a.nalloc && size < glimits.ReserveMax; i++ {
		size *= 2
	}
	if size > glimits.ReserveMax {
		size = glimits.ReserveMax
	}
	for size < need {
		if size >= glimits.ReserveMax {
			return 0, ErrTooBig
		}
		size *= 2
		if size > glimits.ReserveMax {
			size = glimits.ReserveMax
		}
	}
	return size, nil
}

// Grow reports whether the arena's current last vector is itself
// arena-owned and has spare capacity left over from its original
// allocation; if so it extends that vector's length by n in place
// (the "if the current front vector has room, use it" step of the
// reservation policy, tried before consulting the unused cache or
// allocating) and returns the newly available sub-slice.
func (a *Arena) Grow(n int) ([]byte, bool) {
	if a.nvec == 0 {
		return nil, false
	}
	idx := a.nvec - 1
	if !a.Owned(idx) {
		return nil, false
	}
	cur := a.vecs[idx]
	if cap(cur)-len(cur) < n {
		return nil, false
	}
	grown := cur[:len(cur)+n]
	a.vecs[idx] = grown
	// The cached spare, when it starts right after cur in the same
	// backing array, loses the bytes just taken so they are never
	// handed out a second time.
	if n > 0 && len(a.unused) > 0 && &a.unused[0] == &grown[len(cur)] {
		if len(a.unused) > n {
			a.unused = a.unused[n:]
		} else {
			a.unused = nil
		}
	}
	return grown[len(cur):], true
}

// Reserve returns need bytes of fresh, arena-owned storage (the
// returned slice's base address is not aligned to any particular
// boundary): it first tries to extend the current front vector in
// place (Grow), then the cached unused spare buffer, and only
// allocates a new backing buffer once both are too small. The
// returned slice is appended to the arena as one owned vector (unless
// obtained via Grow, in which case it already is part of one) and
// also returned directly so the caller can fill it in place.
func (a *Arena) Reserve(need int) ([]byte, error) {
	if need == 0 {
		return nil, nil
	}
	if buf, ok := a.Grow(need); ok {
		return buf, nil
	}
	if len(a.unused) >= need {
		buf := a.unused[:need]
		a.unused = a.unused[need:]
		if _, err := a.appendVec(buf, true); err != nil {
			return nil, err
		}
		return buf, nil
	}

	size, err := a.nextBufferSize(need)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, size)
	a.nalloc++

	// no front-share split here (only ReserveSplit applies one): front
	// gets the requested bytes, the whole remainder is cached as the
	// new "unused" spare.
	front := raw[:need]
	a.unused = raw[need:]
	if _, err := a.appendVec(front, true); err != nil {
		return nil, err
	}
	return front, nil
}

// ReserveSplit allocates a fresh buffer and splits it between a front
// share (data) and a tail share (bookkeeping scratch), per
// glimits.FrontShareNum/Den, used when both regions of a container
// need room from the same freshly allocated buffer simultaneously -
// in practice, the one-time seed allocation New performs for a fresh
// writer. frontNeed may be 0 (no vector is appended in that case; the
// whole front share becomes spare capacity for later Reserve calls).
func (a *Arena) ReserveSplit(frontNeed, tailNeed int) (front, tail []byte, err error) {
	total := frontNeed + tailNeed
	size, err := a.nextBufferSize(total)
	if err != nil {
		return nil, nil, err
	}
	shared := size * glimits.FrontShareNum / glimits.FrontShareDen
	if shared < frontNeed {
		shared = frontNeed
	}
	if size-shared < tailNeed {
		shared = size - tailNeed
	}
	raw := make([]byte, size)
	a.nalloc++
	front = raw[:frontNeed]
	tail = raw[shared : shared+tailNeed]
	if frontNeed > 0 {
		if _, err := a.appendVec(front, true); err != nil {
			return nil, nil, err
		}
	}
	a.unused = raw[frontNeed:shared]
	return front, tail, nil
}

// Clip truncates the last in-use vector to n bytes and discards the
// unused spare buffer, as done by Seal.
func (a *Arena) Clip(n int) {
	if a.nvec == 0 {
		return
	}
	a.vecs[a.nvec-1] = a.vecs[a.nvec-1][:n]
	a.unused = nil
}

// Clone returns a deep-enough copy of the arena's vector list (the
// backing byte arrays are shared, only the index is copied), used by
// Variant.GetVecs so callers cannot corrupt the arena's bookkeeping.
func (a *Arena) Clone() [][]byte {
	return slices.Clone(a.vecs[:a.nvec])
}

// TotalLen returns the sum of all vector lengths.
func (a *Arena) TotalLen() int {
	n := 0
	for _, v := range a.vecs[:a.nvec] {
		n += len(v)
	}
	return n
}
