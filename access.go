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
	"github.com/SnellerInc/gvariant/gtype"
	"github.com/SnellerInc/gvariant/gword"
)

// locate folds an absolute byte offset into a (vector index, offset
// within that vector) pair, starting from a position already known to
// denote (vec, off, abs) and stepping one vector at a time - forward
// or backward - until abs reaches target. It never computes a
// vector's identity by dividing the absolute offset by vector sizes;
// it only ever adds or subtracts one vector's worth of length at a
// time, which is what lets the same function serve both a monotonic
// forward scan (the common case) and the occasional backward retract
// that a non-canonical framing offset can provoke.
func locate(vecs [][]byte, vec, off, abs, target int) (int, int, bool) {
	for abs < target {
		if vec >= len(vecs) {
			return 0, 0, false
		}
		avail := len(vecs[vec]) - off
		if target-abs < avail {
			off += target - abs
			return vec, off, true
		}
		abs += avail
		vec++
		off = 0
	}
	for abs > target {
		if off == 0 {
			vec--
			if vec < 0 {
				return 0, 0, false
			}
			off = len(vecs[vec])
		}
		if abs-target < off {
			off -= abs - target
			return vec, off, true
		}
		abs -= off
		off = 0
	}
	return vec, off, true
}

// cursor caches the last vector/offset a locate call resolved, so a
// Variant's sequence of mostly-monotonic reads (or writes) fold
// forward one vector at a time rather than rescanning from the start
// of the vector list on every access.
type cursor struct {
	abs, vec, off int
	valid         bool
}

func (c *cursor) resolve(vecs [][]byte, target int) (vecIdx, off int, ok bool) {
	if !c.valid {
		c.abs, c.vec, c.off = 0, 0, 0
		c.valid = true
	}
	vi, vo, ok := locate(vecs, c.vec, c.off, c.abs, target)
	if !ok {
		return 0, 0, false
	}
	c.vec, c.off, c.abs = vi, vo, target
	return vi, vo, true
}

func (c *cursor) reset() { *c = cursor{} }

// rangeVia returns the wire bytes [start, end) starting from whichever
// vector/offset cur resolves start to. The common case - the whole
// span fits in that one vector - returns a direct subslice, zero-copy.
// A span that straddles a vector boundary (the one case a scatter/
// gather arena can produce that a flat buffer never could) is gathered
// into a freshly allocated slice of exactly its own length, copying
// only those bytes - never the whole arena. ok is false only when the
// span runs past the end of the vector list, the true out-of-bounds,
// malformed-input case a caller substitutes a default value for.
func rangeVia(cur *cursor, vecs [][]byte, start, end int) ([]byte, bool) {
	n := end - start
	if n < 0 {
		return nil, false
	}
	if n == 0 {
		return []byte{}, true
	}
	vi, vo, ok := cur.resolve(vecs, start)
	if !ok || vi >= len(vecs) {
		return nil, false
	}
	if vo+n <= len(vecs[vi]) {
		return vecs[vi][vo : vo+n], true
	}

	out := make([]byte, 0, n)
	for len(out) < n {
		if vi >= len(vecs) {
			return nil, false
		}
		avail := vecs[vi][vo:]
		take := n - len(out)
		if take > len(avail) {
			take = len(avail)
		}
		out = append(out, avail[:take]...)
		vo += take
		if vo >= len(vecs[vi]) {
			vi++
			vo = 0
		}
	}
	cur.vec, cur.off, cur.abs, cur.valid = vi, vo, end, true
	return out, true
}

// byteRange returns the contiguous wire bytes [start, end) using the
// front cursor, the common zero-copy case.
func (v *Variant) byteRange(start, end int) ([]byte, bool) {
	return rangeVia(&v.front, v.arena.Vecs(), start, end)
}

// byteAt returns the single byte at an absolute position via the
// front cursor.
func (v *Variant) byteAt(pos int) (byte, bool) {
	b, ok := v.byteRange(pos, pos+1)
	if !ok || len(b) == 0 {
		return 0, false
	}
	return b[0], true
}

// tailRange is byteRange's counterpart for framing-offset lookups: it
// uses a separate cursor because tail accesses (file-order array
// tables, reverse-order tuple tables) have their own locality pattern,
// distinct from - and often interleaved with - the forward data scan
// that drives byteRange. This is the "front_vec/tail_vec pair"
// distinction the wire format's internal notes describe, kept at the
// Variant rather than per-Level: the coordinate space is global across
// the whole value, so one pair of cursors serves every open level.
func (v *Variant) tailRange(start, end int) ([]byte, bool) {
	return rangeVia(&v.tail, v.arena.Vecs(), start, end)
}

func (v *Variant) tailWord(pos int, wordsize uint8) (uint64, bool) {
	wb := gword.Bytes(wordsize)
	b, ok := v.tailRange(pos, pos+wb)
	if !ok {
		return 0, false
	}
	return gword.Load(b, wordsize), true
}

// scanVariantType splits a variant's raw byte span [start,end) into
// its payload and child type, scanning backward byte-by-byte for the
// NUL separator GVariant stores between a variant's payload and its
// trailing type string. If no NUL is present, or the span cannot be
// read at all (it runs past the end of the vector list) - both malformed
// input - the payload is treated as empty and the type as the unit
// type "()", the documented recovery behavior for this class of
// malformed data.
func (v *Variant) scanVariantType(start, end int) ([]byte, int, error) {
	for i := end - 1; i >= start; i-- {
		b, ok := v.byteAt(i)
		if !ok {
			return []byte("()"), start, nil
		}
		if b == 0 {
			typ, ok := v.byteRange(i+1, end)
			if !ok {
				return []byte("()"), start, nil
			}
			if _, err := gtype.SignatureOne(typ); err != nil {
				return []byte("()"), start, nil
			}
			return typ, i, nil
		}
	}
	return []byte("()"), start, nil
}
