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
	"bytes"
	"encoding/binary"
	"math"

	"github.com/SnellerInc/gvariant/glevel"
	"github.com/SnellerInc/gvariant/gtype"
	"github.com/SnellerInc/gvariant/gword"
)

func (v *Variant) checkWritable(op string) error {
	if v == nil {
		return badRequest(op)
	}
	if !v.writing || v.sealed {
		return v.fail(badRequest(op))
	}
	return nil
}

// reserveFront hands back n bytes of fresh, arena-owned storage at the
// front (data) stream's current position, without advancing v.frontPos
// itself - callers fill the returned slice and then bump frontPos.
func (v *Variant) reserveFront(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf, err := v.arena.Reserve(n)
	if err != nil {
		return nil, v.fail(mapVecErr("write", err))
	}
	return buf, nil
}

func (v *Variant) padTo(align uint8) error {
	mask := (1 << align) - 1
	pad := (-v.frontPos) & mask
	if pad == 0 {
		return nil
	}
	if _, err := v.reserveFront(pad); err != nil {
		return err
	}
	v.frontPos += pad
	return nil
}

// expectedType returns the type string the next Write/Begin/Insert
// call into l is required to match: the whole element type for an
// array, maybe or variant frame (which repeats or is fixed
// throughout), or the head of the remaining sibling list for a tuple,
// pair or the root.
func (v *Variant) expectedType(l *glevel.Level) ([]byte, error) {
	switch l.Enclosing {
	case glevel.KindArray, glevel.KindMaybe, glevel.KindVariant:
		if len(l.Type) == 0 {
			return nil, badRequest("write")
		}
		return l.Type, nil
	default:
		if len(l.Type) == 0 {
			return nil, badRequest("write")
		}
		info, err := gtype.Signature(l.Type)
		if err != nil {
			return nil, mapTypeErr("write", err)
		}
		return l.Type[:info.Length], nil
	}
}

func checkSingleUse(l *glevel.Level) error {
	if (l.Enclosing == glevel.KindMaybe || l.Enclosing == glevel.KindVariant) && l.Index == 1 {
		return badRequest("write")
	}
	return nil
}

// writerAdvance records that a child with the given overall fixed size
// (0 if variable) and type-string span ending at the absolute buffer
// position childEnd has just finished being written into l, updating
// l's cursor and, where the wire format requires one, appending the
// child's frame-relative end offset to l's pending tail-slot list.
func writerAdvance(l *glevel.Level, childFixedSize, childTypeSpan, childEnd int) {
	rel := childEnd - l.Base
	switch l.Enclosing {
	case glevel.KindArray:
		l.Offset = rel
		l.Index++
		if childFixedSize == 0 {
			l.TailSlots = append(l.TailSlots, rel)
		}
	case glevel.KindMaybe:
		l.Offset = rel
		l.Index = 1
	case glevel.KindVariant:
		l.Offset = rel
		l.Index = 1
	default: // KindRoot, KindTuple, KindPair
		isLast := childTypeSpan == len(l.Type)
		l.Offset = rel
		l.Type = l.Type[childTypeSpan:]
		if childFixedSize == 0 && !isLast {
			l.TailSlots = append(l.TailSlots, rel)
		}
	}
}

// writeLeaf appends one basic value's wire bytes to the current
// level, after validating that c is what the level expects and
// padding to c's alignment.
func (v *Variant) writeLeaf(op string, c byte, payload []byte) error {
	if err := v.checkWritable(op); err != nil {
		return err
	}
	l := v.curLevel()
	if err := checkSingleUse(l); err != nil {
		return v.fail(err)
	}
	head, err := v.expectedType(l)
	if err != nil {
		return v.fail(err)
	}
	if len(head) == 0 || head[0] != c {
		return v.fail(invalidType(op))
	}
	align, ok := gtype.Alignment(c)
	if !ok {
		return v.fail(invalidType(op))
	}
	if err := v.padTo(align); err != nil {
		return err
	}
	buf, err := v.reserveFront(len(payload))
	if err != nil {
		return err
	}
	copy(buf, payload)
	v.frontPos += len(payload)
	writerAdvance(l, gtype.FixedSize(c), 1, v.frontPos)
	return nil
}

// WriteBool writes a boolean value.
func (v *Variant) WriteBool(b bool) error {
	var p byte
	if b {
		p = 1
	}
	return v.writeLeaf("write_boolean", 'b', []byte{p})
}

// WriteByte writes a single byte.
func (v *Variant) WriteByte(b byte) error {
	return v.writeLeaf("write_byte", 'y', []byte{b})
}

// WriteInt16 writes a signed 16-bit integer.
func (v *Variant) WriteInt16(n int16) error {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, uint16(n))
	return v.writeLeaf("write_int16", 'n', p)
}

// WriteUint16 writes an unsigned 16-bit integer.
func (v *Variant) WriteUint16(n uint16) error {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, n)
	return v.writeLeaf("write_uint16", 'q', p)
}

// WriteInt32 writes a signed 32-bit integer.
func (v *Variant) WriteInt32(n int32) error {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint32(p, uint32(n))
	return v.writeLeaf("write_int32", 'i', p)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (v *Variant) WriteUint32(n uint32) error {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint32(p, n)
	return v.writeLeaf("write_uint32", 'u', p)
}

// WriteHandle writes a 32-bit file-descriptor-index handle.
func (v *Variant) WriteHandle(n int32) error {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint32(p, uint32(n))
	return v.writeLeaf("write_handle", 'h', p)
}

// WriteInt64 writes a signed 64-bit integer.
func (v *Variant) WriteInt64(n int64) error {
	p := make([]byte, 8)
	binary.LittleEndian.PutUint64(p, uint64(n))
	return v.writeLeaf("write_int64", 'x', p)
}

// WriteUint64 writes an unsigned 64-bit integer.
func (v *Variant) WriteUint64(n uint64) error {
	p := make([]byte, 8)
	binary.LittleEndian.PutUint64(p, n)
	return v.writeLeaf("write_uint64", 't', p)
}

// WriteFloat64 writes an IEEE 754 double.
func (v *Variant) WriteFloat64(f float64) error {
	p := make([]byte, 8)
	binary.LittleEndian.PutUint64(p, math.Float64bits(f))
	return v.writeLeaf("write_double", 'd', p)
}

// WriteString writes a NUL-terminated UTF-8 string.
func (v *Variant) WriteString(s string) error {
	p := append([]byte(s), 0)
	return v.writeLeaf("write_string", 's', p)
}

// WriteObjectPath writes a D-Bus object path string.
func (v *Variant) WriteObjectPath(s string) error {
	p := append([]byte(s), 0)
	return v.writeLeaf("write_object_path", 'o', p)
}

// WriteSignature writes a type-signature string.
func (v *Variant) WriteSignature(s string) error {
	p := append([]byte(s), 0)
	return v.writeLeaf("write_signature", 'g', p)
}

// Begin opens a new container level: c is 'v', 'm', 'a', '(' or '{',
// and childType is that container's full type string as it appears at
// the current position (e.g. "ai" to open an array of int32, "(us)"
// to open a tuple, or the payload's own type when c is 'v'). Every
// Begin must be matched by an End with the same c once all of the
// container's children have been written.
func (v *Variant) Begin(c byte, childType string) error {
	if err := v.checkWritable("begin"); err != nil {
		return err
	}
	l := v.curLevel()
	if err := checkSingleUse(l); err != nil {
		return v.fail(err)
	}

	typeStr := []byte(childType)
	head, err := v.expectedType(l)
	if err != nil {
		return v.fail(err)
	}
	if c == 'v' {
		if len(typeStr) == 0 {
			return v.fail(badRequest("begin"))
		}
		if len(head) == 0 || head[0] != 'v' {
			return v.fail(invalidType("begin"))
		}
	} else if !bytes.Equal(head, typeStr) {
		return v.fail(invalidType("begin"))
	}

	info, err := gtype.SignatureOne(typeStr)
	if err != nil {
		return v.fail(mapTypeErr("begin", err))
	}
	if c != 'v' && (len(info.Type) == 0 || info.Type[0] != c) {
		return v.fail(invalidType("begin"))
	}

	align := info.Alignment
	if c == 'v' {
		align, _ = gtype.Alignment('v')
	}
	if err := v.padTo(align); err != nil {
		return err
	}
	dataStart := v.frontPos

	var child glevel.Level
	switch c {
	case 'v':
		child = glevel.Level{Base: dataStart, Enclosing: glevel.KindVariant, Type: append([]byte(nil), typeStr...), FixedSize: 0, TypeSpan: 1}
	case 'a':
		inner := typeStr[1:]
		child = glevel.Level{Base: dataStart, Enclosing: glevel.KindArray, Type: inner, FixedSize: info.Size, TypeSpan: info.Length}
	case 'm':
		inner := typeStr[1:]
		child = glevel.Level{Base: dataStart, Enclosing: glevel.KindMaybe, Type: inner, FixedSize: info.Size, TypeSpan: info.Length}
	case '(', '{':
		inner := typeStr[1 : len(typeStr)-1]
		kind := glevel.KindTuple
		if c == '{' {
			kind = glevel.KindPair
		}
		child = glevel.Level{Base: dataStart, Enclosing: kind, Type: inner, FixedSize: info.Size, TypeSpan: info.Length}
	default:
		return v.fail(invalidType("begin"))
	}
	v.stack.Push(child)
	return nil
}

// End closes the innermost container opened by Begin, appending its
// framing-offset table (tuple/pair: reverse order, skipping the final
// dynamic child; array: file order, covering every dynamic element) or
// marker byte (maybe, when the present child is variable-size) as
// required by the wire format.
func (v *Variant) End(c byte) error {
	if err := v.checkWritable("end"); err != nil {
		return err
	}
	top := v.stack.Top()
	if top == nil {
		return v.fail(badRequest("end"))
	}
	if kindChar(top.Enclosing) != c {
		return v.fail(invalidType("end"))
	}
	l := v.stack.Pop()

	switch l.Enclosing {
	case glevel.KindArray:
		elem, err := gtype.SignatureOne(l.Type)
		if err != nil {
			return v.fail(mapTypeErr("end", err))
		}
		if elem.Size == 0 && len(l.TailSlots) > 0 {
			wordsize := gword.SizeForSlots(v.frontPos-l.Base, len(l.TailSlots))
			wb := gword.Bytes(wordsize)
			total := len(l.TailSlots) * wb
			buf, err := v.reserveFront(total)
			if err != nil {
				return err
			}
			for i, rel := range l.TailSlots {
				gword.Store(buf[i*wb:], wordsize, uint64(rel))
			}
			v.frontPos += total
		}
	case glevel.KindMaybe:
		if l.Index == 1 {
			elem, err := gtype.SignatureOne(l.Type)
			if err != nil {
				return v.fail(mapTypeErr("end", err))
			}
			if elem.Size == 0 {
				buf, err := v.reserveFront(1)
				if err != nil {
					return err
				}
				buf[0] = 0
				v.frontPos++
			}
		}
	case glevel.KindVariant:
		if l.Index != 1 {
			return v.fail(badRequest("end"))
		}
		buf, err := v.reserveFront(1 + len(l.Type))
		if err != nil {
			return err
		}
		buf[0] = 0
		copy(buf[1:], l.Type)
		v.frontPos += len(buf)
	case glevel.KindTuple, glevel.KindPair:
		if len(l.Type) > 0 {
			return v.fail(badRequest("end"))
		}
		// A fixed-size tuple/pair occupies its full fixed size, trailing
		// padding included.
		if pad := l.Base + l.FixedSize - v.frontPos; l.FixedSize > 0 && pad > 0 {
			if _, err := v.reserveFront(pad); err != nil {
				return err
			}
			v.frontPos += pad
		}
		if len(l.TailSlots) > 0 {
			wordsize := gword.SizeForSlots(v.frontPos-l.Base, len(l.TailSlots))
			wb := gword.Bytes(wordsize)
			total := len(l.TailSlots) * wb
			buf, err := v.reserveFront(total)
			if err != nil {
				return err
			}
			for i, n := 0, len(l.TailSlots); i < n; i++ {
				rel := l.TailSlots[n-1-i]
				gword.Store(buf[i*wb:], wordsize, uint64(rel))
			}
			v.frontPos += total
		}
	}

	parent := v.curLevel()
	writerAdvance(parent, l.FixedSize, l.TypeSpan, v.frontPos)
	return nil
}

func kindChar(k glevel.Kind) byte {
	switch k {
	case glevel.KindVariant:
		return 'v'
	case glevel.KindArray:
		return 'a'
	case glevel.KindMaybe:
		return 'm'
	case glevel.KindPair:
		return '{'
	default:
		return '('
	}
}

// Insert splices a complete, already-serialized value of the given
// type directly into the value under construction without copying:
// vecs are spliced into the arena as unowned vectors, exactly as
// NewFromVecs splices a reader's backing ranges. The caller retains
// ownership of vecs and must not mutate them afterward, since they
// become part of the value being built.
func (v *Variant) Insert(typ string, vecs [][]byte) error {
	if err := v.checkWritable("insert"); err != nil {
		return err
	}
	info, err := gtype.SignatureOne([]byte(typ))
	if err != nil {
		return v.fail(mapTypeErr("insert", err))
	}
	l := v.curLevel()
	if err := checkSingleUse(l); err != nil {
		return v.fail(err)
	}
	head, err := v.expectedType(l)
	if err != nil {
		return v.fail(err)
	}
	if !bytes.Equal(head, info.Type) {
		return v.fail(invalidType("insert"))
	}

	total := 0
	for _, seg := range vecs {
		total += len(seg)
	}
	if info.Size > 0 && total != info.Size {
		return v.fail(badRequest("insert"))
	}

	if err := v.padTo(info.Alignment); err != nil {
		return err
	}
	if err := v.arena.InsertBorrowed(vecs); err != nil {
		return v.fail(mapVecErr("insert", err))
	}
	v.frontPos += total
	writerAdvance(l, info.Size, info.Length, v.frontPos)
	return nil
}

// Seal closes any containers still open (as if End had been called on
// each, innermost first) and transitions v from a writer to a reader
// positioned at the start of the completed value.
func (v *Variant) Seal() error {
	if err := v.checkWritable("seal"); err != nil {
		return err
	}
	for v.stack.Depth() > 0 {
		top := v.stack.Top()
		if err := v.End(kindChar(top.Enclosing)); err != nil {
			return err
		}
	}
	if len(v.root.Type) > 0 {
		return v.fail(badRequest("seal"))
	}

	v.root.Size = v.frontPos - v.root.Base
	v.root.Wordsize = gword.Size(0, v.root.Size)

	if n := v.arena.Len(); n > 0 {
		v.arena.Clip(len(v.arena.Vec(n - 1)))
	}
	v.sealed = true
	v.writing = false
	v.stack.Reset()
	v.root.Type = v.typ
	v.root.Offset = 0
	v.front.reset()
	v.tail.reset()
	return nil
}
