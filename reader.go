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
	"encoding/binary"
	"math"

	"github.com/SnellerInc/gvariant/glevel"
	"github.com/SnellerInc/gvariant/gtype"
	"github.com/SnellerInc/gvariant/gword"
)

// peek locates the next unread child of l without consuming it,
// returning its parsed type, and its absolute byte range [start, end)
// within the Variant's backing vectors. ok is false once l has no more
// children to offer.
//
// The branch taken depends on l.Enclosing: arrays derive element
// boundaries either by fixed stride or from the file-order tail
// offset table; a maybe yields its single child or nothing; a variant
// yields the payload span already isolated at Enter time; tuples,
// pairs and the root derive each child's start by aligning the cursor
// up to the child's own alignment and its end either from the start
// of the frame's tail offset table, NDynamic words before the frame's
// end (the child is last, per GVariant's rule that a frame's final
// dynamic child never gets a tail entry) or, otherwise, from the
// tail offset table indexed from the frame's end (the first dynamic
// member's offset in the table's last word, the last in its first).
func (v *Variant) peek(l *glevel.Level) (info gtype.Info, start, end int, ok bool, err error) {
	switch l.Enclosing {
	case glevel.KindArray:
		if len(l.Type) == 0 {
			return gtype.Info{}, 0, 0, false, nil
		}
		elem, e := gtype.SignatureOne(l.Type)
		if e != nil {
			return gtype.Info{}, 0, 0, false, mapTypeErr("peek", e)
		}
		if elem.Size > 0 {
			count := l.Size / elem.Size
			if l.Index >= count {
				return gtype.Info{}, 0, 0, false, nil
			}
			start = l.Base + l.Index*elem.Size
			end = start + elem.Size
			return elem, start, end, true, nil
		}
		count, ok := v.arrayCount(l)
		if !ok || l.Index >= count {
			return gtype.Info{}, 0, 0, false, nil
		}
		wb := gword.Bytes(l.Wordsize)
		slot := l.Base + l.Size - (count-l.Index)*wb
		endRelU, ok := v.tailWord(slot, l.Wordsize)
		if !ok {
			return gtype.Info{}, 0, 0, false, nil
		}
		start = l.Base + l.Offset
		end = l.Base + int(endRelU)
		if end < start || end > l.Base+l.Size {
			return gtype.Info{}, 0, 0, false, nil
		}
		return elem, start, end, true, nil

	case glevel.KindMaybe:
		if l.Index != 1 {
			return gtype.Info{}, 0, 0, false, nil
		}
		child, e := gtype.SignatureOne(l.Type)
		if e != nil {
			return gtype.Info{}, 0, 0, false, mapTypeErr("peek", e)
		}
		start = l.Base
		if child.Size > 0 {
			end = start + child.Size
		} else {
			end = l.Base + l.Size - 1
		}
		return child, start, end, true, nil

	case glevel.KindVariant:
		if l.Index != 1 {
			return gtype.Info{}, 0, 0, false, nil
		}
		child, e := gtype.SignatureOne(l.Type)
		if e != nil {
			return gtype.Info{}, 0, 0, false, mapTypeErr("peek", e)
		}
		return child, l.Base, l.Base + l.Size, true, nil

	default: // KindRoot, KindTuple, KindPair
		if len(l.Type) == 0 {
			return gtype.Info{}, 0, 0, false, nil
		}
		child, e := gtype.Signature(l.Type)
		if e != nil {
			return gtype.Info{}, 0, 0, false, mapTypeErr("peek", e)
		}
		start = gtype.AlignUp(l.Base+l.Offset, child.Alignment)
		if child.Size > 0 {
			end = start + child.Size
			if end > l.Base+l.Size {
				return gtype.Info{}, 0, 0, false, nil
			}
			return child, start, end, true, nil
		}
		isLast := child.Length == len(l.Type)
		if isLast {
			end = l.Base + l.Size - l.NDynamic*gword.Bytes(l.Wordsize)
			if start > end {
				return gtype.Info{}, 0, 0, false, nil
			}
			return child, start, end, true, nil
		}
		// Dynamic tuple/pair members are indexed from the frame's end,
		// not its start: the first dynamic member's offset sits in the
		// table's last word, the last dynamic member's in its first.
		wb := gword.Bytes(l.Wordsize)
		slot := l.Base + l.Size - (l.Index+1)*wb
		endRelU, ok := v.tailWord(slot, l.Wordsize)
		if !ok {
			return gtype.Info{}, 0, 0, false, nil
		}
		end = l.Base + int(endRelU)
		if end < start || end > l.Base+l.Size {
			return gtype.Info{}, 0, 0, false, nil
		}
		return child, start, end, true, nil
	}
}

// arrayCount returns the number of elements a dynamic-size array frame
// holds, reading its final framing offset. It reports ok=false (count
// treated as 0 by callers) when that offset is missing, out of range,
// or otherwise makes the array's tail table ill-formed - the "final
// framing offset not fully inside the span" malformed-input case.
func (v *Variant) arrayCount(l *glevel.Level) (int, bool) {
	if l.Size == 0 {
		return 0, true
	}
	wb := gword.Bytes(l.Wordsize)
	if l.Size < wb {
		return 0, false
	}
	d, ok := v.tailWord(l.Base+l.Size-wb, l.Wordsize)
	if !ok || int(d) < 0 || int(d) > l.Size {
		return 0, false
	}
	count := (l.Size - int(d)) / wb
	if count < 0 {
		return 0, false
	}
	return count, true
}

// advance records that the child described by info (as returned from
// the immediately preceding peek of the same level) occupying
// [start, end) has been consumed.
func (v *Variant) advance(l *glevel.Level, info gtype.Info, start, end int) {
	switch l.Enclosing {
	case glevel.KindArray:
		l.Offset = end - l.Base
		l.Index++
	case glevel.KindMaybe, glevel.KindVariant:
		l.Offset = end - l.Base
		l.Index = 0
	default: // KindRoot, KindTuple, KindPair
		isLast := info.Length == len(l.Type)
		l.Offset = end - l.Base
		l.Type = l.Type[info.Length:]
		if info.Size == 0 && !isLast {
			l.Index++
		}
	}
}

// countTailSlots returns how many of typ's top-level children are
// dynamic-size and not the last child, i.e. how many entries a
// tuple/pair frame of this shape reserves in its tail offset table.
func countTailSlots(typ []byte) (int, error) {
	n := 0
	rest := typ
	for len(rest) > 0 {
		info, err := gtype.Signature(rest)
		if err != nil {
			return 0, err
		}
		rest = rest[info.Length:]
		if info.Size == 0 && len(rest) > 0 {
			n++
		}
	}
	return n, nil
}

func badRequest(op string) *Error   { return &Error{Kind: KindBadRequest, Op: op} }
func invalidType(op string) *Error { return &Error{Kind: KindInvalidType, Op: op} }

func (v *Variant) checkReadable(op string) error {
	if v == nil {
		return nil
	}
	if v.writing && !v.sealed {
		return v.fail(badRequest(op))
	}
	return nil
}

// Enter descends into one or more nested containers, one character of
// containers per level, in order. Each character must match the wire
// type actually found at the current position ('v', 'm', 'a', '(' or
// '{'). On success the cursor is positioned at the start of the
// entered container(s)' own children; Exit must be called with the
// same characters, in reverse, to return to the enclosing level.
func (v *Variant) Enter(containers string) error {
	if err := v.checkReadable("enter"); err != nil {
		return err
	}
	if v == nil {
		// The unit type "()" is an empty tuple: entering it is valid
		// and yields no children, but there is no stack to push a
		// frame onto.
		for i := 0; i < len(containers); i++ {
			if containers[i] != '(' {
				return invalidType("enter")
			}
		}
		return nil
	}
	for i := 0; i < len(containers); i++ {
		if err := v.enterOne(containers[i]); err != nil {
			return v.fail(err)
		}
	}
	return nil
}

func (v *Variant) enterOne(c byte) error {
	parent := v.curLevel()
	info, start, end, ok, err := v.peek(parent)
	if err != nil {
		return err
	}
	if !ok || len(info.Type) == 0 {
		return badRequest("enter")
	}
	if info.Type[0] != c {
		return invalidType("enter")
	}
	v.advance(parent, info, start, end)

	var child glevel.Level
	switch c {
	case 'v':
		typ, payloadEnd, e := v.scanVariantType(start, end)
		if e != nil {
			return e
		}
		child = glevel.Level{Base: start, Size: payloadEnd - start, Enclosing: glevel.KindVariant, Index: 1, Type: typ}
	case 'a':
		inner := info.Type[1:]
		child = glevel.Level{Base: start, Size: end - start, Enclosing: glevel.KindArray, Type: inner}
		child.Wordsize = gword.Size(0, child.Size)
	case 'm':
		inner := info.Type[1:]
		child = glevel.Level{Base: start, Size: end - start, Enclosing: glevel.KindMaybe, Type: inner}
		if child.Size > 0 {
			child.Index = 1
		}
	case '(', '{':
		inner := info.Type[1 : len(info.Type)-1]
		kind := glevel.KindTuple
		if c == '{' {
			kind = glevel.KindPair
		}
		nd, e := countTailSlots(inner)
		if e != nil {
			return e
		}
		child = glevel.Level{Base: start, Size: end - start, Enclosing: kind, Type: inner, NDynamic: nd}
		child.Wordsize = gword.Size(0, child.Size)
	default:
		return invalidType("enter")
	}
	v.stack.Push(child)
	return nil
}

// Exit ascends out of containers entered by a matching Enter call; the
// characters must be given in reverse order of the original Enter.
func (v *Variant) Exit(containers string) error {
	if err := v.checkReadable("exit"); err != nil {
		return err
	}
	if v == nil {
		// Mirrors Enter: the unit type's empty tuple has no frame to pop.
		for i := 0; i < len(containers); i++ {
			if containers[i] != '(' {
				return invalidType("exit")
			}
		}
		return nil
	}
	for i := 0; i < len(containers); i++ {
		if err := v.exitOne(containers[i]); err != nil {
			return v.fail(err)
		}
	}
	return nil
}

func (v *Variant) exitOne(c byte) error {
	l := v.stack.Top()
	if l == nil {
		return badRequest("exit")
	}
	var want glevel.Kind
	switch c {
	case 'v':
		want = glevel.KindVariant
	case 'a':
		want = glevel.KindArray
	case 'm':
		want = glevel.KindMaybe
	case '(':
		want = glevel.KindTuple
	case '{':
		want = glevel.KindPair
	default:
		return invalidType("exit")
	}
	if l.Enclosing != want {
		return invalidType("exit")
	}
	v.stack.Pop()
	return nil
}

// readBasic consumes the next child, which must be a basic (non
// container) type, returning its raw wire bytes.
func (v *Variant) readBasic(op string) ([]byte, gtype.Info, error) {
	if err := v.checkReadable(op); err != nil {
		return nil, gtype.Info{}, err
	}
	l := v.curLevel()
	info, start, end, ok, err := v.peek(l)
	if err != nil {
		return nil, info, v.fail(err)
	}
	if !ok || len(info.Type) == 0 {
		return nil, info, v.fail(badRequest(op))
	}
	if gtype.IsContainer(info.Type[0]) {
		return nil, info, v.fail(invalidType(op))
	}
	v.advance(l, info, start, end)
	b, bok := v.byteRange(start, end)
	if !bok {
		return make([]byte, end-start), info, nil
	}
	return b, info, nil
}

// terminatedString strips b's trailing NUL terminator, or reports the
// documented default (the empty string) when b does not end in one -
// a string-like value whose allotted span was not properly terminated
// is malformed input, not a caller error.
func terminatedString(b []byte) string {
	if len(b) == 0 || b[len(b)-1] != 0 {
		return ""
	}
	return string(b[:len(b)-1])
}

// ReadBool reads a boolean value, treating any nonzero byte as true.
func (v *Variant) ReadBool() (bool, error) {
	b, _, err := v.readBasic("read_boolean")
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadByte reads a single byte.
func (v *Variant) ReadByte() (byte, error) {
	b, _, err := v.readBasic("read_byte")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt16 reads a signed 16-bit integer.
func (v *Variant) ReadInt16() (int16, error) {
	b, _, err := v.readBasic("read_int16")
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (v *Variant) ReadUint16() (uint16, error) {
	b, _, err := v.readBasic("read_uint16")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt32 reads a signed 32-bit integer.
func (v *Variant) ReadInt32() (int32, error) {
	b, _, err := v.readBasic("read_int32")
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (v *Variant) ReadUint32() (uint32, error) {
	b, _, err := v.readBasic("read_uint32")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadHandle reads a 32-bit file-descriptor-index handle.
func (v *Variant) ReadHandle() (int32, error) {
	b, _, err := v.readBasic("read_handle")
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// ReadInt64 reads a signed 64-bit integer.
func (v *Variant) ReadInt64() (int64, error) {
	b, _, err := v.readBasic("read_int64")
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (v *Variant) ReadUint64() (uint64, error) {
	b, _, err := v.readBasic("read_uint64")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadFloat64 reads an IEEE 754 double.
func (v *Variant) ReadFloat64() (float64, error) {
	b, _, err := v.readBasic("read_double")
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadString reads a NUL-terminated UTF-8 string, returning it without
// the trailing NUL.
func (v *Variant) ReadString() (string, error) {
	b, info, err := v.readBasic("read_string")
	if err != nil {
		return "", err
	}
	if info.Type[0] != 's' {
		return "", v.fail(invalidType("read_string"))
	}
	return terminatedString(b), nil
}

// ReadObjectPath reads a D-Bus object path string.
func (v *Variant) ReadObjectPath() (string, error) {
	b, info, err := v.readBasic("read_object_path")
	if err != nil {
		return "", err
	}
	if info.Type[0] != 'o' {
		return "", v.fail(invalidType("read_object_path"))
	}
	return terminatedString(b), nil
}

// ReadSignature reads a type-signature string.
func (v *Variant) ReadSignature() (string, error) {
	b, info, err := v.readBasic("read_signature")
	if err != nil {
		return "", err
	}
	if info.Type[0] != 'g' {
		return "", v.fail(invalidType("read_signature"))
	}
	return terminatedString(b), nil
}
