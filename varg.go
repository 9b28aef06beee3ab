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

import "github.com/SnellerInc/gvariant/glimits"

// Readv decodes one value per destination pointer, in order, from the
// current position: a *bool/*byte/*intNN/*uintNN/*float64/*string for
// a basic child, a *[]T for an array of basic T, or a **T for a maybe
// of basic T (nil once decoded meaning absent). It is the variadic
// counterpart to a sequence of Enter/Read/Exit calls for a flat run of
// children, not a replacement for Enter/Exit on nested containers.
//
// On the first error, every destination from that point on - including
// the one that failed - is set to its type's zero value, so a caller
// that only checks the final error can still use every other result
// without special-casing a partially-filled destination.
func (v *Variant) Readv(dst ...interface{}) error {
	for i, d := range dst {
		if err := v.readv(d, 0); err != nil {
			for _, rest := range dst[i:] {
				setDefault(rest)
			}
			return err
		}
	}
	return nil
}

// Writev writes one value per src argument, in order, into the current
// position: a bool/byte/intNN/uintNN/float64/string for a basic child,
// a []T for an array of basic T, or a *T for a maybe of basic T (nil
// meaning absent). Like Readv, it only drives a flat run of children;
// nested tuples, pairs and variants are built with Begin/End/Enter/Exit
// directly.
func (v *Variant) Writev(src ...interface{}) error {
	for _, s := range src {
		if err := v.writev(s); err != nil {
			return err
		}
	}
	return nil
}

// readv dispatches on the concrete type of d. depth counts the
// Enter("a")/Enter("m") nesting readArraySlice/readMaybe have opened so
// far; it is bounded against glimits.MaxVarg the same way the original
// vararg iterator bounded its frame stack, even though the concrete
// destination types this function accepts never themselves nest more
// than one level deep (see DESIGN.md).
func (v *Variant) readv(d interface{}, depth int) error {
	switch p := d.(type) {
	case *bool:
		b, err := v.ReadBool()
		if err != nil {
			return err
		}
		*p = b
	case *byte:
		b, err := v.ReadByte()
		if err != nil {
			return err
		}
		*p = b
	case *int16:
		n, err := v.ReadInt16()
		if err != nil {
			return err
		}
		*p = n
	case *uint16:
		n, err := v.ReadUint16()
		if err != nil {
			return err
		}
		*p = n
	case *int32:
		n, err := v.ReadInt32()
		if err != nil {
			return err
		}
		*p = n
	case *uint32:
		n, err := v.ReadUint32()
		if err != nil {
			return err
		}
		*p = n
	case *int64:
		n, err := v.ReadInt64()
		if err != nil {
			return err
		}
		*p = n
	case *uint64:
		n, err := v.ReadUint64()
		if err != nil {
			return err
		}
		*p = n
	case *float64:
		f, err := v.ReadFloat64()
		if err != nil {
			return err
		}
		*p = f
	case *string:
		s, err := v.readvString()
		if err != nil {
			return err
		}
		*p = s
	case *[]bool:
		s, err := readArraySlice(v, depth, (*Variant).ReadBool)
		if err != nil {
			return err
		}
		*p = s
	case *[]byte:
		s, err := readArraySlice(v, depth, (*Variant).ReadByte)
		if err != nil {
			return err
		}
		*p = s
	case *[]int16:
		s, err := readArraySlice(v, depth, (*Variant).ReadInt16)
		if err != nil {
			return err
		}
		*p = s
	case *[]uint16:
		s, err := readArraySlice(v, depth, (*Variant).ReadUint16)
		if err != nil {
			return err
		}
		*p = s
	case *[]int32:
		s, err := readArraySlice(v, depth, (*Variant).ReadInt32)
		if err != nil {
			return err
		}
		*p = s
	case *[]uint32:
		s, err := readArraySlice(v, depth, (*Variant).ReadUint32)
		if err != nil {
			return err
		}
		*p = s
	case *[]int64:
		s, err := readArraySlice(v, depth, (*Variant).ReadInt64)
		if err != nil {
			return err
		}
		*p = s
	case *[]uint64:
		s, err := readArraySlice(v, depth, (*Variant).ReadUint64)
		if err != nil {
			return err
		}
		*p = s
	case *[]float64:
		s, err := readArraySlice(v, depth, (*Variant).ReadFloat64)
		if err != nil {
			return err
		}
		*p = s
	case *[]string:
		s, err := readArraySlice(v, depth, (*Variant).readvString)
		if err != nil {
			return err
		}
		*p = s
	case **bool:
		val, err := readMaybe(v, depth, (*Variant).ReadBool)
		if err != nil {
			return err
		}
		*p = val
	case **byte:
		val, err := readMaybe(v, depth, (*Variant).ReadByte)
		if err != nil {
			return err
		}
		*p = val
	case **int16:
		val, err := readMaybe(v, depth, (*Variant).ReadInt16)
		if err != nil {
			return err
		}
		*p = val
	case **uint16:
		val, err := readMaybe(v, depth, (*Variant).ReadUint16)
		if err != nil {
			return err
		}
		*p = val
	case **int32:
		val, err := readMaybe(v, depth, (*Variant).ReadInt32)
		if err != nil {
			return err
		}
		*p = val
	case **uint32:
		val, err := readMaybe(v, depth, (*Variant).ReadUint32)
		if err != nil {
			return err
		}
		*p = val
	case **int64:
		val, err := readMaybe(v, depth, (*Variant).ReadInt64)
		if err != nil {
			return err
		}
		*p = val
	case **uint64:
		val, err := readMaybe(v, depth, (*Variant).ReadUint64)
		if err != nil {
			return err
		}
		*p = val
	case **float64:
		val, err := readMaybe(v, depth, (*Variant).ReadFloat64)
		if err != nil {
			return err
		}
		*p = val
	case **string:
		val, err := readMaybe(v, depth, (*Variant).readvString)
		if err != nil {
			return err
		}
		*p = val
	default:
		return v.fail(badRequest("readv"))
	}
	return nil
}

// readvString peeks the current child's type to dispatch among the
// three string-like basic types (s/o/g share a Go string destination).
func (v *Variant) readvString() (string, error) {
	t := v.PeekType()
	if len(t) == 0 {
		return "", v.fail(badRequest("readv"))
	}
	switch t[0] {
	case 's':
		return v.ReadString()
	case 'o':
		return v.ReadObjectPath()
	case 'g':
		return v.ReadSignature()
	default:
		return "", v.fail(invalidType("readv"))
	}
}

// readArraySlice enters an array of basic elements, reads every
// element with leaf, and exits.
func readArraySlice[T any](v *Variant, depth int, leaf func(*Variant) (T, error)) ([]T, error) {
	if depth+1 > glimits.MaxVarg {
		return nil, v.fail(&Error{Kind: KindTooDeep, Op: "readv"})
	}
	if err := v.Enter("a"); err != nil {
		return nil, err
	}
	n := v.PeekCount()
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		val, err := leaf(v)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	if err := v.Exit("a"); err != nil {
		return nil, err
	}
	return out, nil
}

// readMaybe enters a maybe of a basic element, reading it with leaf if
// present, and exits; a nil result means absent.
func readMaybe[T any](v *Variant, depth int, leaf func(*Variant) (T, error)) (*T, error) {
	if depth+1 > glimits.MaxVarg {
		return nil, v.fail(&Error{Kind: KindTooDeep, Op: "readv"})
	}
	if err := v.Enter("m"); err != nil {
		return nil, err
	}
	if v.PeekCount() == 0 {
		if err := v.Exit("m"); err != nil {
			return nil, err
		}
		return nil, nil
	}
	val, err := leaf(v)
	if err != nil {
		return nil, err
	}
	if err := v.Exit("m"); err != nil {
		return nil, err
	}
	return &val, nil
}

// setDefault zeroes a Readv destination after a failure, so every
// result a caller reads back out is the documented canonical default
// rather than a partially-written value.
func setDefault(d interface{}) {
	switch p := d.(type) {
	case *bool:
		*p = false
	case *byte:
		*p = 0
	case *int16:
		*p = 0
	case *uint16:
		*p = 0
	case *int32:
		*p = 0
	case *uint32:
		*p = 0
	case *int64:
		*p = 0
	case *uint64:
		*p = 0
	case *float64:
		*p = 0
	case *string:
		*p = ""
	case *[]bool:
		*p = nil
	case *[]byte:
		*p = nil
	case *[]int16:
		*p = nil
	case *[]uint16:
		*p = nil
	case *[]int32:
		*p = nil
	case *[]uint32:
		*p = nil
	case *[]int64:
		*p = nil
	case *[]uint64:
		*p = nil
	case *[]float64:
		*p = nil
	case *[]string:
		*p = nil
	case **bool:
		*p = nil
	case **byte:
		*p = nil
	case **int16:
		*p = nil
	case **uint16:
		*p = nil
	case **int32:
		*p = nil
	case **uint32:
		*p = nil
	case **int64:
		*p = nil
	case **uint64:
		*p = nil
	case **float64:
		*p = nil
	case **string:
		*p = nil
	}
}

// writev dispatches on the concrete type of s, writing it as the
// current level's next expected child.
func (v *Variant) writev(s interface{}) error {
	switch val := s.(type) {
	case bool:
		return v.WriteBool(val)
	case byte:
		return v.WriteByte(val)
	case int16:
		return v.WriteInt16(val)
	case uint16:
		return v.WriteUint16(val)
	case int32:
		return v.WriteInt32(val)
	case uint32:
		return v.WriteUint32(val)
	case int64:
		return v.WriteInt64(val)
	case uint64:
		return v.WriteUint64(val)
	case float64:
		return v.WriteFloat64(val)
	case string:
		return v.writevString(val)
	case []bool:
		return writeArraySlice(v, val, (*Variant).WriteBool)
	case []byte:
		return writeArraySlice(v, val, (*Variant).WriteByte)
	case []int16:
		return writeArraySlice(v, val, (*Variant).WriteInt16)
	case []uint16:
		return writeArraySlice(v, val, (*Variant).WriteUint16)
	case []int32:
		return writeArraySlice(v, val, (*Variant).WriteInt32)
	case []uint32:
		return writeArraySlice(v, val, (*Variant).WriteUint32)
	case []int64:
		return writeArraySlice(v, val, (*Variant).WriteInt64)
	case []uint64:
		return writeArraySlice(v, val, (*Variant).WriteUint64)
	case []float64:
		return writeArraySlice(v, val, (*Variant).WriteFloat64)
	case []string:
		return writeArraySlice(v, val, (*Variant).writevString)
	case *bool:
		return writeMaybe(v, val, (*Variant).WriteBool)
	case *byte:
		return writeMaybe(v, val, (*Variant).WriteByte)
	case *int16:
		return writeMaybe(v, val, (*Variant).WriteInt16)
	case *uint16:
		return writeMaybe(v, val, (*Variant).WriteUint16)
	case *int32:
		return writeMaybe(v, val, (*Variant).WriteInt32)
	case *uint32:
		return writeMaybe(v, val, (*Variant).WriteUint32)
	case *int64:
		return writeMaybe(v, val, (*Variant).WriteInt64)
	case *uint64:
		return writeMaybe(v, val, (*Variant).WriteUint64)
	case *float64:
		return writeMaybe(v, val, (*Variant).WriteFloat64)
	case *string:
		return writeMaybe(v, val, (*Variant).writevString)
	default:
		return v.fail(badRequest("writev"))
	}
}

// writevString peeks the current level's expected type to dispatch
// among the three string-like basic types.
func (v *Variant) writevString(s string) error {
	l := v.curLevel()
	head, err := v.expectedType(l)
	if err != nil {
		return v.fail(err)
	}
	if len(head) == 0 {
		return v.fail(badRequest("writev"))
	}
	switch head[0] {
	case 's':
		return v.WriteString(s)
	case 'o':
		return v.WriteObjectPath(s)
	case 'g':
		return v.WriteSignature(s)
	default:
		return v.fail(invalidType("writev"))
	}
}

// writeArraySlice begins an array of basic elements using the current
// level's own expected type (so the element type need not be passed
// in separately), writes every element with leaf, and ends it.
func writeArraySlice[T any](v *Variant, vals []T, leaf func(*Variant, T) error) error {
	l := v.curLevel()
	head, err := v.expectedType(l)
	if err != nil {
		return v.fail(err)
	}
	if len(head) == 0 || head[0] != 'a' {
		return v.fail(invalidType("writev"))
	}
	if err := v.Begin('a', string(head)); err != nil {
		return err
	}
	for _, val := range vals {
		if err := leaf(v, val); err != nil {
			return err
		}
	}
	return v.End('a')
}

// writeMaybe begins a maybe of a basic element, writing it with leaf
// when val is non-nil, and ends it.
func writeMaybe[T any](v *Variant, val *T, leaf func(*Variant, T) error) error {
	l := v.curLevel()
	head, err := v.expectedType(l)
	if err != nil {
		return v.fail(err)
	}
	if len(head) == 0 || head[0] != 'm' {
		return v.fail(invalidType("writev"))
	}
	if err := v.Begin('m', string(head)); err != nil {
		return err
	}
	if val != nil {
		if err := leaf(v, *val); err != nil {
			return err
		}
	}
	return v.End('m')
}
