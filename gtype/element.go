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

// Package gtype implements the GVariant type grammar: a 256-entry
// lookup table of per-character properties, and an iterative
// signature analyzer that turns a type string into a TypeInfo without
// ever recursing on nesting depth.
package gtype

// element describes the fixed properties of one type-string character.
type element struct {
	align uint8 // log2 alignment, 0..3
	valid bool  // legal anywhere in a signature
	basic bool  // legal as a dict-entry key / pair's first type
	fixed bool  // has a statically known size
	size  int   // size in bytes when fixed
}

var table [256]element

func set(c byte, align uint8, basic, fixed bool, size int) {
	table[c] = element{align: align, valid: true, basic: basic, fixed: fixed, size: size}
}

func init() {
	// fixed-size basics
	set('b', 0, true, true, 1) // bool
	set('y', 0, true, true, 1) // byte
	set('n', 1, true, true, 2) // int16
	set('q', 1, true, true, 2) // uint16
	set('i', 2, true, true, 4) // int32
	set('u', 2, true, true, 4) // uint32
	set('h', 2, true, true, 4) // handle
	set('x', 3, true, true, 8) // int64
	set('t', 3, true, true, 8) // uint64
	set('d', 3, true, true, 8) // double

	// string-likes: basic, but variable size
	set('s', 0, true, false, 0) // string
	set('o', 0, true, false, 0) // object path
	set('g', 0, true, false, 0) // signature

	// containers: valid, not basic, variable size
	set('v', 3, false, false, 0) // variant
	set('m', 0, false, false, 0) // maybe (alignment inherited from child)
	set('a', 0, false, false, 0) // array (alignment inherited from child)
	set('(', 0, false, false, 0) // tuple open
	set(')', 0, false, false, 0) // tuple close
	set('{', 0, false, false, 0) // dict-entry open
	set('}', 0, false, false, 0) // dict-entry close
}

// Alignment returns the log2 alignment required by a leaf character,
// or false if c is not a recognized wire character.
func Alignment(c byte) (uint8, bool) {
	e := table[c]
	return e.align, e.valid
}

// IsValid reports whether c is a recognized type-string character.
func IsValid(c byte) bool { return table[c].valid }

// IsBasic reports whether c may appear as a dict-entry's first type.
func IsBasic(c byte) bool { return table[c].basic }

// IsFixed reports whether c (a basic leaf) has a statically known size.
func IsFixed(c byte) bool { return table[c].fixed }

// FixedSize returns the static size of a fixed basic type, or 0.
func FixedSize(c byte) int { return table[c].size }

// IsContainer reports whether c opens or is itself a container type.
func IsContainer(c byte) bool {
	switch c {
	case 'v', 'm', 'a', '(', '{':
		return true
	default:
		return false
	}
}
