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

// Package bits provides small generic bit-vector helpers used by the
// vector arena's ownership tracking.
package bits

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Test reports whether the k-th bit is set in words.
func Test[T, K constraints.Integer](words []T, k K) bool {
	bitsPerT := unsafe.Sizeof(words[0]) * 8
	return words[uintptr(k)/bitsPerT]&(T(1)<<(uintptr(k)%bitsPerT)) != 0
}

// Set sets the k-th bit in words.
func Set[T, K constraints.Integer](words []T, k K) {
	bitsPerT := unsafe.Sizeof(words[0]) * 8
	words[uintptr(k)/bitsPerT] |= T(1) << (uintptr(k) % bitsPerT)
}

// Clear clears the k-th bit in words.
func Clear[T, K constraints.Integer](words []T, k K) {
	bitsPerT := unsafe.Sizeof(words[0]) * 8
	words[uintptr(k)/bitsPerT] &^= T(1) << (uintptr(k) % bitsPerT)
}

// WordsNeeded returns the number of T-sized words needed to hold n bits.
func WordsNeeded[T constraints.Unsigned](n int) int {
	var z T
	bitsPerT := int(unsafe.Sizeof(z) * 8)
	return (n + bitsPerT - 1) / bitsPerT
}
