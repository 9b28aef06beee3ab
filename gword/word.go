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

// Package gword implements the little-endian framing-offset codec:
// loading and storing unaligned integers of width 1, 2, 4 or 8 bytes,
// and picking the narrowest width that can address a given span.
package gword

import "encoding/binary"

// maxForSize returns the largest value addressable by a word of the
// given log2 size.
func maxForSize(wordsize uint8) uint64 {
	switch wordsize {
	case 0:
		return 1<<8 - 1
	case 1:
		return 1<<16 - 1
	case 2:
		return 1<<32 - 1
	default:
		return ^uint64(0)
	}
}

// Size returns the minimal log2 word width (0..3, i.e. 1/2/4/8 bytes)
// whose addressable range covers a span of base+count bytes. Used on
// the read path, where base+count is already the container's whole,
// final size (any offset table it holds is already baked into that
// count), so there is no chicken-and-egg sizing problem to solve.
func Size(base, count int) uint8 {
	total := uint64(base) + uint64(count)
	for w := uint8(0); w < 3; w++ {
		if total <= maxForSize(w) {
			return w
		}
	}
	return 3
}

// SizeForSlots resolves the same "smallest framing-offset word that
// fits the container" rule as Size, but for the write path, where the
// container's final span isn't known yet: appending an nSlots-entry
// offset table at word size w itself adds nSlots*(1<<w) bytes on top
// of bodySize, and a narrower w can only be chosen if the container
// still fits its own addressable range once that table is included.
// It is the fixed-point search the original C implementation performs
// before committing to a word size, not a post-hoc read of an
// already-fixed total.
func SizeForSlots(bodySize, nSlots int) uint8 {
	for w := uint8(0); w < 3; w++ {
		total := uint64(bodySize) + uint64(nSlots)*uint64(Bytes(w))
		if total <= maxForSize(w) {
			return w
		}
	}
	return 3
}

// Bytes returns the number of bytes a word of the given log2 size
// occupies: 1, 2, 4, or 8.
func Bytes(wordsize uint8) int {
	return 1 << wordsize
}

// Load reads an unaligned little-endian unsigned integer of the given
// log2 word size from the head of b.
func Load(b []byte, wordsize uint8) uint64 {
	switch wordsize {
	case 0:
		return uint64(b[0])
	case 1:
		return uint64(binary.LittleEndian.Uint16(b))
	case 2:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// Store writes value as an unaligned little-endian unsigned integer of
// the given log2 word size to the head of b.
func Store(b []byte, wordsize uint8, value uint64) {
	switch wordsize {
	case 0:
		b[0] = byte(value)
	case 1:
		binary.LittleEndian.PutUint16(b, uint16(value))
	case 2:
		binary.LittleEndian.PutUint32(b, uint32(value))
	default:
		binary.LittleEndian.PutUint64(b, value)
	}
}
