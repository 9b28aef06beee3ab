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

package gword

import "testing"

func TestLoadStoreRoundTrip(t *testing.T) {
	cases := []struct {
		wordsize uint8
		value    uint64
	}{
		{0, 0},
		{0, 0xff},
		{1, 0},
		{1, 0xbeef},
		{2, 0},
		{2, 0xdeadbeef},
		{3, 0},
		{3, 0x0123456789abcdef},
	}
	for _, c := range cases {
		buf := make([]byte, Bytes(c.wordsize)+4) // extra trailing bytes must be left alone
		for i := range buf {
			buf[i] = 0xaa
		}
		Store(buf, c.wordsize, c.value)
		got := Load(buf, c.wordsize)
		if got != c.value {
			t.Errorf("wordsize %d: round trip got %#x, want %#x", c.wordsize, got, c.value)
		}
		for i := Bytes(c.wordsize); i < len(buf); i++ {
			if buf[i] != 0xaa {
				t.Errorf("wordsize %d: Store wrote past its width at byte %d", c.wordsize, i)
			}
		}
	}
}

func TestLoadStoreUnaligned(t *testing.T) {
	// word_fetch/word_store operate on spans that are not themselves
	// aligned to their own width; the codec must not assume alignment.
	buf := make([]byte, 9)
	Store(buf[1:], 3, 0x0102030405060708)
	got := Load(buf[1:], 3)
	if got != 0x0102030405060708 {
		t.Fatalf("unaligned 8-byte round trip got %#x", got)
	}
}

func TestBytes(t *testing.T) {
	cases := []struct {
		wordsize uint8
		want     int
	}{{0, 1}, {1, 2}, {2, 4}, {3, 8}}
	for _, c := range cases {
		if got := Bytes(c.wordsize); got != c.want {
			t.Errorf("Bytes(%d) = %d, want %d", c.wordsize, got, c.want)
		}
	}
}

func TestSizeBoundaries(t *testing.T) {
	cases := []struct {
		base, count int
		want        uint8
	}{
		{0, 0, 0},
		{0, 1<<8 - 1, 0},
		{0, 1 << 8, 1},
		{0, 1<<16 - 1, 1},
		{0, 1 << 16, 2},
		{1, 1<<8 - 2, 0},
		{1, 1<<8 - 1, 1},
		{0, 1<<32 - 1, 2},
		{0, 1 << 32, 3},
		{1 << 31, 1 << 31, 3},
	}
	for _, c := range cases {
		if got := Size(c.base, c.count); got != c.want {
			t.Errorf("Size(%d, %d) = %d, want %d", c.base, c.count, got, c.want)
		}
	}
}

// TestSizeForSlotsAccountsForTable checks the fixed-point case Size
// itself cannot express: a body span that fits comfortably in a
// narrow word size on its own, but whose offset table - encoded at
// that same narrow width - would push the container's total span past
// what that width can address. SizeForSlots must escalate to the next
// width in that case, not just look at the body alone.
func TestSizeForSlotsAccountsForTable(t *testing.T) {
	cases := []struct {
		bodySize, nSlots int
		want             uint8
	}{
		{0, 0, 0},
		{253, 1, 0},        // 253 + 1*1 = 254, still fits a byte
		{254, 1, 0},        // 254 + 1*1 = 255, exactly fits a byte
		{255, 1, 1},        // 255 + 1*1 = 256 overflows a byte, escalates to 2-byte words
		{254, 2, 1},        // 254 + 2*1 = 256 overflows, escalates
		{65530, 2, 1},      // body comfortably fits a 2-byte table
		{65533, 2, 2},      // 65533 + 2*2 = 65537 overflows a 2-byte word, escalates to 4
		{4294967289, 2, 3}, // body + 2*4-byte table overflows a 4-byte word, escalates to 8
	}
	for _, c := range cases {
		got := SizeForSlots(c.bodySize, c.nSlots)
		total := uint64(c.bodySize) + uint64(c.nSlots)*uint64(Bytes(got))
		if total > maxForSize(got) {
			t.Errorf("SizeForSlots(%d, %d) = %d, but body+table = %d exceeds that width's range", c.bodySize, c.nSlots, got, total)
		}
		if got != c.want {
			t.Errorf("SizeForSlots(%d, %d) = %d, want %d", c.bodySize, c.nSlots, got, c.want)
		}
		if got > 0 {
			smallerTotal := uint64(c.bodySize) + uint64(c.nSlots)*uint64(Bytes(got-1))
			if smallerTotal <= maxForSize(got-1) {
				t.Errorf("SizeForSlots(%d, %d) = %d, but width %d would already have fit", c.bodySize, c.nSlots, got, got-1)
			}
		}
	}
}
