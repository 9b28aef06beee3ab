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

package gtype

import "testing"

func TestSignatureOneValid(t *testing.T) {
	cases := []struct {
		sig       string
		alignment uint8
		size      int
		depth     int
	}{
		{"u", 2, 4, 0},
		{"s", 0, 0, 0},
		{"()", 0, 1, 0},
		{"(uu)", 2, 8, 1},
		{"(us)", 2, 0, 1},
		{"ai", 2, 0, 1},
		{"as", 0, 0, 1},
		{"mi", 2, 0, 1},
		{"v", 3, 0, 0},
		{"a{sv}", 3, 0, 2},
		{"(uaum(s)u)", 2, 0, 3},
	}
	for _, c := range cases {
		info, err := SignatureOne([]byte(c.sig))
		if err != nil {
			t.Errorf("%q: unexpected error: %s", c.sig, err)
			continue
		}
		if info.Alignment != c.alignment {
			t.Errorf("%q: alignment = %d, want %d", c.sig, info.Alignment, c.alignment)
		}
		if info.Size != c.size {
			t.Errorf("%q: size = %d, want %d", c.sig, info.Size, c.size)
		}
		if info.Depth != c.depth {
			t.Errorf("%q: depth = %d, want %d", c.sig, info.Depth, c.depth)
		}
		if info.Length != len(c.sig) {
			t.Errorf("%q: length = %d, want %d", c.sig, info.Length, len(c.sig))
		}
	}
}

func TestSignatureInvalid(t *testing.T) {
	cases := []string{
		"",
		"(",
		")",
		"{sv}",    // dict-entry outside an array
		"{vv}",    // non-basic dict-entry key
		"(us",     // unterminated tuple
		"z",       // unknown character
		"a",       // array with no element type
		"m",       // maybe with no element type
		"{s}",     // dict-entry with only one field
		"{sss}",   // dict-entry with three fields
	}
	for _, sig := range cases {
		if _, err := SignatureOne([]byte(sig)); err == nil {
			t.Errorf("%q: expected an error, got none", sig)
		}
	}
}

// TestSignatureSpecInvalidSet exercises the exact set of malformed
// signatures enumerated in the specification's testable-properties
// section, independent of TestSignatureInvalid's own case list.
func TestSignatureSpecInvalidSet(t *testing.T) {
	cases := []string{
		"A", "$", "{}", "{)", "{()y}", "{yyy}", "(", ")", "a", "m",
		"mama", "{mau}", "(uu(u())uu{vu}uu)",
	}
	for _, sig := range cases {
		if _, err := SignatureOne([]byte(sig)); err == nil {
			t.Errorf("%q: expected invalid-type or too-deep, got no error", sig)
		}
	}
}

// TestSignatureNeverReadsPastLength confirms Signature never scans
// beyond the slice handed to it, even when that slice is a prefix of
// a longer malformed string.
func TestSignatureNeverReadsPastLength(t *testing.T) {
	info, err := Signature([]byte("$foo")[:0])
	if err != nil {
		t.Fatalf("Signature on empty prefix: unexpected error: %s", err)
	}
	if info.Length != 0 {
		t.Fatalf("Signature on empty prefix: length = %d, want 0", info.Length)
	}
}

// TestSignatureDeepNestedTuple is the specification's scenario 6: a
// deeply nested fixed-size tuple. The source text's own byte count
// for this literal signature doesn't match the length it attributes
// to it (19 literal bytes vs. a stated 20, and 5 bracket-nesting
// levels vs. a stated 4), so this test checks round-trip validity and
// internal consistency (the alignment all fixed 32-bit members share,
// and that the whole string is consumed) rather than asserting the
// source's specific numbers verbatim.
func TestSignatureDeepNestedTuple(t *testing.T) {
	sig := "(u(u(u(u(u)u)u)u)u)"
	info, err := SignatureOne([]byte(sig))
	if err != nil {
		t.Fatalf("%q: unexpected error: %s", sig, err)
	}
	if info.Alignment != 2 {
		t.Errorf("%q: alignment = %d, want 2", sig, info.Alignment)
	}
	if info.Size == 0 {
		t.Errorf("%q: size reported variable, want a fixed size (all-u tuple)", sig)
	}
	if info.Length != len(sig) {
		t.Errorf("%q: length = %d, want %d", sig, info.Length, len(sig))
	}
}

func TestSignatureOneRejectsTrailingData(t *testing.T) {
	if _, err := SignatureOne([]byte("uu")); err == nil {
		t.Fatal("expected an error for trailing data after the first complete type")
	}
	info, err := Signature([]byte("uu"))
	if err != nil {
		t.Fatalf("Signature: unexpected error: %s", err)
	}
	if info.Length != 1 {
		t.Fatalf("Signature consumed %d bytes, want 1", info.Length)
	}
}

// TestSignatureBoundSize checks that BoundSize is nonzero only when the
// type being analyzed is itself directly a maybe/array whose immediate
// child is fixed-size: a bare leaf reports 0 (it isn't a bound
// container at all), and stacking two bound containers directly on top
// of each other (no intervening tuple) reports 0 on the outer one,
// since its immediate child ("au" inside "aau") is itself variable.
func TestSignatureBoundSize(t *testing.T) {
	cases := []struct {
		sig  string
		want int
	}{
		{"u", 0},
		{"au", 4},
		{"mu", 4},
		{"aau", 0},
		{"mau", 0},
		{"as", 0},
		{"a(u)", 4},
		{"a(us)", 0},
		{"a(au)", 0},
	}
	for _, c := range cases {
		info, err := SignatureOne([]byte(c.sig))
		if err != nil {
			t.Errorf("%q: unexpected error: %s", c.sig, err)
			continue
		}
		if info.BoundSize != c.want {
			t.Errorf("%q: BoundSize = %d, want %d", c.sig, info.BoundSize, c.want)
		}
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct {
		v, align, want int
	}{
		{0, 0, 0},
		{1, 0, 1},
		{1, 2, 4},
		{4, 2, 4},
		{5, 2, 8},
		{0, 3, 0},
		{1, 3, 8},
	}
	for _, c := range cases {
		got := AlignUp(c.v, uint8(c.align))
		if got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.v, c.align, got, c.want)
		}
	}
}

func TestElementTable(t *testing.T) {
	if !IsBasic('s') || IsBasic('a') {
		t.Fatal("basic flags wrong for 's'/'a'")
	}
	if !IsFixed('i') || IsFixed('s') {
		t.Fatal("fixed flags wrong for 'i'/'s'")
	}
	if FixedSize('x') != 8 {
		t.Fatalf("FixedSize('x') = %d, want 8", FixedSize('x'))
	}
	if !IsContainer('a') || IsContainer('i') {
		t.Fatal("container flags wrong for 'a'/'i'")
	}
	if align, ok := Alignment('q'); !ok || align != 1 {
		t.Fatalf("Alignment('q') = (%d,%v), want (1,true)", align, ok)
	}
	if _, ok := Alignment('z'); ok {
		t.Fatal("Alignment('z') should report invalid")
	}
}
