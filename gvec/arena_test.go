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

package gvec

import "testing"

func TestInsertBorrowedTracksOwnership(t *testing.T) {
	a := New()
	vecs := [][]byte{{1, 2, 3}, {4, 5}}
	if err := a.InsertBorrowed(vecs); err != nil {
		t.Fatal(err)
	}
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	for i := 0; i < a.Len(); i++ {
		if a.Owned(i) {
			t.Fatalf("vector %d reported owned, want borrowed", i)
		}
	}
	if a.TotalLen() != 5 {
		t.Fatalf("TotalLen() = %d, want 5", a.TotalLen())
	}
}

func TestReserveProducesOwnedVectors(t *testing.T) {
	a := New()
	buf, err := a.Reserve(16)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 16 {
		t.Fatalf("Reserve(16) returned %d bytes, want 16", len(buf))
	}
	if !a.Owned(0) {
		t.Fatal("a freshly reserved vector must be reported owned")
	}
	if a.TotalLen() != 16 {
		t.Fatalf("TotalLen() = %d, want 16", a.TotalLen())
	}
}

func TestReserveReusesUnusedSpare(t *testing.T) {
	a := New()
	if _, err := a.Reserve(8); err != nil {
		t.Fatal(err)
	}
	firstAllocs := a.nalloc
	if _, err := a.Reserve(8); err != nil {
		t.Fatal(err)
	}
	if a.nalloc != firstAllocs {
		t.Fatalf("second small Reserve triggered a new allocation (nalloc %d -> %d), want reuse of the spare", firstAllocs, a.nalloc)
	}
}

func TestClipTruncatesLastVector(t *testing.T) {
	a := New()
	buf, err := a.Reserve(32)
	if err != nil {
		t.Fatal(err)
	}
	for i := range buf {
		buf[i] = byte(i)
	}
	a.Clip(10)
	if got := len(a.Vec(a.Len() - 1)); got != 10 {
		t.Fatalf("after Clip(10), last vector has length %d, want 10", got)
	}
}

func TestCloneIsIndependentOfArena(t *testing.T) {
	a := New()
	if err := a.InsertBorrowed([][]byte{{1}, {2}}); err != nil {
		t.Fatal(err)
	}
	clone := a.Clone()
	if err := a.InsertBorrowed([][]byte{{3}}); err != nil {
		t.Fatal(err)
	}
	if len(clone) != 2 {
		t.Fatalf("Clone() len = %d, want 2 (taken before the third insert)", len(clone))
	}
}
