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

package glevel

import "testing"

func TestStackPushPopWithinInlineCapacity(t *testing.T) {
	var s Stack
	if s.Top() != nil {
		t.Fatal("empty stack must report a nil Top")
	}
	for i := 0; i < inlineLevels; i++ {
		s.Push(Level{Base: i})
	}
	if s.Depth() != inlineLevels {
		t.Fatalf("Depth() = %d, want %d", s.Depth(), inlineLevels)
	}
	for i := inlineLevels - 1; i >= 0; i-- {
		l := s.Pop()
		if l.Base != i {
			t.Fatalf("Pop() = Level{Base: %d}, want %d", l.Base, i)
		}
	}
	if s.Depth() != 0 {
		t.Fatalf("Depth() = %d after draining, want 0", s.Depth())
	}
}

// TestStackChainsBeyondInlineCapacity pushes more frames than fit
// inline to exercise the chained-block growth path, then pops them
// all back off in order.
func TestStackChainsBeyondInlineCapacity(t *testing.T) {
	var s Stack
	const total = inlineLevels + 5
	for i := 0; i < total; i++ {
		s.Push(Level{Base: i})
	}
	if s.Depth() != total {
		t.Fatalf("Depth() = %d, want %d", s.Depth(), total)
	}
	if got := s.Top().Base; got != total-1 {
		t.Fatalf("Top().Base = %d, want %d", got, total-1)
	}
	for i := total - 1; i >= 0; i-- {
		l := s.Pop()
		if l.Base != i {
			t.Fatalf("Pop() = Level{Base: %d}, want %d", l.Base, i)
		}
	}
}

// TestStackReusesChainedBlockAfterEmptying drives the stack below and
// back above the inline capacity repeatedly - the enter/exit churn
// pattern Enter/Exit produce in real use - and checks that push/pop
// order and depth stay correct across every round. It does not observe
// whether the cached chained block is reused or reallocated.
func TestStackReusesChainedBlockAfterEmptying(t *testing.T) {
	var s Stack
	for round := 0; round < 3; round++ {
		for i := 0; i < inlineLevels+2; i++ {
			s.Push(Level{Base: i})
		}
		for s.Depth() > 0 {
			s.Pop()
		}
	}
	if s.Depth() != 0 {
		t.Fatalf("Depth() = %d after draining, want 0", s.Depth())
	}
	// Stack must still behave correctly after the reuse cycles.
	s.Push(Level{Base: 42})
	if got := s.Top().Base; got != 42 {
		t.Fatalf("Top().Base = %d, want 42", got)
	}
}

func TestStackResetDiscardsOpenLevels(t *testing.T) {
	var s Stack
	for i := 0; i < inlineLevels+3; i++ {
		s.Push(Level{Base: i})
	}
	s.Reset()
	if s.Depth() != 0 {
		t.Fatalf("Depth() = %d after Reset, want 0", s.Depth())
	}
	if s.Top() != nil {
		t.Fatal("Top() after Reset must be nil")
	}
	s.Push(Level{Base: 1})
	if s.Depth() != 1 {
		t.Fatalf("Depth() after post-Reset Push = %d, want 1", s.Depth())
	}
}
