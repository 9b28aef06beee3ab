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

import (
	"errors"

	"github.com/SnellerInc/gvariant/glimits"
)

// Sentinel errors returned by Signature/SignatureOne. Callers in the
// root package wrap these into the public Error/Kind taxonomy.
var (
	ErrInvalidType = errors.New("gtype: invalid type")
	ErrTooDeep     = errors.New("gtype: nesting too deep")
	ErrTooLong     = errors.New("gtype: signature too long")
)

// Info is the result of analyzing one top-level type from the head of
// a signature.
type Info struct {
	Alignment uint8  // log2 alignment, 0..3
	Size      int    // fixed size in bytes, 0 if variable
	BoundSize int     // element size of an array/maybe with a fixed child, else 0
	Depth     int    // maximum container nesting encountered
	Length    int    // bytes consumed from the signature
	Type      []byte // the parsed type string (a slice of the input)
}

type frameKind uint8

const (
	kindTuple frameKind = iota
	kindPairFirst
	kindPairSecond
	kindPairDone
	kindBound
)

type frame struct {
	kind      frameKind
	align     uint8
	size      int // -1 means variable
	fromArray bool // kindBound only: true if pushed by 'a', false if by 'm'
}

// AlignUp rounds v up to the nearest multiple of 1<<align.
func AlignUp(v int, align uint8) int {
	mask := (1 << align) - 1
	return (v + mask) &^ mask
}

func alignUp(v int, align uint8) int { return AlignUp(v, align) }

// Signature parses exactly one top-level type from the head of sig.
// It returns a zero Info with Length == 0 if sig is empty. It never
// reads past len(sig); callers that want to bound how far a longer
// buffer is scanned should slice sig accordingly before calling.
func Signature(sig []byte) (Info, error) {
	if len(sig) == 0 {
		return Info{}, nil
	}
	if len(sig) > glimits.MaxSignature {
		return Info{}, ErrTooLong
	}

	var stack []frame
	pos := 0
	maxDepth := 0

	var resAlign uint8
	resSize := -1
	resBound := 0
	done := false

	push := func(f frame) error {
		if len(stack) >= glimits.MaxLevel {
			return ErrTooDeep
		}
		stack = append(stack, f)
		if len(stack) > maxDepth {
			maxDepth = len(stack)
		}
		return nil
	}

	// fold propagates a just-completed child (alignment calign, fixed
	// size csize, or -1 if variable) up through any bound (m/a) frames
	// on top of the stack and into the next tuple/pair frame, or
	// finishes the whole parse if the stack becomes empty.
	//
	// bound_size only ever describes the direct child of the single
	// bound frame that closes last in this fold call: it is 0 unless
	// exactly one bound frame pops (a bare leaf, or two-or-more m/a in a
	// row, both leave the enclosing bound container's own child
	// variable-size).
	var fold func(calign uint8, csize int) error
	fold = func(calign uint8, csize int) error {
		bound := 0
		pops := 0
		for len(stack) > 0 && stack[len(stack)-1].kind == kindBound {
			if pops == 0 && csize >= 0 {
				bound = csize
			}
			stack = stack[:len(stack)-1]
			csize = -1 // m/a are themselves always variable-size
			pops++
		}
		if pops != 1 {
			bound = 0
		}
		if len(stack) == 0 {
			resAlign, resSize, resBound = calign, csize, bound
			done = true
			return nil
		}
		top := &stack[len(stack)-1]
		switch top.kind {
		case kindTuple:
			if top.align < calign {
				top.align = calign
			}
			if top.size >= 0 && csize >= 0 {
				top.size = alignUp(top.size, calign) + csize
			} else {
				top.size = -1
			}
			return nil
		case kindPairFirst:
			top.align, top.size, top.kind = calign, csize, kindPairSecond
			return nil
		case kindPairSecond:
			var size int
			if top.size >= 0 && csize >= 0 {
				size = alignUp(top.size, calign) + csize
			} else {
				size = -1
			}
			align := calign
			if top.align > align {
				align = top.align
			}
			top.align, top.size, top.kind = align, size, kindPairDone
			return nil
		default:
			return ErrInvalidType
		}
	}

	for !done {
		if pos >= len(sig) {
			return Info{}, ErrInvalidType
		}
		c := sig[pos]

		switch c {
		case ')':
			if len(stack) == 0 || stack[len(stack)-1].kind != kindTuple {
				return Info{}, ErrInvalidType
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size := top.size
			if size >= 0 {
				size = alignUp(size, top.align)
			}
			pos++
			if err := fold(top.align, size); err != nil {
				return Info{}, err
			}
			continue
		case '}':
			if len(stack) == 0 || stack[len(stack)-1].kind != kindPairDone {
				return Info{}, ErrInvalidType
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size := top.size
			if size >= 0 {
				size = alignUp(size, top.align)
			}
			pos++
			if err := fold(top.align, size); err != nil {
				return Info{}, err
			}
			continue
		}

		// every other character starts a new TYPE; if we're sitting
		// directly inside a dict-entry's first slot, it must be basic.
		if len(stack) > 0 && stack[len(stack)-1].kind == kindPairFirst && !table[c].basic {
			return Info{}, ErrInvalidType
		}

		switch {
		case c == '(':
			if pos+1 < len(sig) && sig[pos+1] == ')' {
				pos += 2
				if err := fold(0, 1); err != nil {
					return Info{}, err
				}
			} else {
				if err := push(frame{kind: kindTuple, size: 0}); err != nil {
					return Info{}, err
				}
				pos++
			}
		case c == '{':
			// a dict-entry is only legal directly as an array's
			// element type ("a{...}"), never bare or under 'm'.
			if len(stack) == 0 || stack[len(stack)-1].kind != kindBound || !stack[len(stack)-1].fromArray {
				return Info{}, ErrInvalidType
			}
			if err := push(frame{kind: kindPairFirst}); err != nil {
				return Info{}, err
			}
			pos++
		case c == 'm', c == 'a':
			if err := push(frame{kind: kindBound, fromArray: c == 'a'}); err != nil {
				return Info{}, err
			}
			pos++
		case !table[c].valid:
			return Info{}, ErrInvalidType
		case table[c].fixed:
			align, size := table[c].align, table[c].size
			pos++
			if err := fold(align, size); err != nil {
				return Info{}, err
			}
		default:
			// s, o, g, v: variable-size leaves
			align := table[c].align
			pos++
			if err := fold(align, -1); err != nil {
				return Info{}, err
			}
		}
	}

	size := resSize
	if size < 0 {
		size = 0
	}
	return Info{
		Alignment: resAlign,
		Size:      size,
		BoundSize: resBound,
		Depth:     maxDepth,
		Length:    pos,
		Type:      sig[:pos],
	}, nil
}

// SignatureOne is like Signature but additionally requires that the
// parsed type consumes the entire input. An empty sig holds no type and
// is rejected.
func SignatureOne(sig []byte) (Info, error) {
	info, err := Signature(sig)
	if err != nil {
		return Info{}, err
	}
	if info.Length == 0 || info.Length != len(sig) {
		return Info{}, ErrInvalidType
	}
	return info, nil
}
